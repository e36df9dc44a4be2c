// Package retention enforces data retention policies.
//
// A Policy governs the records of one or more data types. On each sweep the
// Engine examines every record of those types and
//
//   - deletes records older than DeleteAfter days
//   - archives records older than ArchiveAfter days that are not yet archived
//
// An exception replaces the delete window for the records its condition
// matches. Conditions are govaluate expressions evaluated over the record
// attributes plus dataType, tenantId and ageDays:
//
//	exceptions:
//	  - condition: "legalHold == true"
//	    retention_period: 3650
//	    reason: litigation hold
//
// Policies run independently. A failing policy records its errors in its
// Result and never stops the others. Already archived or deleted records
// are not counted again, so repeated sweeps are idempotent.
//
// # Scheduling
//
// Scheduler runs Enforce on a cron spec using robfig/cron. The default spec
// "@every 5m" matches the maintenance cadence of the service.
//
//	scheduler := retention.NewScheduler(engine, retention.DefaultSchedule, "", logger)
//	if err := scheduler.Start(ctx); err != nil {
//	    return err
//	}
//	defer scheduler.Stop()
package retention
