// Package audit keeps the compliance audit trail.
//
// Every compliance check is appended to a bounded in-memory ring holding the
// most recent entries (10,000 by default). When the ring is full the oldest
// entry, by append order, is evicted. Each entry is also handed to a
// background persister that writes it through a statestore.Store under the
// key "audit:<entry id>" with a one-year TTL.
//
// # Usage
//
//	trail, err := audit.NewTrail(audit.DefaultConfig(), store, logger)
//	if err != nil {
//	    return err
//	}
//	defer trail.Close()
//
//	entry := trail.Log(ctx, action, result)
//
//	recent := trail.Query(&audit.Filter{TenantID: "t1", Limit: 100})
//
// # Persistence
//
// Persistence never blocks or fails a Log call. When the persist queue is
// full the entry is kept in memory only; the drop is logged and counted in
// Stats. Close drains the queue before returning.
//
// Entries written by earlier processes can be read back with Load.
package audit
