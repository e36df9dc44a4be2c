package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/audit"
	"mercator-hq/sentinel/pkg/audit/export"
	"mercator-hq/sentinel/pkg/cli"
)

var auditFlags struct {
	format     string
	output     string
	tenant     string
	user       string
	actionType string
	since      string
	until      string
	limit      int
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the persisted audit trail",
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries",
	Long: `Export audit entries persisted in the configured state store.

Examples:
  # Export everything as CSV
  sentinel audit export --format csv --output audit.csv

  # Last 100 checks for one tenant as indented JSON
  sentinel audit export --tenant acme --limit 100 --format json-pretty`,
	RunE: exportAudit,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditExportCmd)

	f := auditExportCmd.Flags()
	f.StringVar(&auditFlags.format, "format", "json", "export format: json, json-pretty, csv")
	f.StringVarP(&auditFlags.output, "output", "o", "", "output file (default stdout)")
	f.StringVarP(&auditFlags.tenant, "tenant", "t", "", "filter by tenant")
	f.StringVar(&auditFlags.user, "user", "", "filter by user")
	f.StringVar(&auditFlags.actionType, "action-type", "", "filter by action type")
	f.StringVar(&auditFlags.since, "since", "", "entries at or after this time (RFC3339)")
	f.StringVar(&auditFlags.until, "until", "", "entries at or before this time (RFC3339)")
	f.IntVar(&auditFlags.limit, "limit", 0, "keep only the most recent N entries")
}

func exportAudit(cmd *cobra.Command, args []string) error {
	exporter, err := export.New(auditFlags.format)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	filter := &audit.Filter{
		UserID:     auditFlags.user,
		TenantID:   auditFlags.tenant,
		ActionType: auditFlags.actionType,
		Limit:      auditFlags.limit,
	}
	if auditFlags.since != "" {
		if filter.StartTime, err = time.Parse(time.RFC3339, auditFlags.since); err != nil {
			return cli.NewConfigError("since", fmt.Sprintf("invalid time: %v", err))
		}
	}
	if auditFlags.until != "" {
		if filter.EndTime, err = time.Parse(time.RFC3339, auditFlags.until); err != nil {
			return cli.NewConfigError("until", fmt.Sprintf("invalid time: %v", err))
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger, err := newLogger(cfg.Telemetry.Logging, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	store, err := openStateStore(ctx, cfg.StateStore, logger)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	if store == nil {
		return cli.NewConfigError("state_store.backend", "audit export needs a state store")
	}
	defer store.Close()

	entries, err := audit.Load(ctx, store, filter)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	out, err := openOutput(cmd.OutOrStdout(), auditFlags.output)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}
	defer out.Close()

	if err := exporter.Export(ctx, entries, out); err != nil {
		return cli.NewCommandError("audit export", err)
	}
	logger.Info("audit entries exported", "entries", len(entries), "format", auditFlags.format)
	return nil
}
