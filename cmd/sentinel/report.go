package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/report"
)

var reportFlags struct {
	ruleType string
	tenant   string
	days     int
	since    string
	until    string
	format   string
	output   string
	rules    []string
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a compliance report",
	Long: `Generate a compliance report from the stored violations.

Rule counts come from the loaded rule files; violation figures cover the
reporting period. Use a persistent violations backend (sqlite) to report on
violations recorded by a running service.

Examples:
  # GDPR report for the last 30 days
  sentinel report --type gdpr --days 30

  # All rule types for one tenant in a fixed window, as YAML
  sentinel report --tenant acme --since 2025-01-01T00:00:00Z --until 2025-02-01T00:00:00Z --format yaml`,
	RunE: generateReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVar(&reportFlags.ruleType, "type", "", "rule type (gdpr, ccpa, hipaa, sox, pci_dss, iso27001, custom); empty for all")
	reportCmd.Flags().StringVarP(&reportFlags.tenant, "tenant", "t", "", "restrict to a tenant")
	reportCmd.Flags().IntVar(&reportFlags.days, "days", 30, "report on the last N days")
	reportCmd.Flags().StringVar(&reportFlags.since, "since", "", "period start (RFC3339), overrides --days")
	reportCmd.Flags().StringVar(&reportFlags.until, "until", "", "period end (RFC3339), defaults to now")
	reportCmd.Flags().StringVar(&reportFlags.format, "format", "text", "output format: text, json, yaml")
	reportCmd.Flags().StringVarP(&reportFlags.output, "output", "o", "", "output file (default stdout)")
	reportCmd.Flags().StringSliceVarP(&reportFlags.rules, "rules", "r", nil, "rule files or directories (overrides rules.paths)")
}

func generateReport(cmd *cobra.Command, args []string) error {
	ruleType := compliance.RuleType(reportFlags.ruleType)
	if ruleType != "" && !ruleType.IsValid() {
		return cli.NewConfigError("type", fmt.Sprintf("unknown rule type %q", reportFlags.ruleType))
	}

	period, err := parsePeriod(time.Now(), reportFlags.days, reportFlags.since, reportFlags.until)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, err := buildServices(ctx, cfg, serviceOptions{rulePaths: reportFlags.rules, logWriter: cmd.ErrOrStderr()})
	if err != nil {
		return cli.NewCommandError("report", err)
	}
	defer svc.Close()

	r, err := svc.manager.GenerateComplianceReport(ctx, ruleType, period, reportFlags.tenant)
	if err != nil {
		return cli.NewCommandError("report", err)
	}

	out, err := openOutput(cmd.OutOrStdout(), reportFlags.output)
	if err != nil {
		return cli.NewCommandError("report", err)
	}
	defer out.Close()

	if err := report.Write(out, r, reportFlags.format); err != nil {
		return cli.NewCommandError("report", err)
	}
	return nil
}

// parsePeriod builds a reporting window from --since/--until, falling back
// to the last days days ending at now.
func parsePeriod(now time.Time, days int, since, until string) (report.Period, error) {
	p := report.LastDays(now, days)

	if until != "" {
		end, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return p, cli.NewConfigError("until", fmt.Sprintf("invalid time: %v", err))
		}
		p.End = end
		if since == "" {
			p.Start = end.AddDate(0, 0, -days)
		}
	}
	if since != "" {
		start, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return p, cli.NewConfigError("since", fmt.Sprintf("invalid time: %v", err))
		}
		p.Start = start
	} else if days <= 0 {
		return p, cli.NewConfigError("days", "must be positive")
	}

	if p.End.Before(p.Start) {
		return p, cli.NewConfigError("until", "period end is before start")
	}
	return p, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// openOutput returns stdout for an empty path, otherwise a created file.
func openOutput(stdout io.Writer, path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{stdout}, nil
	}
	return os.Create(path)
}
