package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/retention"
)

var retentionFlags struct {
	tenant string
	rules  []string
	format string
	file   string
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Run retention sweeps and track records",
	Long: `Apply retention policies to the tracked dataset.

Records only outlive the command with retention.dataset set to state_store
and a persistent state store backend.`,
}

var retentionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one retention sweep now",
	Long: `Run every enabled retention policy once against the tracked records.

Examples:
  sentinel retention run --rules rules/ --tenant acme`,
	RunE: runRetention,
}

var retentionTrackCmd = &cobra.Command{
	Use:   "track",
	Short: "Track records for retention",
	Long: `Add records from a JSON array to the retention dataset.

Each record has an id, data_type, created_at and optional tenant_id and
attributes. Exceptions are evaluated against the attributes.

Examples:
  sentinel retention track --file records.json`,
	RunE: trackRecords,
}

func init() {
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionRunCmd, retentionTrackCmd)

	retentionCmd.PersistentFlags().StringSliceVarP(&retentionFlags.rules, "rules", "r", nil, "rule files or directories (overrides rules.paths)")

	retentionRunCmd.Flags().StringVarP(&retentionFlags.tenant, "tenant", "t", "", "restrict the sweep to a tenant")
	retentionRunCmd.Flags().StringVar(&retentionFlags.format, "format", "text", "output format: text, json")

	retentionTrackCmd.Flags().StringVarP(&retentionFlags.file, "file", "f", "-", "records file, - for stdin")
}

// runOutput renders a sweep as text.
type runOutput struct {
	*retention.Run
}

func (o runOutput) WriteText(w io.Writer) error {
	r := o.Run
	for _, p := range r.Policies {
		fmt.Fprintf(w, "%-24s processed %d, archived %d, deleted %d, exceptions %d\n",
			p.PolicyID, p.ProcessedCount, p.ArchivedCount, p.DeletedCount, p.ExceptionCount)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(w, "! %s\n", e)
	}
	_, err := fmt.Fprintf(w, "\n%d policies, %d processed, %d archived, %d deleted in %v\n",
		len(r.Policies), r.ProcessedCount, r.ArchivedCount, r.DeletedCount, r.Duration)
	return err
}

func runRetention(cmd *cobra.Command, args []string) error {
	if retentionFlags.format == string(cli.FormatYAML) {
		return cli.NewConfigError("format", "retention results support text and json")
	}
	formatter, err := cli.NewFormatter(cli.OutputFormat(retentionFlags.format))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, err := buildServices(ctx, cfg, serviceOptions{rulePaths: retentionFlags.rules, logWriter: cmd.ErrOrStderr()})
	if err != nil {
		return cli.NewCommandError("retention run", err)
	}
	defer svc.Close()

	run := svc.manager.EnforceDataRetention(ctx, retentionFlags.tenant)
	if err := formatter.FormatTo(cmd.OutOrStdout(), runOutput{run}); err != nil {
		return err
	}
	if len(run.Errors) > 0 {
		return cli.NewCommandError("retention run", fmt.Errorf("%d policy errors", len(run.Errors)))
	}
	return nil
}

func trackRecords(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if retentionFlags.file != "-" {
		f, err := os.Open(retentionFlags.file)
		if err != nil {
			return cli.NewCommandError("retention track", err)
		}
		defer f.Close()
		r = f
	}

	var records []*retention.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return cli.NewCommandError("retention track", fmt.Errorf("decode records: %w", err))
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, err := buildServices(ctx, cfg, serviceOptions{rulePaths: retentionFlags.rules, logWriter: cmd.ErrOrStderr()})
	if err != nil {
		return cli.NewCommandError("retention track", err)
	}
	defer svc.Close()

	for _, rec := range records {
		if err := svc.manager.TrackRecord(ctx, rec); err != nil {
			return cli.NewCommandError("retention track", fmt.Errorf("record %q: %w", rec.ID, err))
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ %d records tracked\n", len(records))
	return nil
}
