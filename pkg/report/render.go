package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"mercator-hq/sentinel/pkg/compliance"
)

// Write renders a report as "json", "yaml" or "text".
func Write(w io.Writer, r *Report, format string) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()

	case "text":
		return writeText(w, r)

	default:
		return fmt.Errorf("unsupported report format %q", format)
	}
}

func writeText(w io.Writer, r *Report) error {
	title := "All rule types"
	if r.Type != "" {
		title = r.Type.DisplayName()
	}
	fmt.Fprintf(w, "Compliance report %s\n", r.ID)
	fmt.Fprintf(w, "  Scope:     %s", title)
	if r.TenantID != "" {
		fmt.Fprintf(w, " (tenant %s)", r.TenantID)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Period:    %s to %s\n", r.Period.Start.Format(time.RFC3339), r.Period.End.Format(time.RFC3339))
	fmt.Fprintf(w, "  Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	s := r.Summary
	fmt.Fprintf(w, "Rules %d (%d enabled), evaluations %d, violations %d, compliance %.1f%%\n",
		s.TotalRules, s.EnabledRules, s.TotalEvaluations, s.TotalViolations, s.ComplianceRate)
	fmt.Fprintf(w, "Period violations %d (%d open, %d resolved)", s.PeriodViolations, s.OpenViolations, s.ResolvedViolations)
	for _, sev := range []compliance.Severity{compliance.SeverityCritical, compliance.SeverityHigh, compliance.SeverityMedium, compliance.SeverityLow} {
		if n := s.BySeverity[sev]; n > 0 {
			fmt.Fprintf(w, ", %s %d", sev, n)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RULE\tTYPE\tSEVERITY\tEVALS\tVIOLATIONS\tRATE\tPERIOD\tMOST COMMON")
	for _, rs := range r.Rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.1f%%\t%d\t%s\n",
			rs.RuleID, rs.Type, rs.Severity, rs.Evaluations, rs.Violations, rs.ComplianceRate, rs.PeriodViolations, rs.MostCommonViolation)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w, "\nRecommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  - %s\n", rec)
		}
	}
	return nil
}
