package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/compliance"
)

var checkFlags struct {
	action string
	tenant string
	rules  []string
	format string
	failOn string
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check actions against the rule set",
	Long: `Evaluate one or more actions against the loaded rules.

The action file holds a YAML or JSON action; a YAML stream with several
documents checks each in turn. Violations are stored and audited with the
configured backends.

Exit status is 3 when a result meets --fail-on: "block" (default) fails only
blocked actions, "violation" fails any violation, "none" never fails.

Examples:
  # Check one action
  sentinel check --rules rules/ --action action.json --tenant acme

  # Read from stdin and fail on any violation
  cat actions.yaml | sentinel check --rules rules/ --action - --fail-on violation`,
	RunE: checkActions,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&checkFlags.action, "action", "a", "-", "action file, - for stdin")
	checkCmd.Flags().StringVarP(&checkFlags.tenant, "tenant", "t", "", "tenant id (defaults to the action's tenant)")
	checkCmd.Flags().StringSliceVarP(&checkFlags.rules, "rules", "r", nil, "rule files or directories (overrides rules.paths)")
	checkCmd.Flags().StringVar(&checkFlags.format, "format", "text", "output format: text, json")
	checkCmd.Flags().StringVar(&checkFlags.failOn, "fail-on", "block", "exit non-zero on: block, violation, none")
}

// checkOutput renders a check result as text.
type checkOutput struct {
	*compliance.Result
}

func (o checkOutput) WriteText(w io.Writer) error {
	r := o.Result
	status := "COMPLIANT"
	switch {
	case r.Blocked:
		status = "BLOCKED"
	case !r.Compliant:
		status = "NON-COMPLIANT"
	}
	fmt.Fprintf(w, "Check %s: %s", r.CheckID, status)
	if !r.Compliant {
		fmt.Fprintf(w, " (severity %s)", r.Severity)
	}
	fmt.Fprintln(w)

	for _, v := range r.Violations {
		fmt.Fprintf(w, "  ✗ [%s] %s: %s\n", v.Severity, v.RuleID, v.Description)
	}
	for _, f := range r.RuleFailures {
		fmt.Fprintf(w, "  ! rule %s failed: %s\n", f.RuleID, f.Error)
	}
	for _, rec := range r.Recommendations {
		fmt.Fprintf(w, "  → %s\n", rec)
	}
	_, err := fmt.Fprintln(w)
	return err
}

func checkActions(cmd *cobra.Command, args []string) error {
	if checkFlags.format == string(cli.FormatYAML) {
		return cli.NewConfigError("format", "check results support text and json")
	}
	formatter, err := cli.NewFormatter(cli.OutputFormat(checkFlags.format))
	if err != nil {
		return err
	}
	failOn := strings.ToLower(checkFlags.failOn)
	if failOn != "block" && failOn != "violation" && failOn != "none" {
		return cli.NewConfigError("fail-on", fmt.Sprintf("invalid value %q", checkFlags.failOn))
	}

	actions, err := readActions(cmd.InOrStdin(), checkFlags.action)
	if err != nil {
		return cli.NewCommandError("check", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	svc, err := buildServices(ctx, cfg, serviceOptions{rulePaths: checkFlags.rules, logWriter: cmd.ErrOrStderr()})
	if err != nil {
		return cli.NewCommandError("check", err)
	}
	defer svc.Close()

	var failure *cli.ViolationError
	for _, action := range actions {
		result, err := svc.manager.CheckCompliance(ctx, action, checkFlags.tenant)
		if err != nil {
			return cli.NewCommandError("check", err)
		}
		if err := formatter.FormatTo(cmd.OutOrStdout(), checkOutput{result}); err != nil {
			return err
		}

		failed := (failOn == "block" && result.Blocked) ||
			(failOn == "violation" && !result.Compliant)
		if failed {
			if failure == nil {
				failure = &cli.ViolationError{}
			}
			failure.Violations += len(result.Violations)
			failure.Blocked = failure.Blocked || result.Blocked
		}
	}

	if failure != nil {
		return failure
	}
	return nil
}

// readActions decodes every YAML or JSON document in the named file.
func readActions(stdin io.Reader, name string) ([]*compliance.Action, error) {
	r := stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var actions []*compliance.Action
	dec := yaml.NewDecoder(r)
	for {
		var a compliance.Action
		err := dec.Decode(&a)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode action %d: %w", len(actions)+1, err)
		}
		actions = append(actions, &a)
	}
	if len(actions) == 0 {
		return nil, errors.New("no actions to check")
	}
	return actions, nil
}
