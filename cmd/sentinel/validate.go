package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/ruleset"
)

var validateFlags struct {
	format string
	strict bool
}

var validateCmd = &cobra.Command{
	Use:   "validate [paths...]",
	Short: "Validate rule files",
	Long: `Parse and validate rule, retention policy and schema files.

Paths may be files or directories; directories contribute their .yaml and
.yml files. Without arguments the paths from rules.paths in the config file
are checked.

Examples:
  # Validate a directory
  sentinel validate rules/

  # Treat warnings as errors
  sentinel validate --strict rules/gdpr.yaml

  # Machine-readable summary
  sentinel validate --format json rules/`,
	RunE: validateRules,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json, yaml")
	validateCmd.Flags().BoolVar(&validateFlags.strict, "strict", false, "fail on warnings")
}

// validationSummary is the result of validating a rule set.
type validationSummary struct {
	Sources           []string `json:"sources" yaml:"sources"`
	Rules             int      `json:"rules" yaml:"rules"`
	RetentionPolicies int      `json:"retention_policies" yaml:"retention_policies"`
	Schemas           int      `json:"schemas" yaml:"schemas"`
	Warnings          []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (s *validationSummary) WriteText(w io.Writer) error {
	for _, src := range s.Sources {
		fmt.Fprintf(w, "✓ %s\n", src)
	}
	for _, warn := range s.Warnings {
		fmt.Fprintf(w, "! %s\n", warn)
	}
	_, err := fmt.Fprintf(w, "\n%d rules, %d retention policies, %d schemas\n",
		s.Rules, s.RetentionPolicies, s.Schemas)
	return err
}

func validateRules(cmd *cobra.Command, args []string) error {
	formatter, err := cli.NewFormatter(cli.OutputFormat(validateFlags.format))
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		paths = cfg.Rules.Paths
	}
	if len(paths) == 0 {
		return cli.NewConfigError("rules.paths", "no rule paths given")
	}

	set, err := ruleset.Load(paths...)
	if err != nil {
		return cli.NewCommandError("validate", err)
	}

	summary := &validationSummary{
		Sources:           set.Sources,
		Rules:             len(set.Rules),
		RetentionPolicies: len(set.RetentionPolicies),
		Schemas:           len(set.Schemas),
		Warnings:          set.Warnings,
	}
	if err := formatter.FormatTo(cmd.OutOrStdout(), summary); err != nil {
		return err
	}

	if validateFlags.strict && len(set.Warnings) > 0 {
		return cli.NewCommandError("validate", fmt.Errorf("%d warnings", len(set.Warnings)))
	}
	return nil
}
