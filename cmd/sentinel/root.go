package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/config"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Sentinel - compliance rule evaluation and audit engine",
	Long: `Sentinel evaluates actions against declarative compliance rules
(GDPR, CCPA, HIPAA, SOX, PCI-DSS, ISO 27001 and custom rules).

It records every check in an audit trail, stores detected violations,
executes response actions, enforces data retention policies on a schedule
and generates compliance reports.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults plus SENTINEL_* environment when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// loadConfig reads the configuration named by --config, applies
// environment overrides and the --log-level flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	return cfg, nil
}
