// Sentinel is a compliance rule evaluation and audit service.
//
// It evaluates actions against declarative compliance rules, records
// violations and an audit trail, enforces data retention policies and
// produces compliance reports.
//
// Usage:
//
//	# Start the service with rule files and scheduled retention
//	sentinel run --config sentinel.yaml
//
//	# Validate rule files
//	sentinel validate rules/
//
//	# Check a single action
//	sentinel check --rules rules/ --action action.json --tenant acme
//
//	# Generate a GDPR report for the last 30 days
//	sentinel report --type gdpr --days 30 --format text
//
//	# Export the persisted audit trail
//	sentinel audit export --format csv --output audit.csv
package main

import (
	"fmt"
	"os"

	"mercator-hq/sentinel/pkg/cli"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.ExitCode(err))
	}
}
