package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/sentinel/pkg/cli"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/events"
	"mercator-hq/sentinel/pkg/retention"
	"mercator-hq/sentinel/pkg/ruleset"
	"mercator-hq/sentinel/pkg/ruleset/gitsource"
	"mercator-hq/sentinel/pkg/server"
	"mercator-hq/sentinel/pkg/statestore"
	"mercator-hq/sentinel/pkg/telemetry/health"
)

var runFlags struct {
	listenAddress string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the compliance service",
	Long: `Start the compliance service with the specified configuration.

The service loads the configured rule files, schedules retention sweeps and
serves the compliance API, Prometheus metrics and health probes. With
rules.watch enabled, or on SIGHUP, rule files are reloaded without a restart.
With rules.git.url set, the repository is cloned and polled for new commits.

Examples:
  # Start with a config file
  sentinel run --config /etc/sentinel/config.yaml

  # Override listen address
  sentinel run --listen 0.0.0.0:9090

  # Validate config and rules without starting
  sentinel run --dry-run`,
	RunE: runService,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and rules without starting")
}

func runService(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	svc, err := buildServices(ctx, cfg, serviceOptions{withMetrics: true, withTracing: true})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			svc.logger.Error("shutdown failed", "error", err)
		}
	}()
	slog.SetDefault(svc.logger)

	srv, err := newServer(svc)
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if runFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Configuration valid (%d rules, %d retention policies)\n",
			len(svc.manager.GetRules()), len(svc.manager.GetRetentionPolicies()))
		return nil
	}

	go logSignals(ctx, svc.manager.Events(), svc.logger)

	if svc.reloader != nil {
		go reloadOnHangup(ctx, svc.reloader, svc.logger)
		if cfg.Rules.Watch {
			watcher, err := ruleset.NewWatcher(svc.reloader, cfg.Rules.Debounce, svc.logger)
			if err != nil {
				return cli.NewCommandError("run", err)
			}
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					svc.logger.Error("rule watcher stopped", "error", err)
				}
			}()
		}
	}

	if svc.rulesRepo != nil && svc.reloader != nil && cfg.Rules.Git.PollInterval > 0 {
		poller := gitsource.NewPoller(svc.rulesRepo, svc.reloader, cfg.Rules.Git.PollInterval, svc.logger)
		go func() {
			if err := poller.Run(ctx); err != nil {
				svc.logger.Error("rule repository poller stopped", "error", err)
			}
		}()
	}

	if config.Bool(cfg.Retention.Enabled) {
		scheduler := retention.NewScheduler(svc.manager.Retention(), cfg.Retention.Schedule, cfg.Retention.TenantID, svc.logger)
		if err := scheduler.Start(ctx); err != nil {
			return cli.NewCommandError("run", fmt.Errorf("start retention scheduler: %w", err))
		}
		defer scheduler.Stop()
		if next := scheduler.NextRun(); next != nil {
			svc.logger.Info("retention scheduler started", "schedule", cfg.Retention.Schedule, "next_run", next)
		}
	}

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	svc.logger.Info("shut down")
	return nil
}

// newServer builds the HTTP server: compliance API, metrics and health
// probes.
func newServer(svc *services) (*server.Server, error) {
	opts := server.Options{
		Service:   svc.manager,
		Version:   Version,
		Commit:    GitCommit,
		BuildTime: BuildDate,
		Logger:    svc.logger,
	}
	if svc.collector != nil {
		opts.Metrics = svc.collector.Handler()
		opts.MetricsPath = svc.cfg.Telemetry.Metrics.Path
	}
	if config.Bool(svc.cfg.Telemetry.Health.Enabled) {
		checker := health.New(svc.cfg.Telemetry.Health.CheckTimeout)
		if p, ok := svc.state.(statestore.Pinger); ok {
			checker.RegisterCheck("state_store", health.PingCheck(p))
		}
		if p, ok := svc.violations.(health.Pinger); ok {
			checker.RegisterCheck("violations", health.PingCheck(p))
		}
		if svc.rulesRepo != nil {
			repo := svc.rulesRepo
			checker.RegisterCheck("rules_repo", func(context.Context) error {
				_, err := repo.Head()
				return err
			})
		}
		opts.Health = checker
	}

	s := svc.cfg.Server
	return server.New(server.Config{
		ListenAddress:   s.ListenAddress,
		ReadTimeout:     s.ReadTimeout,
		WriteTimeout:    s.WriteTimeout,
		IdleTimeout:     s.IdleTimeout,
		ShutdownTimeout: s.ShutdownTimeout,
		MaxBodyBytes:    int64(s.MaxBodyBytes),
		APIKeys:         s.APIKeys,
		TLS: server.TLSConfig{
			Enabled:      s.TLS.Enabled,
			CertFile:     s.TLS.CertFile,
			KeyFile:      s.TLS.KeyFile,
			MinVersion:   s.TLS.MinVersion,
			ClientCAFile: s.TLS.ClientCAFile,
		},
	}, opts)
}

// logSignals logs block and alert events until ctx is done.
func logSignals(ctx context.Context, bus *events.Bus, logger *slog.Logger) {
	ch, unsubscribe := bus.Subscribe(256, events.ComplianceAlert, events.ComplianceBlock)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			attrs := []any{"event", e.Name, "tenant_id", e.TenantID, "severity", e.Severity}
			if e.Violation != nil {
				attrs = append(attrs, "rule_id", e.Violation.RuleID, "violation_id", e.Violation.ID)
			}
			logger.WarnContext(ctx, "compliance signal", attrs...)
		}
	}
}

func reloadOnHangup(ctx context.Context, reloader *ruleset.Reloader, logger *slog.Logger) {
	hup, stop := cli.ReloadSignal()
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			start := time.Now()
			if _, err := reloader.Reload(ctx); err != nil {
				continue
			}
			logger.Info("rules reloaded on SIGHUP", "duration", time.Since(start))
		}
	}
}
