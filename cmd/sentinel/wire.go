package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/sentinel/pkg/audit"
	"mercator-hq/sentinel/pkg/compliance/engine"
	"mercator-hq/sentinel/pkg/compliance/violations"
	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/manager"
	"mercator-hq/sentinel/pkg/retention"
	"mercator-hq/sentinel/pkg/ruleset"
	"mercator-hq/sentinel/pkg/ruleset/gitsource"
	"mercator-hq/sentinel/pkg/statestore"
	"mercator-hq/sentinel/pkg/telemetry/logging"
	"mercator-hq/sentinel/pkg/telemetry/metrics"
	"mercator-hq/sentinel/pkg/telemetry/tracing"
)

// services holds everything a command builds from the configuration.
// Optional parts are nil when disabled.
type services struct {
	cfg        *config.Config
	logger     *slog.Logger
	state      statestore.Store
	violations violations.Store
	collector  *metrics.Collector
	tracer     *tracing.Tracer
	manager    *manager.Manager
	reloader   *ruleset.Reloader
	rulesRepo  *gitsource.Repository

	closers []func() error
}

type serviceOptions struct {
	// rulePaths replaces cfg.Rules.Paths when set.
	rulePaths []string

	// logWriter receives log output; nil means stderr.
	logWriter io.Writer

	withMetrics bool
	withTracing bool
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	patterns := make([]logging.RedactPattern, 0, len(cfg.RedactPatterns))
	for _, p := range cfg.RedactPatterns {
		patterns = append(patterns, logging.RedactPattern{
			Name:        p.Name,
			Pattern:     p.Pattern,
			Replacement: p.Replacement,
		})
	}
	return logging.New(logging.Config{
		Level:          cfg.Level,
		Format:         cfg.Format,
		AddSource:      cfg.AddSource,
		RedactPII:      config.Bool(cfg.RedactPII),
		RedactPatterns: patterns,
		Writer:         w,
	})
}

func openStateStore(ctx context.Context, cfg config.StateStoreConfig, logger *slog.Logger) (statestore.Store, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "memory":
		return statestore.NewMemoryStore(), nil
	case "sqlite":
		return statestore.NewSQLiteStore(statestore.SQLiteConfig{
			Path:            cfg.SQLite.Path,
			BusyTimeout:     cfg.SQLite.BusyTimeout,
			CleanupInterval: cfg.SQLite.CleanupInterval,
		})
	case "redis":
		return statestore.NewRedisStore(ctx, statestore.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported state store backend: %s", cfg.Backend)
	}
}

func openViolations(cfg config.ViolationsConfig) (violations.Store, error) {
	switch cfg.Backend {
	case "memory":
		return violations.NewMemoryStore(cfg.Capacity), nil
	case "sqlite":
		return violations.NewSQLiteStore(&violations.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			WALMode:     config.Bool(cfg.SQLite.WALMode),
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported violations backend: %s", cfg.Backend)
	}
}

func metricsConfig(cfg config.MetricsConfig) *metrics.Config {
	mc := metrics.DefaultConfig()
	mc.Enabled = config.Bool(cfg.Enabled)
	mc.Path = cfg.Path
	mc.Namespace = cfg.Namespace
	mc.Subsystem = cfg.Subsystem
	mc.MaxCardinality = cfg.MaxCardinality
	return mc
}

func tracingConfig(cfg config.TracingConfig) *tracing.Config {
	tc := tracing.DefaultConfig()
	tc.Enabled = cfg.Enabled
	tc.ServiceName = cfg.ServiceName
	tc.Endpoint = cfg.Endpoint
	tc.Sampler = cfg.Sampler
	tc.SampleRatio = cfg.SampleRatio
	tc.Insecure = cfg.Insecure
	tc.Timeout = cfg.Timeout
	return tc
}

func engineConfig(cfg config.EngineConfig) *engine.EngineConfig {
	return &engine.EngineConfig{
		StoreTimeout:    cfg.StoreTimeout,
		SnapshotActions: config.Bool(cfg.SnapshotActions),
	}
}

func auditConfig(cfg config.AuditConfig) *audit.Config {
	return &audit.Config{
		Capacity:       cfg.Capacity,
		PersistBuffer:  cfg.PersistBuffer,
		PersistTimeout: cfg.PersistTimeout,
		TTL:            cfg.TTL,
	}
}

// buildServices opens the stores, builds the manager and loads the rule
// files. On error everything opened so far is closed.
func buildServices(ctx context.Context, cfg *config.Config, opts serviceOptions) (svc *services, err error) {
	logger, err := newLogger(cfg.Telemetry.Logging, opts.logWriter)
	if err != nil {
		return nil, err
	}

	svc = &services{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = svc.Close()
			svc = nil
		}
	}()

	svc.state, err = openStateStore(ctx, cfg.StateStore, logger)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	if svc.state != nil {
		svc.closers = append(svc.closers, svc.state.Close)
	}

	svc.violations, err = openViolations(cfg.Violations)
	if err != nil {
		return nil, fmt.Errorf("open violation store: %w", err)
	}
	svc.closers = append(svc.closers, svc.violations.Close)

	mcfg := manager.Config{
		Engine:               engineConfig(cfg.Engine),
		Audit:                auditConfig(cfg.Audit),
		RejectInvalidActions: cfg.Rules.RejectInvalidActions,
		StateStore:           svc.state,
		Violations:           svc.violations,
		Logger:               logger,
	}

	if cfg.Retention.Dataset == "state_store" && svc.state != nil {
		mcfg.Dataset = retention.NewStoreDataset(svc.state)
	}
	if cfg.Retention.ArchiveDir != "" {
		mcfg.Archiver = retention.NewFileArchiver(cfg.Retention.ArchiveDir, logger)
	}

	if opts.withMetrics && config.Bool(cfg.Telemetry.Metrics.Enabled) {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		svc.collector = metrics.NewCollector(metricsConfig(cfg.Telemetry.Metrics), registry)
		mcfg.Metrics = svc.collector
	}

	if opts.withTracing {
		svc.tracer, err = tracing.New(ctx, tracingConfig(cfg.Telemetry.Tracing), Version)
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		svc.closers = append(svc.closers, func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return svc.tracer.Shutdown(shutdownCtx)
		})
		mcfg.Tracer = svc.tracer.Tracer()
	}

	svc.manager, err = manager.New(mcfg)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, svc.manager.Close)

	if svc.collector != nil {
		svc.collector.RegisterAuditStats(svc.manager.AuditStats)
	}

	paths := cfg.Rules.Paths
	if len(opts.rulePaths) > 0 {
		paths = opts.rulePaths
	} else if cfg.Rules.Git.URL != "" {
		svc.rulesRepo, err = cloneRules(ctx, cfg.Rules.Git, logger)
		if err != nil {
			return nil, err
		}
		paths = append(append([]string(nil), paths...), svc.rulesRepo.RulePath())
	}
	if len(paths) > 0 {
		svc.reloader = ruleset.NewReloader(paths, ruleset.NewSyncer(svc.manager, logger), logger)
		if _, err := svc.reloader.Reload(ctx); err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
	}

	return svc, nil
}

func cloneRules(ctx context.Context, cfg config.GitConfig, logger *slog.Logger) (*gitsource.Repository, error) {
	repo, err := gitsource.NewRepository(gitsource.Config{
		URL:          cfg.URL,
		Branch:       cfg.Branch,
		Path:         cfg.Path,
		LocalPath:    cfg.LocalPath,
		Depth:        cfg.Depth,
		CleanOnStart: cfg.CleanOnStart,
		Timeout:      cfg.Timeout,
		Auth: gitsource.AuthConfig{
			Type:             cfg.Auth.Type,
			Token:            cfg.Auth.Token,
			SSHKeyPath:       cfg.Auth.SSHKeyPath,
			SSHKeyPassphrase: cfg.Auth.SSHKeyPassphrase,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("rule repository: %w", err)
	}
	if err := repo.Clone(ctx); err != nil {
		return nil, fmt.Errorf("rule repository: %w", err)
	}
	return repo, nil
}

// Close releases resources in reverse order of acquisition.
func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
