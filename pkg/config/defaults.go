package config

import "time"

// Default values for configuration fields.
const (
	DefaultListenAddress   = "127.0.0.1:9090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultMaxBodyBytes    = 1 << 20
	DefaultTLSMinVersion   = "1.3"

	DefaultRulesDebounce = 500 * time.Millisecond

	DefaultGitBranch       = "main"
	DefaultGitPath         = "."
	DefaultGitLocalPath    = "data/rules-repo"
	DefaultGitPollInterval = time.Minute
	DefaultGitTimeout      = 30 * time.Second
	DefaultGitAuthType     = "none"

	DefaultEngineStoreTimeout = 2 * time.Second

	DefaultAuditCapacity       = 10000
	DefaultAuditPersistBuffer  = 1000
	DefaultAuditPersistTimeout = 5 * time.Second
	DefaultAuditTTL            = 365 * 24 * time.Hour

	DefaultViolationsBackend    = "memory"
	DefaultViolationsCapacity   = 100000
	DefaultViolationsSQLitePath = "data/violations.db"

	DefaultStateStoreBackend    = "memory"
	DefaultStateStoreSQLitePath = "data/state.db"
	DefaultSQLiteBusyTimeout    = 5 * time.Second
	DefaultSQLiteCleanup        = time.Hour
	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisKeyPrefix       = "sentinel:"

	DefaultRetentionSchedule = "0 3 * * *"
	DefaultRetentionDataset  = "memory"

	DefaultLoggingLevel    = "info"
	DefaultLoggingFormat   = "json"
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNS       = "sentinel"
	DefaultMetricsSub      = "compliance"
	DefaultMetricsMaxCard  = 1000
	DefaultTracingService  = "sentinel"
	DefaultTracingEndpoint = "localhost:4317"
	DefaultTracingSampler  = "ratio"
	DefaultTracingRatio    = 0.1
	DefaultTracingTimeout  = 10 * time.Second
	DefaultHealthTimeout   = 2 * time.Second
)

// ApplyDefaults fills every unset field of cfg with its default.
func ApplyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyRulesDefaults(&cfg.Rules)
	applyEngineDefaults(&cfg.Engine)
	applyAuditDefaults(&cfg.Audit)
	applyViolationsDefaults(&cfg.Violations)
	applyStateStoreDefaults(&cfg.StateStore)
	applyRetentionDefaults(&cfg.Retention)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.TLS.Enabled && cfg.TLS.MinVersion == "" {
		cfg.TLS.MinVersion = DefaultTLSMinVersion
	}
}

func applyRulesDefaults(cfg *RulesConfig) {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultRulesDebounce
	}
	if cfg.Git.URL == "" {
		return
	}
	if cfg.Git.Branch == "" {
		cfg.Git.Branch = DefaultGitBranch
	}
	if cfg.Git.Path == "" {
		cfg.Git.Path = DefaultGitPath
	}
	if cfg.Git.LocalPath == "" {
		cfg.Git.LocalPath = DefaultGitLocalPath
	}
	if cfg.Git.PollInterval == 0 {
		cfg.Git.PollInterval = DefaultGitPollInterval
	}
	if cfg.Git.Timeout == 0 {
		cfg.Git.Timeout = DefaultGitTimeout
	}
	if cfg.Git.Auth.Type == "" {
		cfg.Git.Auth.Type = DefaultGitAuthType
	}
}

func applyEngineDefaults(cfg *EngineConfig) {
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = DefaultEngineStoreTimeout
	}
	if cfg.SnapshotActions == nil {
		cfg.SnapshotActions = boolPtr(true)
	}
}

func applyAuditDefaults(cfg *AuditConfig) {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultAuditCapacity
	}
	if cfg.PersistBuffer == 0 {
		cfg.PersistBuffer = DefaultAuditPersistBuffer
	}
	if cfg.PersistTimeout == 0 {
		cfg.PersistTimeout = DefaultAuditPersistTimeout
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultAuditTTL
	}
}

func applyViolationsDefaults(cfg *ViolationsConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultViolationsBackend
	}
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultViolationsCapacity
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultViolationsSQLitePath
	}
	applySQLiteDefaults(&cfg.SQLite)
}

func applyStateStoreDefaults(cfg *StateStoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStateStoreBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultStateStoreSQLitePath
	}
	applySQLiteDefaults(&cfg.SQLite)
	if cfg.SQLite.CleanupInterval == 0 {
		cfg.SQLite.CleanupInterval = DefaultSQLiteCleanup
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
}

func applySQLiteDefaults(cfg *SQLiteConfig) {
	if cfg.WALMode == nil {
		cfg.WALMode = boolPtr(true)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = DefaultSQLiteBusyTimeout
	}
}

func applyRetentionDefaults(cfg *RetentionConfig) {
	if cfg.Enabled == nil {
		cfg.Enabled = boolPtr(true)
	}
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultRetentionSchedule
	}
	if cfg.Dataset == "" {
		cfg.Dataset = DefaultRetentionDataset
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Logging.RedactPII == nil {
		cfg.Logging.RedactPII = boolPtr(true)
	}

	if cfg.Metrics.Enabled == nil {
		cfg.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = DefaultMetricsSub
	}
	if cfg.Metrics.MaxCardinality == 0 {
		cfg.Metrics.MaxCardinality = DefaultMetricsMaxCard
	}

	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
		if cfg.Tracing.SampleRatio == 0 {
			cfg.Tracing.SampleRatio = DefaultTracingRatio
		}
	}
	if cfg.Tracing.Timeout == 0 {
		cfg.Tracing.Timeout = DefaultTracingTimeout
	}

	if cfg.Health.Enabled == nil {
		cfg.Health.Enabled = boolPtr(true)
	}
	if cfg.Health.CheckTimeout == 0 {
		cfg.Health.CheckTimeout = DefaultHealthTimeout
	}
}
