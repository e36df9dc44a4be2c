package config

import "time"

// Config is the root configuration structure for the sentinel service.
type Config struct {
	// Server configures the HTTP listener serving metrics and health probes.
	Server ServerConfig `yaml:"server"`

	// Rules locates the rule, retention policy and schema files.
	Rules RulesConfig `yaml:"rules"`

	// Engine configures rule evaluation.
	Engine EngineConfig `yaml:"engine"`

	// Audit configures the in-memory audit trail and its persistence.
	Audit AuditConfig `yaml:"audit"`

	// Violations selects where detected violations are stored.
	Violations ViolationsConfig `yaml:"violations"`

	// StateStore selects the key/value store audit entries are persisted to.
	StateStore StateStoreConfig `yaml:"state_store"`

	// Retention configures the scheduled retention sweep.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry configures logging, metrics, tracing and health checks.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP listener.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes bounds API request bodies.
	// Default: 1048576
	MaxBodyBytes int `yaml:"max_body_bytes"`

	// APIKeys guard the /v1 API. Empty leaves the API open; probes and
	// metrics are never guarded. Prefer SENTINEL_SERVER_API_KEYS.
	APIKeys []string `yaml:"api_keys"`

	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig enables HTTPS on the server.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`

	// MinVersion is "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ClientCAFile requires client certificates signed by this CA.
	ClientCAFile string `yaml:"client_ca_file"`
}

// RulesConfig locates rule definition files.
type RulesConfig struct {
	// Paths are YAML files or directories of YAML files. Directories are
	// read non-recursively.
	Paths []string `yaml:"paths"`

	// Watch reloads the rule set when a file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Debounce coalesces bursts of file events.
	// Default: 500ms
	Debounce time.Duration `yaml:"debounce"`

	// RejectInvalidActions refuses checks whose payload does not match the
	// schema registered for the action type.
	// Default: false
	RejectInvalidActions bool `yaml:"reject_invalid_actions"`

	// Git pulls rule files from a repository. When URL is set the rule
	// path inside the clone is loaded in addition to Paths.
	Git GitConfig `yaml:"git"`
}

// GitConfig configures a Git repository holding rule files.
type GitConfig struct {
	// URL is the repository to clone. Empty disables the Git source.
	URL string `yaml:"url"`

	// Branch is the branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the rule directory inside the repository.
	// Default: "."
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/rules-repo"
	LocalPath string `yaml:"local_path"`

	// Depth limits clone history. Zero clones full history.
	Depth int `yaml:"depth"`

	// CleanOnStart removes an existing clone before cloning.
	CleanOnStart bool `yaml:"clean_on_start"`

	// PollInterval is how often the remote is checked for new commits.
	// Zero disables polling.
	// Default: 1m
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	Auth GitAuthConfig `yaml:"auth"`
}

// GitAuthConfig configures repository authentication.
type GitAuthConfig struct {
	// Type is "none", "token" or "ssh".
	// Default: "none"
	Type string `yaml:"type"`

	// Token is a personal access token. Prefer the
	// SENTINEL_RULES_GIT_AUTH_TOKEN environment variable.
	Token string `yaml:"token"`

	SSHKeyPath       string `yaml:"ssh_key_path"`
	SSHKeyPassphrase string `yaml:"ssh_key_passphrase"`
}

// EngineConfig configures rule evaluation.
type EngineConfig struct {
	// StoreTimeout bounds each violation store write made during a check.
	// Default: 2s
	StoreTimeout time.Duration `yaml:"store_timeout"`

	// SnapshotActions copies the checked action into each violation.
	// Default: true
	SnapshotActions *bool `yaml:"snapshot_actions"`
}

// AuditConfig configures the audit trail.
type AuditConfig struct {
	// Capacity is the number of entries kept in memory.
	// Default: 10000
	Capacity int `yaml:"capacity"`

	// PersistBuffer is the size of the async persist queue.
	// Default: 1000
	PersistBuffer int `yaml:"persist_buffer"`

	// PersistTimeout bounds each state store write.
	// Default: 5s
	PersistTimeout time.Duration `yaml:"persist_timeout"`

	// TTL is the lifetime of persisted entries.
	// Default: 8760h (365 days)
	TTL time.Duration `yaml:"ttl"`
}

// ViolationsConfig selects the violation store.
type ViolationsConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Capacity bounds the memory store. Zero means unbounded.
	// Default: 100000
	Capacity int `yaml:"capacity"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`
}

// SQLiteConfig configures a SQLite database.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// WALMode enables Write-Ahead Logging mode.
	// Default: true
	WALMode *bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// CleanupInterval is how often expired state entries are purged.
	// Only used by the state store.
	// Default: 1h
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// StateStoreConfig selects the state store.
type StateStoreConfig struct {
	// Backend is "none", "memory", "sqlite" or "redis". With "none" the
	// audit trail is kept in memory only.
	// Default: "memory"
	Backend string `yaml:"backend"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`
}

// RedisConfig configures the Redis state store.
type RedisConfig struct {
	// Addr is the Redis server address.
	// Default: "localhost:6379"
	Addr string `yaml:"addr"`

	// Password authenticates with the server. Prefer the
	// SENTINEL_STATE_STORE_REDIS_PASSWORD environment variable.
	Password string `yaml:"password"`

	DB int `yaml:"db"`

	// KeyPrefix namespaces every key.
	// Default: "sentinel:"
	KeyPrefix string `yaml:"key_prefix"`
}

// RetentionConfig configures scheduled retention enforcement.
type RetentionConfig struct {
	// Enabled runs the scheduler in `sentinel run`.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Schedule is a cron expression or descriptor.
	// Default: "0 3 * * *"
	Schedule string `yaml:"schedule"`

	// TenantID limits scheduled sweeps to one tenant. Empty sweeps all.
	TenantID string `yaml:"tenant_id"`

	// Dataset is "memory" or "state_store". The state_store dataset keeps
	// tracked records in the configured state store.
	// Default: "memory"
	Dataset string `yaml:"dataset"`

	// ArchiveDir is where archived records are written. Empty discards
	// archived records after logging them.
	ArchiveDir string `yaml:"archive_dir"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log records.
	AddSource bool `yaml:"add_source"`

	// RedactPII masks personal data in log attributes.
	// Default: true
	RedactPII *bool `yaml:"redact_pii"`

	// RedactPatterns adds custom redaction patterns.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom log redaction pattern.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path serving metrics.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace and Subsystem prefix every metric name.
	// Default: "sentinel", "compliance"
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`

	// MaxCardinality bounds distinct rule and policy label values.
	// Default: 1000
	MaxCardinality int `yaml:"max_cardinality"`
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// ServiceName is reported as service.name.
	// Default: "sentinel"
	ServiceName string `yaml:"service_name"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the ratio sampler.
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig contains configuration for health probes.
type HealthConfig struct {
	// Enabled serves /health, /ready and /version.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// CheckTimeout bounds each readiness check.
	// Default: 2s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// Bool dereferences an optional flag.
func Bool(b *bool) bool {
	return b != nil && *b
}

func boolPtr(b bool) *bool {
	return &b
}
