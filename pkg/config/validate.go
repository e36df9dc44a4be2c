package config

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "audit.capacity").
	Field string

	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every field error found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the configuration. All field errors are collected and
// returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateRules(&cfg.Rules)...)
	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateViolations(&cfg.Violations)...)
	errs = append(errs, validateStateStore(&cfg.StateStore)...)
	errs = append(errs, validateRetention(&cfg.Retention, &cfg.StateStore)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "server.listen_address", Message: fmt.Sprintf("invalid address: %v", err)})
	}
	errs = append(errs, nonNegative("server.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, nonNegative("server.write_timeout", cfg.WriteTimeout)...)
	errs = append(errs, nonNegative("server.idle_timeout", cfg.IdleTimeout)...)
	errs = append(errs, nonNegative("server.shutdown_timeout", cfg.ShutdownTimeout)...)
	if cfg.MaxBodyBytes < 0 {
		errs = append(errs, FieldError{Field: "server.max_body_bytes", Message: "cannot be negative"})
	}
	for i, k := range cfg.APIKeys {
		if strings.TrimSpace(k) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("server.api_keys[%d]", i), Message: "api key cannot be empty"})
		}
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.cert_file", Message: "cert file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "server.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
		switch cfg.TLS.MinVersion {
		case "", "1.2", "1.3":
		default:
			errs = append(errs, FieldError{Field: "server.tls.min_version", Message: fmt.Sprintf("must be 1.2 or 1.3, got %q", cfg.TLS.MinVersion)})
		}
	}

	return errs
}

func validateRules(cfg *RulesConfig) []FieldError {
	var errs []FieldError

	for i, p := range cfg.Paths {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("rules.paths[%d]", i), Message: "path cannot be empty"})
		}
	}
	if cfg.Watch && len(cfg.Paths) == 0 {
		errs = append(errs, FieldError{Field: "rules.watch", Message: "watch requires at least one rule path"})
	}
	errs = append(errs, nonNegative("rules.debounce", cfg.Debounce)...)
	if cfg.Git.URL != "" {
		errs = append(errs, validateGit(&cfg.Git)...)
	}

	return errs
}

func validateGit(cfg *GitConfig) []FieldError {
	var errs []FieldError

	if cfg.Branch == "" {
		errs = append(errs, FieldError{Field: "rules.git.branch", Message: "branch is required"})
	}
	if cfg.LocalPath == "" {
		errs = append(errs, FieldError{Field: "rules.git.local_path", Message: "local path is required"})
	}
	if cfg.Depth < 0 {
		errs = append(errs, FieldError{Field: "rules.git.depth", Message: "depth cannot be negative"})
	}
	errs = append(errs, nonNegative("rules.git.poll_interval", cfg.PollInterval)...)
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "rules.git.timeout", Message: "timeout must be positive"})
	}

	switch cfg.Auth.Type {
	case "none":
	case "token":
		if cfg.Auth.Token == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.token", Message: "token auth requires a token"})
		}
	case "ssh":
		if cfg.Auth.SSHKeyPath == "" {
			errs = append(errs, FieldError{Field: "rules.git.auth.ssh_key_path", Message: "ssh auth requires a key path"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "rules.git.auth.type",
			Message: fmt.Sprintf("invalid auth type %q (valid: none, token, ssh)", cfg.Auth.Type),
		})
	}

	return errs
}

func validateEngine(cfg *EngineConfig) []FieldError {
	if cfg.StoreTimeout <= 0 {
		return []FieldError{{Field: "engine.store_timeout", Message: "store timeout must be positive"}}
	}
	return nil
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	if cfg.Capacity <= 0 {
		errs = append(errs, FieldError{Field: "audit.capacity", Message: "capacity must be positive"})
	}
	if cfg.PersistBuffer <= 0 {
		errs = append(errs, FieldError{Field: "audit.persist_buffer", Message: "persist buffer must be positive"})
	}
	if cfg.PersistTimeout <= 0 {
		errs = append(errs, FieldError{Field: "audit.persist_timeout", Message: "persist timeout must be positive"})
	}
	if cfg.TTL < 0 {
		errs = append(errs, FieldError{Field: "audit.ttl", Message: "ttl must be non-negative"})
	}

	return errs
}

func validateViolations(cfg *ViolationsConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
		if cfg.Capacity < 0 {
			errs = append(errs, FieldError{Field: "violations.capacity", Message: "capacity must be non-negative"})
		}
	case "sqlite":
		errs = append(errs, validateSQLite("violations.sqlite", &cfg.SQLite)...)
	default:
		errs = append(errs, FieldError{
			Field:   "violations.backend",
			Message: fmt.Sprintf("invalid backend %q (valid: memory, sqlite)", cfg.Backend),
		})
	}

	return errs
}

func validateStateStore(cfg *StateStoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none", "memory":
	case "sqlite":
		errs = append(errs, validateSQLite("state_store.sqlite", &cfg.SQLite)...)
		errs = append(errs, nonNegative("state_store.sqlite.cleanup_interval", cfg.SQLite.CleanupInterval)...)
	case "redis":
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{Field: "state_store.redis.addr", Message: "address is required"})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "state_store.redis.db", Message: "db must be non-negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "state_store.backend",
			Message: fmt.Sprintf("invalid backend %q (valid: none, memory, sqlite, redis)", cfg.Backend),
		})
	}

	return errs
}

func validateSQLite(prefix string, cfg *SQLiteConfig) []FieldError {
	var errs []FieldError
	if cfg.Path == "" {
		errs = append(errs, FieldError{Field: prefix + ".path", Message: "path is required"})
	}
	errs = append(errs, nonNegative(prefix+".busy_timeout", cfg.BusyTimeout)...)
	return errs
}

func validateRetention(cfg *RetentionConfig, store *StateStoreConfig) []FieldError {
	var errs []FieldError

	if Bool(cfg.Enabled) {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			errs = append(errs, FieldError{Field: "retention.schedule", Message: fmt.Sprintf("invalid cron schedule: %v", err)})
		}
	}

	switch cfg.Dataset {
	case "memory":
	case "state_store":
		if store.Backend == "none" {
			errs = append(errs, FieldError{Field: "retention.dataset", Message: "state_store dataset requires a state store backend"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "retention.dataset",
			Message: fmt.Sprintf("invalid dataset %q (valid: memory, state_store)", cfg.Dataset),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid level %q (valid: debug, info, warn, error)", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid format %q (valid: json, text)", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		field := fmt.Sprintf("telemetry.logging.redact_patterns[%d]", i)
		if p.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "name is required"})
		}
		if _, err := regexp.Compile(p.Pattern); err != nil {
			errs = append(errs, FieldError{Field: field + ".pattern", Message: fmt.Sprintf("invalid pattern: %v", err)})
		}
	}

	if Bool(cfg.Metrics.Enabled) {
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "path must start with /"})
		}
		if cfg.Metrics.MaxCardinality < 0 {
			errs = append(errs, FieldError{Field: "telemetry.metrics.max_cardinality", Message: "max cardinality must be non-negative"})
		}
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "endpoint is required when tracing is enabled"})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never":
		case "ratio":
			if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
				errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
			}
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q (valid: always, never, ratio)", cfg.Tracing.Sampler),
			})
		}
	}

	errs = append(errs, nonNegative("telemetry.health.check_timeout", cfg.Health.CheckTimeout)...)

	return errs
}

func nonNegative(field string, d time.Duration) []FieldError {
	if d < 0 {
		return []FieldError{{Field: field, Message: "duration must be non-negative"}}
	}
	return nil
}
