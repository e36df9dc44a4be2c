package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SENTINEL_"

// LoadConfig loads configuration from a YAML file, applies defaults and
// validates it. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := parseFile(path)
	if err != nil {
		return nil, err
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies SENTINEL_SECTION_FIELD environment overrides, which take
// precedence over the file. An empty path loads defaults only.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply environment variable overrides
//  3. Apply default values
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = parseFile(path); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func parseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	return &cfg, nil
}

type lookupFunc func(key string) (string, bool)

// envOverrides binds environment variable suffixes to configuration fields.
func envOverrides(cfg *Config) map[string]any {
	return map[string]any{
		"SERVER_LISTEN_ADDRESS":   &cfg.Server.ListenAddress,
		"SERVER_READ_TIMEOUT":     &cfg.Server.ReadTimeout,
		"SERVER_SHUTDOWN_TIMEOUT": &cfg.Server.ShutdownTimeout,
		"SERVER_WRITE_TIMEOUT":    &cfg.Server.WriteTimeout,
		"SERVER_API_KEYS":         &cfg.Server.APIKeys,
		"SERVER_TLS_ENABLED":      &cfg.Server.TLS.Enabled,
		"SERVER_TLS_CERT_FILE":    &cfg.Server.TLS.CertFile,
		"SERVER_TLS_KEY_FILE":     &cfg.Server.TLS.KeyFile,

		"RULES_PATHS":                  &cfg.Rules.Paths,
		"RULES_WATCH":                  &cfg.Rules.Watch,
		"RULES_REJECT_INVALID_ACTIONS": &cfg.Rules.RejectInvalidActions,
		"RULES_GIT_URL":                &cfg.Rules.Git.URL,
		"RULES_GIT_BRANCH":             &cfg.Rules.Git.Branch,
		"RULES_GIT_PATH":               &cfg.Rules.Git.Path,
		"RULES_GIT_POLL_INTERVAL":      &cfg.Rules.Git.PollInterval,
		"RULES_GIT_AUTH_TYPE":          &cfg.Rules.Git.Auth.Type,
		"RULES_GIT_AUTH_TOKEN":         &cfg.Rules.Git.Auth.Token,

		"AUDIT_CAPACITY": &cfg.Audit.Capacity,
		"AUDIT_TTL":      &cfg.Audit.TTL,

		"VIOLATIONS_BACKEND":     &cfg.Violations.Backend,
		"VIOLATIONS_CAPACITY":    &cfg.Violations.Capacity,
		"VIOLATIONS_SQLITE_PATH": &cfg.Violations.SQLite.Path,

		"STATE_STORE_BACKEND":          &cfg.StateStore.Backend,
		"STATE_STORE_SQLITE_PATH":      &cfg.StateStore.SQLite.Path,
		"STATE_STORE_REDIS_ADDR":       &cfg.StateStore.Redis.Addr,
		"STATE_STORE_REDIS_PASSWORD":   &cfg.StateStore.Redis.Password,
		"STATE_STORE_REDIS_DB":         &cfg.StateStore.Redis.DB,
		"STATE_STORE_REDIS_KEY_PREFIX": &cfg.StateStore.Redis.KeyPrefix,

		"RETENTION_ENABLED":     &cfg.Retention.Enabled,
		"RETENTION_SCHEDULE":    &cfg.Retention.Schedule,
		"RETENTION_TENANT_ID":   &cfg.Retention.TenantID,
		"RETENTION_DATASET":     &cfg.Retention.Dataset,
		"RETENTION_ARCHIVE_DIR": &cfg.Retention.ArchiveDir,

		"TELEMETRY_LOGGING_LEVEL":        &cfg.Telemetry.Logging.Level,
		"TELEMETRY_LOGGING_FORMAT":       &cfg.Telemetry.Logging.Format,
		"TELEMETRY_LOGGING_REDACT_PII":   &cfg.Telemetry.Logging.RedactPII,
		"TELEMETRY_METRICS_ENABLED":      &cfg.Telemetry.Metrics.Enabled,
		"TELEMETRY_METRICS_PATH":         &cfg.Telemetry.Metrics.Path,
		"TELEMETRY_TRACING_ENABLED":      &cfg.Telemetry.Tracing.Enabled,
		"TELEMETRY_TRACING_ENDPOINT":     &cfg.Telemetry.Tracing.Endpoint,
		"TELEMETRY_TRACING_SAMPLE_RATIO": &cfg.Telemetry.Tracing.SampleRatio,
		"TELEMETRY_HEALTH_ENABLED":       &cfg.Telemetry.Health.Enabled,
	}
}

// applyEnvOverrides sets every field whose SENTINEL_ variable is present.
// Unparseable values are reported instead of silently ignored.
func applyEnvOverrides(cfg *Config, lookup lookupFunc) error {
	var errs []FieldError

	for suffix, target := range envOverrides(cfg) {
		name := EnvPrefix + suffix
		val, ok := lookup(name)
		if !ok || val == "" {
			continue
		}
		if err := setField(target, val); err != nil {
			errs = append(errs, FieldError{Field: name, Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func setField(target any, val string) error {
	switch p := target.(type) {
	case *string:
		*p = val
	case *[]string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*p = out
	case *bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", val)
		}
		*p = b
	case **bool:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", val)
		}
		*p = &b
	case *int:
		i, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid integer %q", val)
		}
		*p = i
	case *float64:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid number %q", val)
		}
		*p = f
	case *time.Duration:
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q", val)
		}
		*p = d
	default:
		return fmt.Errorf("unsupported field type %T", target)
	}
	return nil
}
