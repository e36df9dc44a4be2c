// Package config loads the sentinel service configuration.
//
// Configuration is read from a YAML file, overridden by SENTINEL_*
// environment variables, completed with defaults and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("sentinel.yaml")
//	if err != nil {
//	    var verr config.ValidationError
//	    if errors.As(err, &verr) {
//	        for _, fe := range verr.Errors {
//	            fmt.Println(fe.Field, fe.Message)
//	        }
//	    }
//	    return err
//	}
//
// Environment variables follow SENTINEL_SECTION_FIELD, for example
// SENTINEL_STATE_STORE_BACKEND=redis or SENTINEL_RULES_PATHS=a.yaml,b.yaml.
// List values are comma separated.
//
// An example configuration:
//
//	server:
//	  listen_address: 0.0.0.0:9090
//	rules:
//	  paths: [/etc/sentinel/rules]
//	  watch: true
//	violations:
//	  backend: sqlite
//	  sqlite:
//	    path: /var/lib/sentinel/violations.db
//	state_store:
//	  backend: redis
//	  redis:
//	    addr: redis:6379
//	retention:
//	  schedule: "0 3 * * *"
//	  archive_dir: /var/lib/sentinel/archive
//	telemetry:
//	  logging:
//	    level: info
//	    format: json
package config
