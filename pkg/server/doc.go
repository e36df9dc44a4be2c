// Package server exposes the compliance service over HTTP.
//
// Routes:
//
//	GET  /health, /ready, /version      probes (when a health checker is set)
//	GET  /metrics                       Prometheus (when a metrics handler is set)
//	POST /v1/check                      evaluate an action
//	GET  /v1/rules                      list rules
//	GET  /v1/rules/{id}                 one rule
//	GET  /v1/violations                 list violations
//	POST /v1/violations/{id}/resolve    resolve a violation
//	GET  /v1/audit                      query the in-memory audit trail
//	GET  /v1/reports                    generate a compliance report
//	POST /v1/retention/run              run a retention sweep
//	GET  /v1/stats                      service counters
//
// The /v1 routes require an API key when Config.APIKeys is non-empty. Every
// request gets an X-Request-ID and a structured log line; handler panics
// are answered with 500.
//
//	srv, err := server.New(cfg, server.Options{Service: mgr, Logger: logger})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // returns after ctx is done and shutdown completes
package server
