// Package health provides liveness and readiness probes for the sentinel
// service.
//
// Liveness only reports that the process is up. Readiness runs every
// registered component check concurrently, each bounded by the checker's
// timeout, and answers 503 when any of them fails. Stores are registered
// through PingCheck:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("state_store", health.PingCheck(stateStore))
//	checker.RegisterCheck("violations", health.PingCheck(violationStore))
//	health.Register(mux, checker, version, commit, buildTime)
package health
