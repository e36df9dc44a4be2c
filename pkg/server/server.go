package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/audit"
	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/compliance/violations"
	"mercator-hq/sentinel/pkg/manager"
	"mercator-hq/sentinel/pkg/report"
	"mercator-hq/sentinel/pkg/retention"
	"mercator-hq/sentinel/pkg/telemetry/health"
)

// Service is the compliance API the server fronts. *manager.Manager
// satisfies it.
type Service interface {
	CheckCompliance(ctx context.Context, action *compliance.Action, tenantID string) (*compliance.Result, error)
	GetRules() []*compliance.Rule
	GetRule(id string) (*compliance.Rule, bool)
	GetViolations(ctx context.Context, filter *violations.Filter) ([]*compliance.Violation, error)
	ResolveViolation(ctx context.Context, id, resolvedBy, notes string) (bool, error)
	GetAuditTrail(filter *audit.Filter) []*audit.Entry
	GenerateComplianceReport(ctx context.Context, ruleType compliance.RuleType, period report.Period, tenantID string) (*report.Report, error)
	EnforceDataRetention(ctx context.Context, tenantID string) *retention.Run
	GetMetrics(ctx context.Context) manager.Metrics
}

// Config configures the listener.
type Config struct {
	ListenAddress   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64

	// APIKeys guard the /v1 routes. Empty leaves them open.
	APIKeys []string

	TLS TLSConfig
}

// Options are the server's collaborators.
type Options struct {
	Service Service

	// Metrics is served at MetricsPath when set.
	Metrics     http.Handler
	MetricsPath string

	// Health mounts /health, /ready and /version when set.
	Health *health.Checker

	Version   string
	Commit    string
	BuildTime string

	Logger *slog.Logger
}

// Server serves the compliance API.
type Server struct {
	config  Config
	opts    Options
	logger  *slog.Logger
	handler http.Handler
	tls     *tls.Config

	mu         sync.Mutex
	httpServer *http.Server
}

// New builds a server. TLS material is loaded here so bad certificates
// fail before anything listens.
func New(cfg Config, opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: service is required")
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = "127.0.0.1:9090"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	tlsConfig, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	s := &Server{
		config: cfg,
		opts:   opts,
		logger: opts.Logger.With("component", "server"),
		tls:    tlsConfig,
	}
	s.handler = s.routes()
	return s, nil
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens and blocks until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: s.config.ReadTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
		IdleTimeout:       s.config.IdleTimeout,
		TLSConfig:         s.tls,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server",
			"address", ln.Addr().String(),
			"tls_enabled", s.tls != nil,
			"api_auth", len(s.config.APIKeys) > 0,
		)
		var err error
		if s.tls != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown stops accepting connections and waits for in-flight requests
// up to the shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.httpServer = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if s.opts.Metrics != nil {
		mux.Handle(s.opts.MetricsPath, s.opts.Metrics)
	}
	if s.opts.Health != nil {
		health.Register(mux, s.opts.Health, s.opts.Version, s.opts.Commit, s.opts.BuildTime)
	}

	api := http.NewServeMux()
	h := &apiHandler{svc: s.opts.Service, logger: s.logger, maxBody: s.config.MaxBodyBytes}
	api.HandleFunc("POST /v1/check", h.check)
	api.HandleFunc("GET /v1/rules", h.listRules)
	api.HandleFunc("GET /v1/rules/{id}", h.getRule)
	api.HandleFunc("GET /v1/violations", h.listViolations)
	api.HandleFunc("POST /v1/violations/{id}/resolve", h.resolveViolation)
	api.HandleFunc("GET /v1/audit", h.auditTrail)
	api.HandleFunc("GET /v1/reports", h.report)
	api.HandleFunc("POST /v1/retention/run", h.runRetention)
	api.HandleFunc("GET /v1/stats", h.stats)

	var apiHandler http.Handler = api
	if len(s.config.APIKeys) > 0 {
		apiHandler = APIKeyMiddleware(s.config.APIKeys, s.logger)(apiHandler)
	}
	mux.Handle("/v1/", apiHandler)

	var handler http.Handler = mux
	handler = LoggingMiddleware(s.logger)(handler)
	handler = RequestIDMiddleware(handler)
	handler = RecoveryMiddleware(s.logger)(handler)
	return handler
}
