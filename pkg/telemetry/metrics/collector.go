package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/sentinel/pkg/compliance"
)

// otherLabel replaces ids beyond the cardinality limit.
const otherLabel = "other"

// Config configures the collector.
type Config struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
	Path      string `yaml:"path"`

	// MaxCardinality bounds the distinct rule and policy ids used as
	// label values.
	MaxCardinality int `yaml:"max_cardinality"`

	// DurationBuckets are histogram buckets in seconds for rule
	// evaluation and check latency.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		Namespace:      "sentinel",
		Subsystem:      "compliance",
		Path:           "/metrics",
		MaxCardinality: 1000,
		// Rule evaluation is in-memory: 10µs to ~160ms.
		DurationBuckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	}
}

// Collector records compliance measurements. It satisfies the metrics
// interfaces of the engine, the retention engine and the manager.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	rules     *RuleMetrics
	checks    *CheckMetrics
	retention *RetentionMetrics

	ruleLimiter   *CardinalityLimiter
	policyLimiter *CardinalityLimiter

	auditOnce sync.Once
}

// NewCollector creates a collector registered with registry. A nil config
// uses DefaultConfig; a nil registry creates a fresh one.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "sentinel"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "compliance"
	}
	if cfg.MaxCardinality <= 0 {
		cfg.MaxCardinality = 1000
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultConfig().DurationBuckets
	}

	return &Collector{
		config:        cfg,
		registry:      registry,
		rules:         NewRuleMetrics(cfg, registry),
		checks:        NewCheckMetrics(cfg, registry),
		retention:     NewRetentionMetrics(cfg, registry),
		ruleLimiter:   NewCardinalityLimiter(cfg.MaxCardinality),
		policyLimiter: NewCardinalityLimiter(cfg.MaxCardinality),
	}
}

// RecordRuleEvaluation records one evaluation of one rule.
func (c *Collector) RecordRuleEvaluation(ruleID string, violated bool, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if !c.ruleLimiter.Allow(ruleID) {
		ruleID = otherLabel
	}
	c.rules.RecordEvaluation(ruleID, violated, duration)
}

// RecordViolation records a detected violation.
func (c *Collector) RecordViolation(ruleType compliance.RuleType, severity compliance.Severity) {
	if !c.config.Enabled {
		return
	}
	c.checks.RecordViolation(string(ruleType), string(severity))
}

// RecordActionResult records the outcome of a response action.
func (c *Collector) RecordActionResult(actionType compliance.ResponseActionType, success bool) {
	if !c.config.Enabled {
		return
	}
	c.checks.RecordAction(string(actionType), success)
}

// RecordCheck records a completed compliance check.
func (c *Collector) RecordCheck(result *compliance.Result) {
	if !c.config.Enabled || result == nil {
		return
	}
	c.checks.RecordCheck(checkOutcome(result), result.Duration)
}

// RecordRetentionResult records one policy's share of a retention sweep.
func (c *Collector) RecordRetentionResult(policyID string, archived, deleted, errors int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	if !c.policyLimiter.Allow(policyID) {
		policyID = otherLabel
	}
	c.retention.RecordResult(policyID, archived, deleted, errors, duration)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func checkOutcome(r *compliance.Result) string {
	switch {
	case r.Blocked:
		return "blocked"
	case !r.Compliant:
		return "violation"
	default:
		return "compliant"
	}
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of distinct label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter allowing maxCardinality values.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether a value may be used as a label. Values already
// seen are always allowed.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
