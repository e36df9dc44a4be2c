package compliance

import (
	"context"
	"time"
)

// RuleType is the regulatory regime a rule belongs to.
type RuleType string

const (
	RuleTypeGDPR     RuleType = "gdpr"
	RuleTypeCCPA     RuleType = "ccpa"
	RuleTypeHIPAA    RuleType = "hipaa"
	RuleTypeSOX      RuleType = "sox"
	RuleTypePCIDSS   RuleType = "pci_dss"
	RuleTypeISO27001 RuleType = "iso27001"
	RuleTypeCustom   RuleType = "custom"
)

// IsValid reports whether t is a known rule type.
func (t RuleType) IsValid() bool {
	switch t {
	case RuleTypeGDPR, RuleTypeCCPA, RuleTypeHIPAA, RuleTypeSOX, RuleTypePCIDSS, RuleTypeISO27001, RuleTypeCustom:
		return true
	}
	return false
}

// DisplayName returns the human readable regime name.
func (t RuleType) DisplayName() string {
	switch t {
	case RuleTypeGDPR:
		return "GDPR"
	case RuleTypeCCPA:
		return "CCPA"
	case RuleTypeHIPAA:
		return "HIPAA"
	case RuleTypeSOX:
		return "SOX"
	case RuleTypePCIDSS:
		return "PCI DSS"
	case RuleTypeISO27001:
		return "ISO 27001"
	case RuleTypeCustom:
		return "Custom"
	default:
		return string(t)
	}
}

// Category groups rules by the control area they cover.
type Category string

const (
	CategoryDataProtection Category = "data_protection"
	CategoryAccessControl  Category = "access_control"
	CategoryAudit          Category = "audit"
	CategoryRetention      Category = "retention"
	CategoryPrivacy        Category = "privacy"
	CategorySecurity       Category = "security"
	CategoryFinancial      Category = "financial"
)

// ConditionType describes what a condition inspects.
type ConditionType string

const (
	ConditionDataAccess    ConditionType = "data_access"
	ConditionDataRetention ConditionType = "data_retention"
	ConditionUserConsent   ConditionType = "user_consent"
	ConditionDataTransfer  ConditionType = "data_transfer"
	ConditionEncryption    ConditionType = "encryption"
	ConditionAccessControl ConditionType = "access_control"
	ConditionCustom        ConditionType = "custom"
)

// Operator is a comparison operator used by a condition.
type Operator string

const (
	OperatorEquals      Operator = "equals"
	OperatorNotEquals   Operator = "not_equals"
	OperatorContains    Operator = "contains"
	OperatorGreaterThan Operator = "greater_than"
	OperatorLessThan    Operator = "less_than"
	OperatorIn          Operator = "in"
	OperatorNotIn       Operator = "not_in"
)

// IsValid reports whether o is a supported operator.
func (o Operator) IsValid() bool {
	switch o {
	case OperatorEquals, OperatorNotEquals, OperatorContains, OperatorGreaterThan,
		OperatorLessThan, OperatorIn, OperatorNotIn:
		return true
	}
	return false
}

// Predicate is a custom condition check. When set on a Condition it fully
// replaces the operator comparison.
type Predicate func(cond Condition, action *Action) bool

// Condition is a single expected property of a checked action. A condition
// that does not hold produces a violation.
type Condition struct {
	Type      ConditionType `json:"type" yaml:"type"`
	Field     string        `json:"field" yaml:"field"`
	Operator  Operator      `json:"operator" yaml:"operator"`
	Value     any           `json:"value,omitempty" yaml:"value,omitempty"`
	Predicate Predicate     `json:"-" yaml:"-"`
}

// ResponseActionType enumerates what happens when a rule is violated.
type ResponseActionType string

const (
	ResponseLog       ResponseActionType = "log"
	ResponseAlert     ResponseActionType = "alert"
	ResponseBlock     ResponseActionType = "block"
	ResponseEncrypt   ResponseActionType = "encrypt"
	ResponseAnonymize ResponseActionType = "anonymize"
	ResponseDelete    ResponseActionType = "delete"
	ResponseNotify    ResponseActionType = "notify"
	ResponseCustom    ResponseActionType = "custom"
)

// IsValid reports whether t is a known response action type.
func (t ResponseActionType) IsValid() bool {
	switch t {
	case ResponseLog, ResponseAlert, ResponseBlock, ResponseEncrypt, ResponseAnonymize,
		ResponseDelete, ResponseNotify, ResponseCustom:
		return true
	}
	return false
}

// ActionHandler runs a custom response action for a violation.
type ActionHandler func(ctx context.Context, v *Violation) error

// ResponseAction is executed once per violation of its rule.
type ResponseAction struct {
	Type       ResponseActionType `json:"type" yaml:"type"`
	Parameters map[string]any     `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Handler    ActionHandler      `json:"-" yaml:"-"`
}

// StringParam returns a string parameter or def when absent.
func (a ResponseAction) StringParam(key, def string) string {
	if v, ok := a.Parameters[key].(string); ok && v != "" {
		return v
	}
	return def
}

// RuleMetadata holds authorship, versioning and evaluation counters.
type RuleMetadata struct {
	CreatedBy       string     `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt       time.Time  `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedBy       string     `json:"updated_by,omitempty" yaml:"updated_by,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at" yaml:"updated_at,omitempty"`
	Version         int        `json:"version" yaml:"version,omitempty"`
	Tags            []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	EvaluationCount int64      `json:"evaluation_count" yaml:"-"`
	ViolationCount  int64      `json:"violation_count" yaml:"-"`
	LastEvaluated   *time.Time `json:"last_evaluated,omitempty" yaml:"-"`
}

// Rule is a declarative compliance rule.
type Rule struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Type        RuleType         `json:"type" yaml:"type"`
	Category    Category         `json:"category,omitempty" yaml:"category,omitempty"`
	Severity    Severity         `json:"severity" yaml:"severity"`
	Enabled     bool             `json:"enabled" yaml:"enabled"`
	Conditions  []Condition      `json:"conditions" yaml:"conditions"`
	Actions     []ResponseAction `json:"actions" yaml:"actions"`
	Metadata    RuleMetadata     `json:"metadata" yaml:"metadata,omitempty"`
}

// Clone returns a copy of the rule that shares no slices or maps with r.
// Condition values and action parameters are treated as immutable.
func (r *Rule) Clone() *Rule {
	if r == nil {
		return nil
	}
	c := *r
	c.Conditions = append([]Condition(nil), r.Conditions...)
	c.Actions = make([]ResponseAction, len(r.Actions))
	for i, a := range r.Actions {
		a.Parameters = copyMap(a.Parameters)
		c.Actions[i] = a
	}
	c.Metadata.Tags = append([]string(nil), r.Metadata.Tags...)
	if r.Metadata.LastEvaluated != nil {
		t := *r.Metadata.LastEvaluated
		c.Metadata.LastEvaluated = &t
	}
	return &c
}

// ComplianceRate returns the share of evaluations that produced no
// violation, as a percentage. A rule that was never evaluated is 100%.
func (r *Rule) ComplianceRate() float64 {
	return Rate(r.Metadata.EvaluationCount, r.Metadata.ViolationCount)
}

// Rate computes (evaluations - violations) / evaluations * 100, or 100 when
// there were no evaluations. The result is clamped to [0, 100].
func Rate(evaluations, violations int64) float64 {
	if evaluations <= 0 {
		return 100
	}
	rate := float64(evaluations-violations) / float64(evaluations) * 100
	if rate < 0 {
		return 0
	}
	return rate
}

// NetworkContext carries request origin details for an action.
type NetworkContext struct {
	IPAddress string `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty"`
}

// Action is a business action submitted for a compliance check.
type Action struct {
	Type               string          `json:"type" yaml:"type"`
	UserID             string          `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	TenantID           string          `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Resource           string          `json:"resource,omitempty" yaml:"resource,omitempty"`
	Data               map[string]any  `json:"data,omitempty" yaml:"data,omitempty"`
	Context            *NetworkContext `json:"context,omitempty" yaml:"context,omitempty"`
	DataClassification string          `json:"data_classification,omitempty" yaml:"data_classification,omitempty"`
	RetentionPolicy    string          `json:"retention_policy,omitempty" yaml:"retention_policy,omitempty"`
	Timestamp          time.Time       `json:"timestamp" yaml:"timestamp,omitempty"`
}

// Clone returns a copy of the action with its payload copied recursively.
func (a *Action) Clone() *Action {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = copyMap(a.Data)
	if a.Context != nil {
		nc := *a.Context
		c.Context = &nc
	}
	return &c
}

// ViolationData is the snapshot of what caused a violation.
type ViolationData struct {
	Condition Condition `json:"condition"`
	Action    *Action   `json:"action,omitempty"`
	TenantID  string    `json:"tenant_id,omitempty"`
}

// Violation records a single failed condition of a rule. Only the
// resolution fields change after creation.
type Violation struct {
	ID              string        `json:"id"`
	RuleID          string        `json:"rule_id"`
	RuleName        string        `json:"rule_name,omitempty"`
	CheckID         string        `json:"check_id,omitempty"`
	Type            RuleType      `json:"type"`
	Severity        Severity      `json:"severity"`
	Description     string        `json:"description"`
	Data            ViolationData `json:"data"`
	Timestamp       time.Time     `json:"timestamp"`
	Resolved        bool          `json:"resolved"`
	ResolutionNotes string        `json:"resolution_notes,omitempty"`
	ResolvedBy      string        `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time    `json:"resolved_at,omitempty"`
}

// Clone returns a deep copy of the violation.
func (v *Violation) Clone() *Violation {
	if v == nil {
		return nil
	}
	c := *v
	c.Data.Action = v.Data.Action.Clone()
	if v.ResolvedAt != nil {
		t := *v.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// Resolve marks the violation as resolved. Calling it again overwrites the
// previous resolution.
func (v *Violation) Resolve(resolvedBy, notes string, at time.Time) {
	v.Resolved = true
	v.ResolvedBy = resolvedBy
	v.ResolutionNotes = notes
	v.ResolvedAt = &at
}

// ActionResult is the outcome of one response action for one violation.
type ActionResult struct {
	ViolationID string             `json:"violation_id"`
	RuleID      string             `json:"rule_id"`
	ActionType  ResponseActionType `json:"action_type"`
	Success     bool               `json:"success"`
	Details     map[string]any     `json:"details,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// RuleFailure flags a rule whose evaluation aborted. The rule contributed
// no violations to the result.
type RuleFailure struct {
	RuleID string `json:"rule_id"`
	Error  string `json:"error"`
}

// Result is the outcome of a compliance check.
type Result struct {
	CheckID         string          `json:"check_id"`
	TenantID        string          `json:"tenant_id,omitempty"`
	Compliant       bool            `json:"compliant"`
	Violations      []*Violation    `json:"violations"`
	Severity        Severity        `json:"severity"`
	Recommendations []string        `json:"recommendations"`
	AuditRequired   bool            `json:"audit_required"`
	Blocked         bool            `json:"blocked"`
	ActionResults   []*ActionResult `json:"action_results,omitempty"`
	RuleFailures    []RuleFailure   `json:"rule_failures,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
	Duration        time.Duration   `json:"duration"`
}

// Summarize fills the derived fields of r from its violations: compliance,
// severity, recommendations and the audit flag.
func (r *Result) Summarize() {
	r.Compliant = len(r.Violations) == 0
	r.Severity = HighestSeverity(r.Violations)
	r.Recommendations = Recommendations(r.Violations)
	r.AuditRequired = r.Severity.RequiresAudit()
}

// RuleIDs returns the distinct rule ids of the violations in first-seen order.
func (r *Result) RuleIDs() []string {
	seen := make(map[string]struct{}, len(r.Violations))
	var ids []string
	for _, v := range r.Violations {
		if _, ok := seen[v.RuleID]; ok {
			continue
		}
		seen[v.RuleID] = struct{}{}
		ids = append(ids, v.RuleID)
	}
	return ids
}

// CopyData returns a deep copy of an action payload. Nested maps and
// []any slices are copied; other values are shared.
func CopyData(m map[string]any) map[string]any {
	return copyMap(m)
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
