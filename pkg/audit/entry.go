package audit

import (
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

// ComplianceContext summarizes the compliance result an entry was logged with.
type ComplianceContext struct {
	CheckID            string              `json:"check_id,omitempty"`
	RuleIDs            []string            `json:"rule_ids,omitempty"`
	Severity           compliance.Severity `json:"severity,omitempty"`
	Compliant          bool                `json:"compliant"`
	Blocked            bool                `json:"blocked,omitempty"`
	ViolationCount     int                 `json:"violation_count"`
	DataClassification string              `json:"data_classification,omitempty"`
	RetentionPolicy    string              `json:"retention_policy,omitempty"`
}

// Entry is one audit trail record. Entries are immutable once appended.
type Entry struct {
	ID        string         `json:"id"`
	Sequence  uint64         `json:"sequence"`
	Action    string         `json:"action"`
	UserID    string         `json:"user_id,omitempty"`
	TenantID  string         `json:"tenant_id,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Compliance *ComplianceContext `json:"compliance,omitempty"`
}

// newEntry builds an entry from a checked action and its result. Either may
// be nil.
func newEntry(id string, action *compliance.Action, result *compliance.Result, now time.Time) *Entry {
	e := &Entry{ID: id, Timestamp: now}

	if action != nil {
		snapshot := action.Clone()
		e.Action = snapshot.Type
		e.UserID = snapshot.UserID
		e.TenantID = snapshot.TenantID
		e.Resource = snapshot.Resource
		e.Data = snapshot.Data
		if snapshot.Context != nil {
			e.IPAddress = snapshot.Context.IPAddress
			e.UserAgent = snapshot.Context.UserAgent
			e.SessionID = snapshot.Context.SessionID
		}
	}

	if result != nil {
		cc := &ComplianceContext{
			CheckID:        result.CheckID,
			RuleIDs:        result.RuleIDs(),
			Severity:       result.Severity,
			Compliant:      result.Compliant,
			Blocked:        result.Blocked,
			ViolationCount: len(result.Violations),
		}
		if action != nil {
			cc.DataClassification = action.DataClassification
			cc.RetentionPolicy = action.RetentionPolicy
		}
		if e.TenantID == "" {
			e.TenantID = result.TenantID
		}
		e.Compliance = cc
	}

	return e
}

// clone returns a copy sharing no maps or slices with e.
func (e *Entry) clone() *Entry {
	if e == nil {
		return nil
	}
	c := *e
	c.Data = compliance.CopyData(e.Data)
	if e.Compliance != nil {
		cc := *e.Compliance
		cc.RuleIDs = append([]string(nil), e.Compliance.RuleIDs...)
		c.Compliance = &cc
	}
	return &c
}
