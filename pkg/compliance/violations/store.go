// Package violations stores compliance violations behind a repository
// interface. The memory store is a bounded arena suited to a single
// process; the SQLite store keeps violations across restarts.
package violations

import (
	"context"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
)

// Filter selects violations. Zero-valued fields do not filter.
type Filter struct {
	RuleID   string
	Type     compliance.RuleType
	Severity compliance.Severity
	TenantID string
	Resolved *bool

	// StartTime and EndTime bound the violation timestamp, inclusive.
	StartTime *time.Time
	EndTime   *time.Time

	// Offset and Limit paginate results ordered oldest first.
	Offset int
	Limit  int
}

// Matches reports whether v passes the filter, ignoring pagination.
func (f *Filter) Matches(v *compliance.Violation) bool {
	if f == nil {
		return true
	}
	if f.RuleID != "" && v.RuleID != f.RuleID {
		return false
	}
	if f.Type != "" && v.Type != f.Type {
		return false
	}
	if f.Severity != "" && v.Severity != f.Severity {
		return false
	}
	if f.TenantID != "" && v.Data.TenantID != f.TenantID {
		return false
	}
	if f.Resolved != nil && v.Resolved != *f.Resolved {
		return false
	}
	if f.StartTime != nil && v.Timestamp.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && v.Timestamp.After(*f.EndTime) {
		return false
	}
	return true
}

// Store is a violation repository. Implementations are safe for
// concurrent use and return copies.
type Store interface {
	// Save inserts or replaces a violation by id.
	Save(ctx context.Context, v *compliance.Violation) error

	// Get returns a violation or compliance.ErrViolationNotFound.
	Get(ctx context.Context, id string) (*compliance.Violation, error)

	// Resolve marks a violation resolved. It reports false, with no error,
	// when the id is unknown. Resolving twice overwrites the first resolution.
	Resolve(ctx context.Context, id, resolvedBy, notes string, at time.Time) (bool, error)

	// List returns matching violations ordered by timestamp, oldest first.
	List(ctx context.Context, filter *Filter) ([]*compliance.Violation, error)

	// Count returns the number of matching violations, ignoring pagination.
	Count(ctx context.Context, filter *Filter) (int64, error)

	// Close releases resources.
	Close() error
}

func paginate(vs []*compliance.Violation, filter *Filter) []*compliance.Violation {
	if filter == nil {
		return vs
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(vs) {
			return []*compliance.Violation{}
		}
		vs = vs[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(vs) {
		vs = vs[:filter.Limit]
	}
	return vs
}
