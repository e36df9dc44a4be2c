package audit

import "time"

// Filter selects audit entries. Zero fields match everything; time bounds
// are inclusive.
type Filter struct {
	UserID     string
	TenantID   string
	ActionType string
	StartTime  time.Time
	EndTime    time.Time

	// Limit keeps only the most recent matches. Zero means no limit.
	Limit int
}

// Matches reports whether e passes the filter.
func (f *Filter) Matches(e *Entry) bool {
	if e == nil {
		return false
	}
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if f.ActionType != "" && e.Action != f.ActionType {
		return false
	}
	if !f.StartTime.IsZero() && e.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && e.Timestamp.After(f.EndTime) {
		return false
	}
	return true
}
