package retention

import "time"

// Exception overrides the delete window of a policy for matching records.
type Exception struct {
	// Condition is a govaluate expression over record attributes.
	Condition string `json:"condition" yaml:"condition"`

	// RetentionPeriod replaces the policy's delete window, in days.
	RetentionPeriod int `json:"retention_period" yaml:"retention_period"`

	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Policy is a retention policy. Periods are in days. A zero ArchiveAfter
// disables archiving and a zero DeleteAfter disables deletion.
type Policy struct {
	ID              string      `json:"id" yaml:"id"`
	Name            string      `json:"name" yaml:"name"`
	Description     string      `json:"description,omitempty" yaml:"description,omitempty"`
	DataTypes       []string    `json:"data_types" yaml:"data_types"`
	RetentionPeriod int         `json:"retention_period" yaml:"retention_period"`
	ArchiveAfter    int         `json:"archive_after" yaml:"archive_after"`
	DeleteAfter     int         `json:"delete_after" yaml:"delete_after"`
	Exceptions      []Exception `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
	Enabled         bool        `json:"enabled" yaml:"enabled"`
}

// Clone returns a copy of the policy that shares no slices with p.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	c := *p
	c.DataTypes = append([]string(nil), p.DataTypes...)
	c.Exceptions = append([]Exception(nil), p.Exceptions...)
	return &c
}

// governs reports whether the policy applies to a data type.
func (p *Policy) governs(dataType string) bool {
	for _, t := range p.DataTypes {
		if t == dataType {
			return true
		}
	}
	return false
}

// Record is one unit of retained data.
type Record struct {
	ID         string         `json:"id"`
	DataType   string         `json:"data_type"`
	TenantID   string         `json:"tenant_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	Archived   bool           `json:"archived"`
	ArchivedAt *time.Time     `json:"archived_at,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Result is the outcome of one policy in one sweep.
type Result struct {
	PolicyID       string        `json:"policy_id"`
	ProcessedCount int           `json:"processed_count"`
	ArchivedCount  int           `json:"archived_count"`
	DeletedCount   int           `json:"deleted_count"`
	ExceptionCount int           `json:"exception_count"`
	Errors         []string      `json:"errors,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Run is the outcome of a sweep over all enabled policies. The counts are
// the sums of the per-policy results.
type Run struct {
	TenantID       string        `json:"tenant_id,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Policies       []*Result     `json:"policies"`
	ProcessedCount int           `json:"processed_count"`
	ArchivedCount  int           `json:"archived_count"`
	DeletedCount   int           `json:"deleted_count"`
	Errors         []string      `json:"errors,omitempty"`
}

func (r *Run) add(res *Result) {
	r.Policies = append(r.Policies, res)
	r.ProcessedCount += res.ProcessedCount
	r.ArchivedCount += res.ArchivedCount
	r.DeletedCount += res.DeletedCount
	for _, e := range res.Errors {
		r.Errors = append(r.Errors, res.PolicyID+": "+e)
	}
}
