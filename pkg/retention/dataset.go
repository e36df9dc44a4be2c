package retention

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/statestore"
)

// ErrRecordNotFound is returned when a record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Dataset is the data a retention sweep operates on.
type Dataset interface {
	// Put inserts or replaces a record.
	Put(ctx context.Context, rec *Record) error

	// Records returns the live records of the given data types, oldest
	// first. An empty tenantID matches every tenant.
	Records(ctx context.Context, dataTypes []string, tenantID string) ([]*Record, error)

	// MarkArchived flags a record as archived.
	MarkArchived(ctx context.Context, id string, at time.Time) error

	// Delete removes a record.
	Delete(ctx context.Context, id string) error
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Attributes = compliance.CopyData(r.Attributes)
	if r.ArchivedAt != nil {
		t := *r.ArchivedAt
		c.ArchivedAt = &t
	}
	return &c
}

func selectRecord(r *Record, types map[string]struct{}, tenantID string) bool {
	if _, ok := types[r.DataType]; !ok {
		return false
	}
	return tenantID == "" || r.TenantID == tenantID
}

func typeSet(dataTypes []string) map[string]struct{} {
	set := make(map[string]struct{}, len(dataTypes))
	for _, t := range dataTypes {
		set[t] = struct{}{}
	}
	return set
}

func sortByAge(records []*Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
}

// MemoryDataset keeps records in process memory.
type MemoryDataset struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryDataset creates a dataset holding copies of records.
func NewMemoryDataset(records ...*Record) *MemoryDataset {
	d := &MemoryDataset{records: make(map[string]*Record, len(records))}
	for _, r := range records {
		d.records[r.ID] = cloneRecord(r)
	}
	return d
}

// Put implements Dataset.
func (d *MemoryDataset) Put(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Records implements Dataset.
func (d *MemoryDataset) Records(ctx context.Context, dataTypes []string, tenantID string) ([]*Record, error) {
	types := typeSet(dataTypes)

	d.mu.RLock()
	out := make([]*Record, 0, len(d.records))
	for _, r := range d.records {
		if selectRecord(r, types, tenantID) {
			out = append(out, cloneRecord(r))
		}
	}
	d.mu.RUnlock()

	sortByAge(out)
	return out, nil
}

// MarkArchived implements Dataset.
func (d *MemoryDataset) MarkArchived(ctx context.Context, id string, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	r.Archived = true
	r.ArchivedAt = &at
	return nil
}

// Delete implements Dataset.
func (d *MemoryDataset) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	delete(d.records, id)
	return nil
}

// Get returns a copy of a record.
func (d *MemoryDataset) Get(id string) (*Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[id]
	if !ok {
		return nil, false
	}
	return cloneRecord(r), true
}

// Len returns the number of records.
func (d *MemoryDataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// StoreDataset keeps records in a statestore.Store under "retention:<id>".
// Records are persistent and never expire on their own.
type StoreDataset struct {
	store  statestore.Store
	prefix string
}

// StoreDatasetPrefix prefixes the state store key of every record.
const StoreDatasetPrefix = "retention:"

// NewStoreDataset creates a dataset backed by a state store.
func NewStoreDataset(store statestore.Store) *StoreDataset {
	return &StoreDataset{store: store, prefix: StoreDatasetPrefix}
}

var persistent = statestore.Metadata{Persistent: true}

// Put implements Dataset.
func (d *StoreDataset) Put(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	return d.store.SetState(ctx, d.prefix+rec.ID, rec, persistent)
}

// Records implements Dataset.
func (d *StoreDataset) Records(ctx context.Context, dataTypes []string, tenantID string) ([]*Record, error) {
	keys, err := d.store.Keys(ctx, d.prefix)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	types := typeSet(dataTypes)
	out := make([]*Record, 0, len(keys))
	for _, key := range keys {
		var r Record
		if err := d.store.GetState(ctx, key, &r); err != nil {
			if errors.Is(err, statestore.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("read record %s: %w", key, err)
		}
		if selectRecord(&r, types, tenantID) {
			out = append(out, &r)
		}
	}

	sortByAge(out)
	return out, nil
}

// MarkArchived implements Dataset.
func (d *StoreDataset) MarkArchived(ctx context.Context, id string, at time.Time) error {
	var r Record
	if err := d.store.GetState(ctx, d.prefix+id, &r); err != nil {
		if errors.Is(err, statestore.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return err
	}
	r.Archived = true
	r.ArchivedAt = &at
	return d.store.SetState(ctx, d.prefix+id, &r, persistent)
}

// Delete implements Dataset.
func (d *StoreDataset) Delete(ctx context.Context, id string) error {
	return d.store.DeleteState(ctx, d.prefix+id)
}
