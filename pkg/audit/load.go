package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"mercator-hq/sentinel/pkg/statestore"
)

// Load reads persisted entries back from a state store, applies filter and
// returns them ordered by timestamp. Keys that expire between listing and
// reading are skipped.
func Load(ctx context.Context, store statestore.Store, filter *Filter) ([]*Entry, error) {
	if filter == nil {
		filter = &Filter{}
	}

	keys, err := store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	entries := make([]*Entry, 0, len(keys))
	for _, key := range keys {
		var e Entry
		if err := store.GetState(ctx, key, &e); err != nil {
			if errors.Is(err, statestore.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("read audit entry %s: %w", key, err)
		}
		if filter.Matches(&e) {
			entries = append(entries, &e)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Sequence < entries[j].Sequence
		}
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})

	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[len(entries)-filter.Limit:]
	}
	return entries, nil
}
