package report

import (
	"sort"

	"lakumart/backoffice/internal/domain"
)

// MergeStats counts records the reconciler had to set aside. They feed the
// partial-failure banner and never abort a merge.
type MergeStats struct {
	MissingTimestamp int `json:"missing_timestamp,omitempty"`
	DuplicateIDs     int `json:"duplicate_ids,omitempty"`
}

// Merge combines the remote ledger page with the offline ledger records into
// one de-duplicated, spec-filtered set sorted newest first.
//
// Local ids are namespaced so the two id spaces cannot collide by
// construction; dedup by id is still performed defensively, keeping the
// first-seen record. A record without a timestamp is dropped and counted.
// The function is pure: same inputs, same output, no hidden state.
func Merge(remote, local []domain.Transaction, spec FilterSpec) ([]domain.Transaction, MergeStats) {
	var stats MergeStats

	merged := make([]domain.Transaction, 0, len(remote)+len(local))
	seen := make(map[string]struct{}, len(remote)+len(local))

	for _, tx := range append(append([]domain.Transaction(nil), remote...), local...) {
		if tx.Timestamp.IsZero() {
			stats.MissingTimestamp++
			continue
		}
		if tx.ID != "" {
			if _, dup := seen[tx.ID]; dup {
				stats.DuplicateIDs++
				continue
			}
			seen[tx.ID] = struct{}{}
		}
		if !spec.Matches(tx) {
			continue
		}
		merged = append(merged, tx)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		if a.Origin != b.Origin {
			return a.Origin == domain.OriginRemote
		}
		return a.ID < b.ID
	})

	return merged, stats
}
