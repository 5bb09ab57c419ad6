// Package planner decides which media items to evict when a library root
// exceeds its disk budget. Planning is a pure function of the snapshot it
// is handed: same items and usage in, same plan out.
package planner

import (
	"sort"

	"github.com/javi11/mediahook/internal/library"
)

// Plan is the ordered eviction decision for one root.
type Plan struct {
	// Items to evict, oldest first.
	Items []library.MediaItem

	// BytesToFree is the sum of the planned item sizes.
	BytesToFree int64

	// OverBy is how far usage exceeded the threshold when planning ran.
	OverBy int64

	// ThresholdUnreachable is set when every eligible item is planned and
	// usage still cannot come back under the threshold. Soft warning: the
	// plan is still applied.
	ThresholdUnreachable bool
}

// Empty reports whether nothing needs to be evicted.
func (p Plan) Empty() bool {
	return len(p.Items) == 0
}

// Build computes the eviction plan for a root snapshot.
//
// Items tagged no_delete are never considered, nor are items carrying
// protectTag when one is configured for the root. Eligible items are
// ordered by AddedAt ascending with ID as tiebreaker, then accumulated
// greedily until projected usage falls to the threshold or below.
// Exceeding the threshold by a single byte triggers planning; sitting
// exactly at it does not.
func Build(items []library.MediaItem, usedBytes, thresholdBytes int64, protectTag string) Plan {
	if usedBytes <= thresholdBytes {
		return Plan{}
	}

	plan := Plan{OverBy: usedBytes - thresholdBytes}

	eligible := make([]library.MediaItem, 0, len(items))
	for _, item := range items {
		if item.ProtectedBy(protectTag) {
			continue
		}
		eligible = append(eligible, item)
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].AddedAt.Equal(eligible[j].AddedAt) {
			return eligible[i].AddedAt.Before(eligible[j].AddedAt)
		}
		return eligible[i].ID < eligible[j].ID
	})

	remaining := usedBytes
	for _, item := range eligible {
		if remaining <= thresholdBytes {
			break
		}
		plan.Items = append(plan.Items, item)
		plan.BytesToFree += item.SizeBytes
		remaining -= item.SizeBytes
	}

	if remaining > thresholdBytes {
		plan.ThresholdUnreachable = true
	}

	return plan
}
