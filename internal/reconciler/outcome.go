package reconciler

import (
	"time"

	"github.com/javi11/mediahook/internal/library"
	"github.com/javi11/mediahook/internal/qbit"
)

// Stage names the phases of one reconciliation run.
type Stage string

const (
	StageIdle     Stage = "idle"
	StagePlanning Stage = "planning"
	StageMatching Stage = "matching"
	StageGating   Stage = "gating"
	StageApplying Stage = "applying"
	StageDone     Stage = "done"
	StageFailed   Stage = "failed"
)

// Outcome reports what one reconciliation run did (or, in dry-run mode,
// would have done).
type Outcome struct {
	Root       string    `json:"root"`
	Stage      Stage     `json:"stage"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Skipped means the trigger coalesced into a run already in flight.
	Skipped bool `json:"skipped,omitempty"`

	// ThresholdUnreachable is the planner's soft warning: even evicting
	// everything eligible cannot get back under budget.
	ThresholdUnreachable bool `json:"threshold_unreachable,omitempty"`

	BytesPlanned int64 `json:"bytes_planned"`
	BytesFreed   int64 `json:"bytes_freed"`

	MediaDeleted    []library.MediaItem `json:"media_deleted,omitempty"`
	TorrentsDeleted []qbit.TorrentRef   `json:"torrents_deleted,omitempty"`
	TorrentsKept    []qbit.TorrentRef   `json:"torrents_kept,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

func (o *Outcome) recordError(err error) {
	o.Errors = append(o.Errors, err.Error())
}

// Acted reports whether the run did (or simulated) anything worth
// notifying about.
func (o *Outcome) Acted() bool {
	return len(o.MediaDeleted) > 0 || len(o.TorrentsDeleted) > 0 ||
		len(o.TorrentsKept) > 0 || len(o.Errors) > 0
}
