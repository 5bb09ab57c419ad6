// Package reconciler orchestrates eviction runs: planning against the
// disk budget, matching evicted items to their torrents, gating on
// seeding state and applying the resulting deletions.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/javi11/mediahook/internal/config"
	apperrors "github.com/javi11/mediahook/internal/errors"
	"github.com/javi11/mediahook/internal/events"
	"github.com/javi11/mediahook/internal/library"
	"github.com/javi11/mediahook/internal/planner"
	"github.com/javi11/mediahook/internal/qbit"
	"github.com/javi11/mediahook/internal/slogutil"
)

// Library is the engine's view over the media providers.
type Library interface {
	RootNames() []string
	Provider(root string) (library.Provider, error)
	Refresh(ctx context.Context, root string) ([]library.MediaItem, error)
	DiskUsage(ctx context.Context, root string) (int64, error)
	Delete(ctx context.Context, root string, item library.MediaItem) error
}

// TorrentFinder locates the torrents backing library content.
type TorrentFinder interface {
	FindByPath(ctx context.Context, filePath string) ([]qbit.TorrentRef, error)
	FindByHashes(ctx context.Context, hashes []string) ([]qbit.TorrentRef, error)
	FindByTitle(ctx context.Context, title string) ([]qbit.TorrentRef, error)
}

// TorrentStore applies torrent deletions and knows per-instance seed
// budgets.
type TorrentStore interface {
	SeedLimit(instance string) int64
	Delete(ctx context.Context, ref qbit.TorrentRef, deleteFiles bool) error
}

// OutcomeSink receives finished run outcomes (notifications).
type OutcomeSink interface {
	OutcomeReady(outcome *Outcome)
}

// Engine serializes reconciliation per root and exposes the two entry
// points of the system: import events and manual import cleanups.
type Engine struct {
	lib      Library
	finder   TorrentFinder
	torrents TorrentStore
	cfg      config.ConfigGetter
	sink     OutcomeSink
	log      *slog.Logger

	mu       sync.Mutex
	busy     map[string]bool
	last     map[string]*Outcome
	closed   bool
	inFlight sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithOutcomeSink delivers finished outcomes to a notifier.
func WithOutcomeSink(sink OutcomeSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// NewEngine wires the reconciliation engine.
func NewEngine(lib Library, finder TorrentFinder, torrents TorrentStore, cfg config.ConfigGetter, opts ...Option) *Engine {
	e := &Engine{
		lib:      lib,
		finder:   finder,
		torrents: torrents,
		cfg:      cfg,
		busy:     make(map[string]bool),
		last:     make(map[string]*Outcome),
		log:      slog.Default().With("component", "reconciler"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnImportEvent reacts to a normalized import event. Fire and forget: the
// threshold check runs in the background against every root the event's
// provider manages. Request events never trigger reconciliation.
func (e *Engine) OnImportEvent(ev events.ImportEvent) {
	if ev.Kind == events.KindRequest {
		return
	}

	cfg := e.cfg()
	roots := cfg.RootsForProvider(string(ev.Provider))
	if len(roots) == 0 {
		e.log.Debug("no roots configured for provider", "provider", ev.Provider)
		return
	}

	for _, root := range roots {
		go func(name string) {
			// detached from the webhook request so an in-flight run
			// survives the HTTP response
			if _, err := e.TriggerRoot(context.Background(), name); err != nil {
				e.log.Warn("triggered reconciliation failed", "root", name, "err", err)
			}
		}(root.Name)
	}
}

// TriggerRoot runs one reconciliation pass for the named root. A trigger
// while the root is already reconciling coalesces into a skipped outcome;
// it never queues.
func (e *Engine) TriggerRoot(ctx context.Context, rootName string) (*Outcome, error) {
	cfg := e.cfg()
	root, ok := cfg.RootByName(rootName)
	if !ok {
		return nil, fmt.Errorf("unknown library root %q", rootName)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, fmt.Errorf("engine is shutting down")
	}
	if e.busy[rootName] {
		e.mu.Unlock()
		e.log.Debug("reconciliation already running, trigger coalesced", "root", rootName)
		return &Outcome{Root: rootName, Stage: StageIdle, Skipped: true}, nil
	}
	e.busy[rootName] = true
	e.inFlight.Add(1)
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.busy, rootName)
		e.mu.Unlock()
		e.inFlight.Done()
	}()

	ctx = slogutil.With(ctx, "root", rootName)
	outcome := e.runRoot(ctx, root, cfg.General.IsDryRun())

	e.mu.Lock()
	e.last[rootName] = outcome
	e.mu.Unlock()

	if e.sink != nil && outcome.Acted() {
		e.sink.OutcomeReady(outcome)
	}
	return outcome, nil
}

// SweepAll triggers every configured root. Used by the periodic sweep.
func (e *Engine) SweepAll(ctx context.Context) {
	for _, name := range e.lib.RootNames() {
		if _, err := e.TriggerRoot(ctx, name); err != nil {
			e.log.Warn("sweep failed", "root", name, "err", err)
		}
	}
}

// LastOutcomes returns the most recent outcome per root.
func (e *Engine) LastOutcomes() map[string]*Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]*Outcome, len(e.last))
	for k, v := range e.last {
		out[k] = v
	}
	return out
}

// BusyRoots returns the roots currently reconciling.
func (e *Engine) BusyRoots() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var roots []string
	for name, busy := range e.busy {
		if busy {
			roots = append(roots, name)
		}
	}
	return roots
}

// Close stops accepting triggers and waits for in-flight runs to finish
// applying. Queued work is dropped, never resumed.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.inFlight.Wait()
}

func (e *Engine) runRoot(ctx context.Context, root config.LibraryRootConfig, dryRun bool) *Outcome {
	outcome := &Outcome{
		Root:      root.Name,
		Stage:     StagePlanning,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}
	defer func() {
		outcome.FinishedAt = time.Now()
	}()

	used, err := e.lib.DiskUsage(ctx, root.Name)
	if err != nil {
		e.log.WarnContext(ctx, "planning failed", "err", err)
		outcome.Stage = StageFailed
		outcome.recordError(err)
		return outcome
	}

	threshold := root.ThresholdBytes()
	if used <= threshold {
		e.log.DebugContext(ctx, "usage under threshold, nothing to do",
			"used", used, "threshold", threshold)
		outcome.Stage = StageDone
		return outcome
	}

	items, err := e.lib.Refresh(ctx, root.Name)
	if err != nil {
		e.log.WarnContext(ctx, "planning failed", "err", err)
		outcome.Stage = StageFailed
		outcome.recordError(err)
		return outcome
	}

	plan := planner.Build(items, used, threshold, root.NoDeleteTag)
	outcome.BytesPlanned = plan.BytesToFree
	if plan.ThresholdUnreachable {
		outcome.ThresholdUnreachable = true
		outcome.recordError(fmt.Errorf("%w: root %s over budget by %d bytes",
			apperrors.ErrThresholdUnreachable, root.Name, plan.OverBy))
		e.log.WarnContext(ctx, "eligible items cannot reach threshold",
			"over_by", plan.OverBy, "plannable", plan.BytesToFree)
	}
	if plan.Empty() {
		outcome.Stage = StageDone
		return outcome
	}

	e.log.InfoContext(ctx, "eviction planned",
		"items", len(plan.Items),
		"bytes_to_free", plan.BytesToFree,
		"dry_run", dryRun)

	// Matching
	outcome.Stage = StageMatching
	matched := make([][]qbit.TorrentRef, len(plan.Items))
	for i, item := range plan.Items {
		refs, err := e.finder.FindByPath(ctx, item.FilePath)
		if err != nil {
			if errors.Is(err, apperrors.ErrNoInstanceReachable) {
				// library-only deletion; torrents are reconciled next run
				e.log.WarnContext(ctx, "no torrent instance reachable, deleting library-side only",
					"item", item.Title)
				outcome.recordError(err)
				continue
			}
			outcome.recordError(err)
			continue
		}
		matched[i] = refs
	}

	// Gating
	outcome.Stage = StageGating
	decisions := make([][]Decision, len(plan.Items))
	for i, refs := range matched {
		decisions[i] = make([]Decision, len(refs))
		for j, ref := range refs {
			decisions[i][j] = Decide(ref.SeedingMinutes, e.torrents.SeedLimit(ref.Instance))
		}
	}

	// Applying
	outcome.Stage = StageApplying
	for i, item := range plan.Items {
		if !dryRun {
			if err := e.lib.Delete(ctx, root.Name, item); err != nil {
				outcome.recordError(apperrors.NewDeletionError(item.Title, err))
				e.log.WarnContext(ctx, "library deletion failed", "item", item.Title, "err", err)
				continue
			}
		}
		outcome.MediaDeleted = append(outcome.MediaDeleted, item)
		outcome.BytesFreed += item.SizeBytes

		for j, ref := range matched[i] {
			if decisions[i][j] != DeleteTorrent {
				e.log.InfoContext(ctx, "torrent still seeding, kept",
					"torrent", ref.Name,
					"instance", ref.Instance,
					"seeding_minutes", ref.SeedingMinutes)
				outcome.TorrentsKept = append(outcome.TorrentsKept, ref)
				continue
			}
			if !dryRun {
				if err := e.torrents.Delete(ctx, ref, true); err != nil {
					outcome.recordError(apperrors.NewDeletionError(ref.Name, err))
					continue
				}
			}
			outcome.TorrentsDeleted = append(outcome.TorrentsDeleted, ref)
		}
	}

	outcome.Stage = StageDone
	e.log.InfoContext(ctx, "reconciliation finished",
		"media_deleted", len(outcome.MediaDeleted),
		"torrents_deleted", len(outcome.TorrentsDeleted),
		"torrents_kept", len(outcome.TorrentsKept),
		"bytes_freed", outcome.BytesFreed,
		"errors", len(outcome.Errors),
		"dry_run", dryRun)
	return outcome
}

// ManualImport reconciles a manually imported release: the torrent that
// delivered it is located by exact path, then by the provider's grab
// history (hashes), then by strict title equality. Matched torrents past
// their seed budget are deleted with their data; the library entry is
// left alone.
func (e *Engine) ManualImport(ctx context.Context, rootName, filePath, title string) (*Outcome, error) {
	cfg := e.cfg()
	if _, ok := cfg.RootByName(rootName); !ok {
		return nil, fmt.Errorf("unknown library root %q", rootName)
	}

	ctx = slogutil.With(ctx, "root", rootName)
	dryRun := cfg.General.IsDryRun()
	outcome := &Outcome{
		Root:      rootName,
		Stage:     StageMatching,
		DryRun:    dryRun,
		StartedAt: time.Now(),
	}
	defer func() {
		outcome.FinishedAt = time.Now()
	}()

	refs, err := e.findManualImportTorrents(ctx, rootName, filePath, title, outcome)
	if err != nil {
		outcome.Stage = StageFailed
		outcome.recordError(err)
		return outcome, err
	}
	if len(refs) == 0 {
		e.log.InfoContext(ctx, "no torrent found for manual import", "path", filePath, "title", title)
		outcome.Stage = StageDone
		return outcome, nil
	}

	outcome.Stage = StageApplying
	for _, ref := range refs {
		if Decide(ref.SeedingMinutes, e.torrents.SeedLimit(ref.Instance)) != DeleteTorrent {
			outcome.TorrentsKept = append(outcome.TorrentsKept, ref)
			continue
		}
		if !dryRun {
			if err := e.torrents.Delete(ctx, ref, true); err != nil {
				outcome.recordError(apperrors.NewDeletionError(ref.Name, err))
				continue
			}
		}
		outcome.TorrentsDeleted = append(outcome.TorrentsDeleted, ref)
	}

	outcome.Stage = StageDone
	if e.sink != nil && outcome.Acted() {
		e.sink.OutcomeReady(outcome)
	}
	return outcome, nil
}

func (e *Engine) findManualImportTorrents(ctx context.Context, rootName, filePath, title string, outcome *Outcome) ([]qbit.TorrentRef, error) {
	refs, err := e.finder.FindByPath(ctx, filePath)
	if err != nil {
		return nil, err
	}
	if len(refs) > 0 {
		return refs, nil
	}

	// grab history: exact hash beats any name matching
	if item, ok := e.itemForPath(ctx, rootName, filePath); ok {
		provider, err := e.lib.Provider(rootName)
		if err == nil {
			hashes, err := provider.GrabbedHashes(ctx, item)
			if err != nil {
				e.log.WarnContext(ctx, "grab history lookup failed", "err", err)
				outcome.recordError(err)
			} else if len(hashes) > 0 {
				refs, err = e.finder.FindByHashes(ctx, hashes)
				if err != nil {
					return nil, err
				}
				if len(refs) > 0 {
					return refs, nil
				}
			}

			titles, err := provider.ImportSourceTitles(ctx, item)
			if err != nil {
				e.log.WarnContext(ctx, "import history lookup failed", "err", err)
				outcome.recordError(err)
			}
			for _, sourceTitle := range titles {
				matched, err := e.finder.FindByTitle(ctx, sourceTitle)
				if err != nil {
					return nil, err
				}
				refs = append(refs, matched...)
			}
			if len(refs) > 0 {
				return refs, nil
			}
		}
	}

	// last resort: strict normalized equality on the given title
	if title != "" {
		return e.finder.FindByTitle(ctx, title)
	}
	return nil, nil
}

func (e *Engine) itemForPath(ctx context.Context, rootName, filePath string) (library.MediaItem, bool) {
	items, err := e.lib.Refresh(ctx, rootName)
	if err != nil {
		e.log.WarnContext(ctx, "library refresh failed during manual import", "err", err)
		return library.MediaItem{}, false
	}
	for _, item := range items {
		if item.FilePath == filePath {
			return item, true
		}
	}
	return library.MediaItem{}, false
}
