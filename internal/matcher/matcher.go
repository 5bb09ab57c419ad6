// Package matcher finds the torrents backing a library item across all
// configured qBittorrent instances. Matching is deliberately strict:
// exact file paths for automatic flows, exact hashes or byte-equal
// normalized titles for manual imports. A missed match costs seed ratio;
// a false positive deletes someone else's data.
package matcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	concpool "github.com/sourcegraph/conc/pool"

	apperrors "github.com/javi11/mediahook/internal/errors"
	"github.com/javi11/mediahook/internal/qbit"
)

// Source is one queryable torrent instance.
type Source interface {
	Name() string
	Torrents(ctx context.Context) ([]qbit.TorrentRef, error)
	Files(ctx context.Context, hash string) ([]string, error)
}

const (
	defaultMaxParallel   = 4
	defaultSourceTimeout = 15 * time.Second
)

// Matcher fans queries out across instances and merges the results.
type Matcher struct {
	sources       []Source
	maxParallel   int
	sourceTimeout time.Duration
	log           *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithMaxParallel bounds concurrent instance queries.
func WithMaxParallel(n int) Option {
	return func(m *Matcher) {
		if n > 0 {
			m.maxParallel = n
		}
	}
}

// WithSourceTimeout bounds each instance query.
func WithSourceTimeout(d time.Duration) Option {
	return func(m *Matcher) {
		if d > 0 {
			m.sourceTimeout = d
		}
	}
}

// New creates a Matcher over the given sources.
func New(sources []Source, opts ...Option) *Matcher {
	m := &Matcher{
		sources:       sources,
		maxParallel:   defaultMaxParallel,
		sourceTimeout: defaultSourceTimeout,
		log:           slog.Default().With("component", "matcher"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FindByPath returns every torrent (cross-seeds included) whose content
// includes the given library file, matched by exact path.
func (m *Matcher) FindByPath(ctx context.Context, filePath string) ([]qbit.TorrentRef, error) {
	return m.fanOut(ctx, func(ctx context.Context, s Source) ([]qbit.TorrentRef, error) {
		return matchByPath(ctx, s, filePath)
	})
}

// FindByHashes returns torrents whose info hash appears in the given set.
func (m *Matcher) FindByHashes(ctx context.Context, hashes []string) ([]qbit.TorrentRef, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	return m.fanOut(ctx, func(ctx context.Context, s Source) ([]qbit.TorrentRef, error) {
		torrents, err := s.Torrents(ctx)
		if err != nil {
			return nil, err
		}
		var matches []qbit.TorrentRef
		for _, t := range torrents {
			for _, hash := range hashes {
				if t.MatchesHash(hash) {
					matches = append(matches, t)
					break
				}
			}
		}
		return matches, nil
	})
}

// FindByTitle returns torrents whose name normalizes to exactly the same
// key as the given release title. This fallback exists for manual imports
// only, where no file path links the library entry to its torrent.
func (m *Matcher) FindByTitle(ctx context.Context, title string) ([]qbit.TorrentRef, error) {
	key := Normalize(title)
	if key == "" {
		return nil, nil
	}
	return m.fanOut(ctx, func(ctx context.Context, s Source) ([]qbit.TorrentRef, error) {
		torrents, err := s.Torrents(ctx)
		if err != nil {
			return nil, err
		}
		var matches []qbit.TorrentRef
		for _, t := range torrents {
			if Normalize(t.Name) == key || Normalize(filepath.Base(t.ContentPath)) == key {
				matches = append(matches, t)
			}
		}
		return matches, nil
	})
}

// matchByPath prefilters by save path, then confirms against the actual
// torrent file list.
func matchByPath(ctx context.Context, s Source, filePath string) ([]qbit.TorrentRef, error) {
	torrents, err := s.Torrents(ctx)
	if err != nil {
		return nil, err
	}

	wantBase := filepath.Base(filePath)
	wantDir := filepath.Base(filepath.Dir(filePath))

	var matches []qbit.TorrentRef
	for _, t := range torrents {
		if !pathCandidate(t, filePath, wantBase) {
			continue
		}

		files, err := s.Files(ctx, t.Hash)
		if err != nil {
			return nil, err
		}

		for _, name := range files {
			full := filepath.Join(t.SavePath, name)
			if full == filePath ||
				(filepath.Base(name) == wantBase && filepath.Base(filepath.Dir(full)) == wantDir) {
				t.FilePaths = files
				matches = append(matches, t)
				break
			}
		}
	}
	return matches, nil
}

// pathCandidate is a cheap filter to avoid fetching file lists for every
// torrent on the instance.
func pathCandidate(t qbit.TorrentRef, filePath, wantBase string) bool {
	if t.SavePath != "" && withinDir(t.SavePath, filePath) {
		return true
	}
	if t.ContentPath == "" {
		return false
	}
	if t.ContentPath == filePath || withinDir(t.ContentPath, filePath) {
		return true
	}
	return filepath.Base(t.ContentPath) == wantBase
}

func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

type sourceResult struct {
	source string
	refs   []qbit.TorrentRef
	err    error
}

// fanOut queries every source concurrently and merges once all respond or
// time out. Individual source failures are skipped and logged; only a
// total blackout is an error.
func (m *Matcher) fanOut(ctx context.Context, query func(context.Context, Source) ([]qbit.TorrentRef, error)) ([]qbit.TorrentRef, error) {
	if len(m.sources) == 0 {
		return nil, apperrors.ErrNoInstanceReachable
	}

	p := concpool.NewWithResults[sourceResult]().WithMaxGoroutines(m.maxParallel)
	for _, s := range m.sources {
		p.Go(func() sourceResult {
			qctx, cancel := context.WithTimeout(ctx, m.sourceTimeout)
			defer cancel()

			refs, err := query(qctx, s)
			return sourceResult{source: s.Name(), refs: refs, err: err}
		})
	}
	results := p.Wait()

	var merged []qbit.TorrentRef
	failures := 0
	for _, res := range results {
		if res.err != nil {
			failures++
			m.log.WarnContext(ctx, "torrent instance query failed",
				"instance", res.source, "err", res.err)
			continue
		}
		merged = append(merged, res.refs...)
	}

	if failures == len(m.sources) {
		return nil, apperrors.ErrNoInstanceReachable
	}

	// deterministic output regardless of response order
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Instance != merged[j].Instance {
			return merged[i].Instance < merged[j].Instance
		}
		return merged[i].Hash < merged[j].Hash
	})
	merged = dedupe(merged)

	return merged, nil
}

func dedupe(refs []qbit.TorrentRef) []qbit.TorrentRef {
	out := refs[:0]
	var prev *qbit.TorrentRef
	for i := range refs {
		if prev != nil && refs[i].Instance == prev.Instance && refs[i].Hash == prev.Hash {
			continue
		}
		out = append(out, refs[i])
		prev = &out[len(out)-1]
	}
	return out
}
