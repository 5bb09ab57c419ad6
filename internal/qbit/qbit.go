// Package qbit wraps the configured qBittorrent instances behind a thin
// manager. Instance state is never cached: torrent snapshots are fetched
// fresh for every reconciliation.
package qbit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	qbt "github.com/autobrr/go-qbittorrent"

	"github.com/javi11/mediahook/internal/config"
	apperrors "github.com/javi11/mediahook/internal/errors"
)

// TorrentRef identifies one torrent on one instance, with the seeding
// state the gate needs. FilePaths is populated on demand.
type TorrentRef struct {
	Instance       string
	Hash           string
	Name           string
	Category       string
	ContentPath    string
	SavePath       string
	SeedingMinutes int64
	FilePaths      []string
}

// Instance is one qBittorrent WebUI connection.
type Instance struct {
	cfg    config.QbtInstanceConfig
	client *qbt.Client
	log    *slog.Logger

	mu       sync.Mutex
	loggedIn bool
}

// NewInstance creates an instance connection from config.
func NewInstance(cfg config.QbtInstanceConfig) *Instance {
	client := qbt.NewClient(qbt.Config{
		Host:     cfg.URL(),
		Username: cfg.Username,
		Password: cfg.Password,
	})
	return &Instance{
		cfg:    cfg,
		client: client,
		log:    slog.Default().With("component", "qbit", "instance", cfg.Name),
	}
}

// Name returns the configured instance name.
func (i *Instance) Name() string {
	return i.cfg.Name
}

// SeedLimitMinutes returns the seeding budget for torrents on this
// instance.
func (i *Instance) SeedLimitMinutes() int64 {
	return i.cfg.SeedLimit
}

func (i *Instance) ensureLogin(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loggedIn {
		return nil
	}
	if err := i.client.LoginCtx(ctx); err != nil {
		return fmt.Errorf("%w: %s: login: %v", apperrors.ErrTorrentInstanceUnreachable, i.cfg.Name, err)
	}
	i.loggedIn = true
	return nil
}

// Torrents lists all torrents on the instance. File lists are not
// included; use Files for torrents that need closer inspection.
func (i *Instance) Torrents(ctx context.Context) ([]TorrentRef, error) {
	if err := i.ensureLogin(ctx); err != nil {
		return nil, err
	}

	torrents, err := i.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		i.markDisconnected()
		return nil, fmt.Errorf("%w: %s: list torrents: %v", apperrors.ErrTorrentInstanceUnreachable, i.cfg.Name, err)
	}

	refs := make([]TorrentRef, 0, len(torrents))
	for _, t := range torrents {
		refs = append(refs, TorrentRef{
			Instance:       i.cfg.Name,
			Hash:           t.Hash,
			Name:           t.Name,
			Category:       t.Category,
			ContentPath:    t.ContentPath,
			SavePath:       t.SavePath,
			SeedingMinutes: t.SeedingTime / 60,
		})
	}
	return refs, nil
}

// Files returns the file names inside a torrent.
func (i *Instance) Files(ctx context.Context, hash string) ([]string, error) {
	if err := i.ensureLogin(ctx); err != nil {
		return nil, err
	}

	files, err := i.client.GetFilesInformationCtx(ctx, hash)
	if err != nil {
		i.markDisconnected()
		return nil, fmt.Errorf("%w: %s: files for %s: %v", apperrors.ErrTorrentInstanceUnreachable, i.cfg.Name, hash, err)
	}

	names := make([]string, 0, len(*files))
	for _, f := range *files {
		names = append(names, f.Name)
	}
	return names, nil
}

// Delete removes a torrent, optionally with its data.
func (i *Instance) Delete(ctx context.Context, hash string, deleteFiles bool) error {
	if err := i.ensureLogin(ctx); err != nil {
		return err
	}

	if err := i.client.DeleteTorrentsCtx(ctx, []string{hash}, deleteFiles); err != nil {
		i.markDisconnected()
		return fmt.Errorf("delete torrent %s on %s: %w", hash, i.cfg.Name, err)
	}
	i.log.InfoContext(ctx, "deleted torrent", "hash", hash, "delete_files", deleteFiles)
	return nil
}

// markDisconnected forces a fresh login on the next call. WebUI sessions
// expire; any API failure may just be a stale cookie.
func (i *Instance) markDisconnected() {
	i.mu.Lock()
	i.loggedIn = false
	i.mu.Unlock()
}

// Manager holds all configured instances.
type Manager struct {
	instances []*Instance
	byName    map[string]*Instance
}

// NewManager creates instance connections for every configured instance.
func NewManager(cfgs []config.QbtInstanceConfig) *Manager {
	m := &Manager{byName: make(map[string]*Instance, len(cfgs))}
	for _, cfg := range cfgs {
		inst := NewInstance(cfg)
		m.instances = append(m.instances, inst)
		m.byName[cfg.Name] = inst
	}
	return m
}

// Instances returns all configured instances.
func (m *Manager) Instances() []*Instance {
	return m.instances
}

// SeedLimit returns the seeding budget for the named instance. Unknown
// instances report -1, which the seeding gate treats as keep.
func (m *Manager) SeedLimit(instance string) int64 {
	if inst, ok := m.byName[instance]; ok {
		return inst.SeedLimitMinutes()
	}
	return -1
}

// Delete removes the referenced torrent from its instance.
func (m *Manager) Delete(ctx context.Context, ref TorrentRef, deleteFiles bool) error {
	inst, ok := m.byName[ref.Instance]
	if !ok {
		return fmt.Errorf("unknown torrent instance %q", ref.Instance)
	}
	return inst.Delete(ctx, ref.Hash, deleteFiles)
}

// MatchesHash reports whether the ref's hash equals the given one,
// ignoring case. Providers record hashes uppercased; qBittorrent reports
// them lowercased.
func (r TorrentRef) MatchesHash(hash string) bool {
	return strings.EqualFold(r.Hash, hash)
}
