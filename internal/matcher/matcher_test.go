package matcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/javi11/mediahook/internal/errors"
	"github.com/javi11/mediahook/internal/qbit"
)

type fakeSource struct {
	name     string
	torrents []qbit.TorrentRef
	files    map[string][]string
	err      error

	torrentCalls atomic.Int32
	fileCalls    atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Torrents(ctx context.Context) ([]qbit.TorrentRef, error) {
	f.torrentCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.torrents, nil
}

func (f *fakeSource) Files(ctx context.Context, hash string) ([]string, error) {
	f.fileCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.files[hash], nil
}

func torrent(instance, hash, name, savePath, contentPath string, seedingMinutes int64) qbit.TorrentRef {
	return qbit.TorrentRef{
		Instance:       instance,
		Hash:           hash,
		Name:           name,
		SavePath:       savePath,
		ContentPath:    contentPath,
		SeedingMinutes: seedingMinutes,
	}
}

func TestFindByPathExactMatch(t *testing.T) {
	src := &fakeSource{
		name: "main",
		torrents: []qbit.TorrentRef{
			torrent("main", "aaa", "Show.Name.S01E02.1080p", "/downloads", "/downloads/Show.Name.S01E02.1080p", 10),
			torrent("main", "bbb", "Other.Show.S05E01", "/downloads", "/downloads/Other.Show.S05E01", 10),
		},
		files: map[string][]string{
			"aaa": {"Show.Name.S01E02.1080p/Show.Name.S01E02.1080p.mkv"},
			"bbb": {"Other.Show.S05E01/Other.Show.S05E01.mkv"},
		},
	}

	m := New([]Source{src})
	refs, err := m.FindByPath(context.Background(), "/downloads/Show.Name.S01E02.1080p/Show.Name.S01E02.1080p.mkv")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "aaa", refs[0].Hash)
	assert.NotEmpty(t, refs[0].FilePaths)
}

func TestFindByPathNoFalsePositive(t *testing.T) {
	// same directory, different file: must not match
	src := &fakeSource{
		name: "main",
		torrents: []qbit.TorrentRef{
			torrent("main", "aaa", "Show.Name.S01E03", "/downloads", "/downloads/Show.Name.S01E03", 10),
		},
		files: map[string][]string{
			"aaa": {"Show.Name.S01E03/Show.Name.S01E03.mkv"},
		},
	}

	m := New([]Source{src})
	refs, err := m.FindByPath(context.Background(), "/downloads/Show.Name.S01E02/Show.Name.S01E02.mkv")
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestFindByPathCrossSeeds(t *testing.T) {
	// the same content seeded from two instances must yield both refs
	file := "Show.Name.S01E02/Show.Name.S01E02.mkv"
	srcA := &fakeSource{
		name:     "a",
		torrents: []qbit.TorrentRef{torrent("a", "aaa", "Show.Name.S01E02", "/downloads", "", 10)},
		files:    map[string][]string{"aaa": {file}},
	}
	srcB := &fakeSource{
		name:     "b",
		torrents: []qbit.TorrentRef{torrent("b", "ccc", "Show.Name.S01E02.PROPER", "/downloads", "", 99)},
		files:    map[string][]string{"ccc": {file}},
	}

	m := New([]Source{srcB, srcA})
	refs, err := m.FindByPath(context.Background(), "/downloads/Show.Name.S01E02/Show.Name.S01E02.mkv")
	require.NoError(t, err)
	require.Len(t, refs, 2)

	// results ordered by instance then hash, regardless of source order
	assert.Equal(t, "a", refs[0].Instance)
	assert.Equal(t, "b", refs[1].Instance)
}

func TestFindByPathSkipsFailedInstance(t *testing.T) {
	down := &fakeSource{name: "down", err: errors.New("connection refused")}
	up := &fakeSource{
		name:     "up",
		torrents: []qbit.TorrentRef{torrent("up", "aaa", "Show.Name.S01E02", "/downloads", "", 10)},
		files:    map[string][]string{"aaa": {"Show.Name.S01E02/Show.Name.S01E02.mkv"}},
	}

	m := New([]Source{down, up})
	refs, err := m.FindByPath(context.Background(), "/downloads/Show.Name.S01E02/Show.Name.S01E02.mkv")
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestFindByPathAllInstancesDown(t *testing.T) {
	m := New([]Source{
		&fakeSource{name: "a", err: errors.New("refused")},
		&fakeSource{name: "b", err: errors.New("refused")},
	})

	_, err := m.FindByPath(context.Background(), "/downloads/x.mkv")
	assert.ErrorIs(t, err, apperrors.ErrNoInstanceReachable)
}

func TestFindByHashes(t *testing.T) {
	src := &fakeSource{
		name: "main",
		torrents: []qbit.TorrentRef{
			torrent("main", "abcdef", "Show.Name.S01E02", "/downloads", "", 10),
			torrent("main", "123456", "Other.Show.S05E01", "/downloads", "", 10),
		},
	}

	m := New([]Source{src})

	// provider-recorded hashes are uppercase
	refs, err := m.FindByHashes(context.Background(), []string{"ABCDEF"})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "abcdef", refs[0].Hash)

	refs, err = m.FindByHashes(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestFindByTitleStrictEquality(t *testing.T) {
	src := &fakeSource{
		name: "main",
		torrents: []qbit.TorrentRef{
			torrent("main", "aaa", "Show.Name.S01E02.1080p.WEB-DL.x264-GROUP", "/downloads", "", 10),
			torrent("main", "bbb", "Show.Name.S01E03.1080p.WEB-DL.x264-GROUP", "/downloads", "", 10),
			torrent("main", "ccc", "Show.Names.S01E02.1080p", "/downloads", "", 10),
		},
	}

	m := New([]Source{src})
	refs, err := m.FindByTitle(context.Background(), "Show Name S01E02")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "aaa", refs[0].Hash)
}

func TestFindRepeatedCallsAreIdempotent(t *testing.T) {
	src := &fakeSource{
		name:     "main",
		torrents: []qbit.TorrentRef{torrent("main", "aaa", "Show.Name.S01E02", "/downloads", "", 10)},
		files:    map[string][]string{"aaa": {"Show.Name.S01E02/Show.Name.S01E02.mkv"}},
	}

	m := New([]Source{src})
	first, err := m.FindByPath(context.Background(), "/downloads/Show.Name.S01E02/Show.Name.S01E02.mkv")
	require.NoError(t, err)
	second, err := m.FindByPath(context.Background(), "/downloads/Show.Name.S01E02/Show.Name.S01E02.mkv")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
