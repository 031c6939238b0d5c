package viewer

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/metrics"
	"github.com/oshokin/mova-viewer/internal/render"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
)

// openArchive opens a SQLite archive in a temporary directory.
func openArchive(t *testing.T) (*archive.SQLiteRepository, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "archive.db")

	repo, err := archive.Open(t.Context(), path)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, repo.Close()) })

	return repo, path
}

func testSnapshot(seq int64, stage int) *mova.Snapshot {
	return &mova.Snapshot{
		SequenceID: seq,
		Stage:      stage,
		StartedAt:  time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC),
		Links:      map[int]*mova.LinkState{},
	}
}

// TestArchiver_WritesQueuedSnapshots stores snapshots and flushes the rest on shutdown.
func TestArchiver_WritesQueuedSnapshots(t *testing.T) {
	t.Parallel()

	repo, _ := openArchive(t)
	arch := newArchiver(repo, "session", metrics.New())

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)

	go func() { done <- arch.run(ctx) }()

	arch.enqueue(ctx, testSnapshot(1, 3))
	arch.enqueue(ctx, testSnapshot(2, 4))

	require.Eventually(t, func() bool {
		entries, err := repo.List(t.Context(), "session")

		return err == nil && len(entries) == 2
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	// Written after cancellation by the final flush.
	arch.queue <- testSnapshot(3, 5)
	arch.flush(t.Context())

	entries, err := repo.List(t.Context(), "session")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, 5, entries[2].Stage)
}

// TestArchiver_DropsWhenFull never blocks the caller on a full queue.
func TestArchiver_DropsWhenFull(t *testing.T) {
	t.Parallel()

	repo, _ := openArchive(t)
	arch := newArchiver(repo, "session", metrics.New())

	for i := range archiveQueueSize + 10 {
		arch.enqueue(t.Context(), testSnapshot(int64(i+1), 1))
	}

	require.Len(t, arch.queue, archiveQueueSize)
}

// TestBrowse_Levels prints sessions, one session's entries and one snapshot.
func TestBrowse_Levels(t *testing.T) {
	t.Parallel()

	repo, _ := openArchive(t)
	require.NoError(t, repo.Save(t.Context(), "run-a", testSnapshot(7, 2)))

	var out bytes.Buffer

	printer := render.New(&out, render.WithoutColor())

	require.NoError(t, browse(t.Context(), repo, &ArchiveOptions{}, printer))
	require.Contains(t, out.String(), "run-a")

	out.Reset()
	require.NoError(t, browse(t.Context(), repo, &ArchiveOptions{SessionID: "run-a"}, printer))
	require.NotContains(t, out.String(), "no archived snapshots")

	out.Reset()
	require.NoError(t, browse(t.Context(), repo, &ArchiveOptions{SessionID: "run-a", SequenceID: 7}, printer))
	require.Contains(t, out.String(), "Snapshot #7")

	err := browse(t.Context(), repo, &ArchiveOptions{SessionID: "run-a", SequenceID: 8}, printer)
	require.ErrorIs(t, err, archive.ErrNotFound)
}

// TestBrowseArchive_OpensPath reads an archive by path and requires one to be set.
func TestBrowseArchive_OpensPath(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer

	path := filepath.Join(t.TempDir(), "empty.db")
	require.NoError(t, BrowseArchive(t.Context(), &ArchiveOptions{Path: path, NoColor: true}, &out))
	require.Contains(t, out.String(), "archive is empty")

	cfg := filepath.Join(t.TempDir(), "mova-viewer.yaml")
	writeConfig(t, cfg, "history_size: 10\n")

	err := BrowseArchive(t.Context(), &ArchiveOptions{ConfigPath: cfg}, &out)
	require.ErrorIs(t, err, ErrNoArchive)
}
