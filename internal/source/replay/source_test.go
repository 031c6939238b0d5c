package replay

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/mova-viewer/internal/repository/recording"
)

func writeFile(t *testing.T, name string, lines ...string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))

	return path
}

// collect reads chunks and statuses until the source closes its channels.
func collect(t *testing.T, s *Source) ([]string, []string) {
	t.Helper()

	var chunks, statuses []string

	deadline := time.After(5 * time.Second)

	for chunkCh, statusCh := s.Chunks(), s.Status(); chunkCh != nil || statusCh != nil; {
		select {
		case chunk, ok := <-chunkCh:
			if !ok {
				chunkCh = nil

				continue
			}

			chunks = append(chunks, chunk)
		case status, ok := <-statusCh:
			if !ok {
				statusCh = nil

				continue
			}

			statuses = append(statuses, status)
		case <-deadline:
			t.Fatal("replay did not finish")
		}
	}

	return chunks, statuses
}

// TestParseSpeed accepts known names and rejects others.
func TestParseSpeed(t *testing.T) {
	t.Parallel()

	for _, speed := range []Speed{SpeedRealTime, SpeedFast50, SpeedFast200, SpeedFast500, SpeedInstant, SpeedStep} {
		got, err := ParseSpeed(strings.ToUpper(speed.String()))
		require.NoError(t, err)
		require.Equal(t, speed, got)
	}

	def, err := ParseSpeed("")
	require.NoError(t, err)
	require.Equal(t, SpeedFast200, def)
	require.Equal(t, 5*time.Millisecond, def.Delay())
	require.Equal(t, time.Second, SpeedRealTime.Delay())

	_, err = ParseSpeed("warp")
	require.ErrorIs(t, err, ErrUnknownSpeed)
}

// TestSource_InstantReplay emits every line with progress and completion statuses.
func TestSource_InstantReplay(t *testing.T) {
	t.Parallel()

	lines := make([]string, 0, 250)
	for i := range 250 {
		lines = append(lines, fmt.Sprintf("SMCYC %d", i))
	}

	s := New(writeFile(t, "replay.txt", lines...), SpeedInstant)
	require.NoError(t, s.Start(t.Context()))
	require.ErrorIs(t, s.Start(t.Context()), ErrAlreadyStarted)

	chunks, statuses := collect(t, s)

	require.Len(t, chunks, 250)
	require.Equal(t, "SMCYC 0\n", chunks[0])
	require.Equal(t, []string{
		StatusReplaying,
		"Replaying (100 lines)",
		"Replaying (200 lines)",
		"Complete (250 lines)",
	}, statuses)

	s.Stop()
	s.SetPaused(true)
}

// TestSource_CompressedInput replays an LZ4 recording.
func TestSource_CompressedInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.lz4")

	rec, err := recording.Create(path, 1)
	require.NoError(t, err)
	require.NoError(t, rec.WriteLine("S 1 08:00:00"))
	require.NoError(t, rec.WriteLine("SMCYC 4"))
	require.NoError(t, rec.Close())

	s := New(path, SpeedInstant)
	require.NoError(t, s.Start(t.Context()))

	chunks, _ := collect(t, s)
	require.Equal(t, []string{"S 1 08:00:00\n", "SMCYC 4\n"}, chunks)
}

// TestSource_StepMode releases one line per step.
func TestSource_StepMode(t *testing.T) {
	t.Parallel()

	s := New(writeFile(t, "step.txt", "a", "b", "c"), SpeedStep)
	require.NoError(t, s.Start(t.Context()))

	defer s.Stop()

	require.Equal(t, "a\n", <-s.Chunks())
	require.True(t, s.Paused())

	select {
	case chunk := <-s.Chunks():
		t.Fatalf("unexpected chunk %q before step", chunk)
	case <-time.After(50 * time.Millisecond):
	}

	s.StepNext()
	require.Equal(t, "b\n", <-s.Chunks())
	require.True(t, s.Paused())

	s.SetSpeed(SpeedInstant)
	s.SetPaused(false)
	require.Equal(t, "c\n", <-s.Chunks())
}

// TestSource_StopWhilePaused cancels a paused replay.
func TestSource_StopWhilePaused(t *testing.T) {
	t.Parallel()

	s := New(writeFile(t, "pause.txt", "a", "b"), SpeedInstant)
	s.SetPaused(true)
	require.NoError(t, s.Start(t.Context()))

	done := make(chan struct{})

	go func() {
		defer close(done)

		s.Stop()
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stop blocked")
	}

	_, ok := <-s.Chunks()
	require.False(t, ok)
}

// TestSource_MissingFile fails on start.
func TestSource_MissingFile(t *testing.T) {
	t.Parallel()

	s := New(filepath.Join(t.TempDir(), "missing.txt"), SpeedInstant)
	require.ErrorIs(t, s.Start(t.Context()), os.ErrNotExist)
	s.Stop()
}
