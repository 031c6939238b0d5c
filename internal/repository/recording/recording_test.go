package recording

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()

	rc, err := Open(path)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, rc.Close())
	}()

	var lines []string

	scanner := bufio.NewScanner(rc)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}

	require.NoError(t, scanner.Err())

	return lines
}

// TestRecorder_PlainFlushesPeriodically flushes only every N lines.
func TestRecorder_PlainFlushesPeriodically(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.mova")

	r, err := Create(path, 3)
	require.NoError(t, err)

	for i := range 2 {
		require.NoError(t, r.WriteLine(fmt.Sprintf("line %d", i)))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Empty(t, data, "nothing flushed before the third line")

	require.NoError(t, r.WriteLine("line 2"))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "line 0\nline 1\nline 2\n", string(data))

	require.NoError(t, r.WriteLine("line 3"))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.Equal(t, int64(4), r.Lines())

	require.ErrorIs(t, r.WriteLine("late"), ErrClosed)
	require.Equal(t, []string{"line 0", "line 1", "line 2", "line 3"}, readLines(t, path))
}

// TestRecorder_PlainAppends keeps lines of an earlier session.
func TestRecorder_PlainAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.txt")

	for _, line := range []string{"first", "second"} {
		r, err := Create(path, 0)
		require.NoError(t, err)
		require.NoError(t, r.WriteLine(line))
		require.NoError(t, r.Close())
	}

	require.Equal(t, []string{"first", "second"}, readLines(t, path))
}

// TestRecorder_LZ4RoundTrip writes and reads a compressed recording.
func TestRecorder_LZ4RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session.mova.lz4")
	require.True(t, IsCompressed(path))

	r, err := Create(path, 2)
	require.NoError(t, err)

	want := []string{"S 3 08:15:30 SMF 1 2 3", "5 NX 2 ESLI ABC 1LA 10 20 30", "IG:5 SDEM YY"}
	for _, line := range want {
		require.NoError(t, r.WriteLine(line))
	}

	require.NoError(t, r.Close())
	require.Equal(t, want, readLines(t, path))
}

// TestOpen_MissingFile wraps the not-exist error.
func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope.txt"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
