package recording

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/oshokin/mova-viewer/internal/config"
)

// DefaultFlushEvery is the number of lines written between flushes.
const DefaultFlushEvery = 50

// compressedSuffix selects LZ4 framing.
const compressedSuffix = ".lz4"

// ErrClosed is returned when writing to a closed recorder.
var ErrClosed = errors.New("recorder closed")

// IsCompressed reports whether path is treated as an LZ4 stream.
func IsCompressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), compressedSuffix)
}

// Recorder appends lines to a file. It is safe for concurrent use.
type Recorder struct {
	// mu guards every field below.
	mu sync.Mutex
	// path is the destination file.
	path string
	// file is the underlying handle, nil after Close.
	file *os.File
	// compressor wraps file for .lz4 paths.
	compressor *lz4.Writer
	// buffer batches line writes.
	buffer *bufio.Writer
	// flushEvery is the flush period in lines.
	flushEvery int
	// lines counts lines written.
	lines int64
}

// Create opens path for recording. Plain files are appended to; LZ4 files
// are truncated because a frame cannot be resumed.
func Create(path string, flushEvery int) (*Recorder, error) {
	if flushEvery <= 0 {
		flushEvery = DefaultFlushEvery
	}

	path = filepath.Clean(path)

	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if IsCompressed(path) {
		flags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	file, err := os.OpenFile(path, flags, config.DefaultFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	r := &Recorder{
		path:       path,
		file:       file,
		flushEvery: flushEvery,
	}

	var sink io.Writer = file

	if IsCompressed(path) {
		r.compressor = lz4.NewWriter(file)
		sink = r.compressor
	}

	r.buffer = bufio.NewWriter(sink)

	return r, nil
}

// Path returns the destination file.
func (r *Recorder) Path() string {
	return r.path
}

// Lines returns the number of lines written.
func (r *Recorder) Lines() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lines
}

// WriteLine appends line and a newline, flushing every flushEvery lines.
func (r *Recorder) WriteLine(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrClosed
	}

	if _, err := r.buffer.WriteString(line); err != nil {
		return fmt.Errorf("write line: %w", err)
	}

	if err := r.buffer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write line: %w", err)
	}

	r.lines++

	if r.lines%int64(r.flushEvery) == 0 {
		return r.flushLocked()
	}

	return nil
}

// Flush pushes buffered lines to the file.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return ErrClosed
	}

	return r.flushLocked()
}

// Close flushes and closes the file. Closing twice is a no-op.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}

	err := r.flushLocked()

	if r.compressor != nil {
		err = errors.Join(err, r.compressor.Close())
	}

	err = errors.Join(err, r.file.Close())
	r.file, r.compressor = nil, nil

	return err
}

func (r *Recorder) flushLocked() error {
	if err := r.buffer.Flush(); err != nil {
		return fmt.Errorf("flush recording: %w", err)
	}

	if r.compressor != nil {
		if err := r.compressor.Flush(); err != nil {
			return fmt.Errorf("flush compressor: %w", err)
		}
	}

	return nil
}

// readCloser pairs a decompressing reader with the file it reads.
type readCloser struct {
	io.Reader
	io.Closer
}

// Open returns a reader over the recorded text of path, decompressing .lz4 files.
func Open(path string) (io.ReadCloser, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	if !IsCompressed(path) {
		return file, nil
	}

	return readCloser{Reader: lz4.NewReader(file), Closer: file}, nil
}
