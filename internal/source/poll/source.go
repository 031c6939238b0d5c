package poll

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	ps "github.com/mitchellh/go-ps"
)

// Poll interval bounds.
const (
	MinInterval     = 50 * time.Millisecond
	MaxInterval     = 2 * time.Second
	DefaultInterval = 200 * time.Millisecond
)

// reportedErrors is how many consecutive errors are sent before only the
// count is reported.
const reportedErrors = 3

// Statuses reported by the source.
const (
	StatusConnected       = "Connected"
	StatusDisconnected    = "Disconnected"
	StatusProcessNotFound = "Target process not found"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("poll already started")

// ProcessFinder reports whether a process with the given executable name runs.
type ProcessFinder func(name string) (bool, error)

// Options configures a Source.
type Options struct {
	// Path is the file holding the control text.
	Path string
	// ProcessName optionally names the program that owns the control.
	// Polling is suspended while it is not running.
	ProcessName string
	// Interval is clamped to [MinInterval, MaxInterval].
	Interval time.Duration
	// FindProcess overrides the process lookup.
	FindProcess ProcessFinder
}

// Source polls a text file and emits the appended text.
type Source struct {
	opts Options

	chunks chan string
	status chan string
	errs   chan error

	mu       sync.Mutex
	started  bool
	finished bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// ClampInterval bounds d to the supported poll interval range.
func ClampInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultInterval
	}

	return max(MinInterval, min(MaxInterval, d))
}

// New creates a poll source.
func New(opts Options) *Source {
	opts.Interval = ClampInterval(opts.Interval)

	if opts.FindProcess == nil {
		opts.FindProcess = processRunning
	}

	return &Source{
		opts:   opts,
		chunks: make(chan string),
		status: make(chan string, 16),
		errs:   make(chan error, reportedErrors),
	}
}

// Interval returns the effective poll interval.
func (s *Source) Interval() time.Duration {
	return s.opts.Interval
}

// Chunks delivers appended text.
func (s *Source) Chunks() <-chan string { return s.chunks }

// Status delivers connection state changes.
func (s *Source) Status() <-chan string { return s.status }

// Errors delivers the first consecutive read failures.
func (s *Source) Errors() <-chan error { return s.errs }

// Start begins polling in the background.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.started = true

	go func() {
		defer close(s.done)
		defer s.finish()

		s.run(ctx)
	}()

	return nil
}

// Stop ends polling and waits for the loop to exit.
func (s *Source) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

func (s *Source) run(ctx context.Context) {
	var (
		last      string
		failures  int
		connected bool
	)

	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		if s.targetPresent(ctx, &connected) {
			current, err := os.ReadFile(filepath.Clean(s.opts.Path))
			if err != nil {
				failures++
				s.fail(fmt.Errorf("read control text: %w", err), failures)
			} else {
				failures = 0

				if delta := Delta(last, string(current)); delta != "" {
					last = string(current)

					select {
					case <-ctx.Done():
						return
					case s.chunks <- delta:
					}
				}
			}
		}

		select {
		case <-ctx.Done():
			s.report(StatusDisconnected)

			return
		case <-ticker.C:
		}
	}
}

// targetPresent checks the owning process and reports transitions.
func (s *Source) targetPresent(ctx context.Context, connected *bool) bool {
	present := true

	if s.opts.ProcessName != "" {
		found, err := s.opts.FindProcess(s.opts.ProcessName)
		if err != nil {
			s.sendError(ctx, fmt.Errorf("list processes: %w", err))
		}

		present = found
	}

	if present != *connected {
		*connected = present

		if present {
			s.report(StatusConnected)
		} else {
			s.report(StatusProcessNotFound)
		}
	}

	return present
}

// fail reports the first few consecutive errors, then only their count.
func (s *Source) fail(err error, failures int) {
	if failures <= reportedErrors {
		s.sendError(context.Background(), err)

		return
	}

	s.report(fmt.Sprintf("Errors (%d)", failures))
}

func (s *Source) sendError(ctx context.Context, err error) {
	select {
	case <-ctx.Done():
	case s.errs <- err:
	default:
	}
}

func (s *Source) report(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return
	}

	select {
	case s.status <- status:
	default:
	}
}

func (s *Source) finish() {
	s.mu.Lock()
	s.finished = true
	close(s.status)
	close(s.errs)
	s.mu.Unlock()

	close(s.chunks)
}

// processRunning looks the executable up in the process table. A ".exe"
// suffix is ignored on both sides.
func processRunning(name string) (bool, error) {
	processList, err := ps.Processes()
	if err != nil {
		return false, err
	}

	want := strings.TrimSuffix(strings.ToLower(name), ".exe")

	for _, process := range processList {
		if strings.TrimSuffix(strings.ToLower(process.Executable()), ".exe") == want {
			return true, nil
		}
	}

	return false, nil
}
