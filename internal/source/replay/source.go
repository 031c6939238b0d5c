package replay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/oshokin/mova-viewer/internal/repository/recording"
)

// maxLineSize bounds a single replayed line.
const maxLineSize = 1 << 20

// statusEvery is the number of lines between progress statuses.
const statusEvery = 100

// Statuses reported by the source.
const (
	StatusReplaying = "Replaying"
	StatusPaused    = "Paused"
	StatusStopped   = "Stopped"
)

// ErrAlreadyStarted is returned by a second Start.
var ErrAlreadyStarted = errors.New("replay already started")

// Source replays a recording file line by line.
type Source struct {
	path string

	chunks chan string
	status chan string
	errs   chan error

	// mu guards the playback controls.
	mu            sync.Mutex
	speed         Speed
	paused        bool
	stepRequested bool
	started       bool
	finished      bool
	cancel        context.CancelFunc
	done          chan struct{}

	// wake interrupts a paused wait.
	wake chan struct{}
}

// New creates a source for path. Nothing is read until Start.
func New(path string, speed Speed) *Source {
	return &Source{
		path:   path,
		speed:  speed,
		chunks: make(chan string),
		status: make(chan string, 16),
		errs:   make(chan error, 4),
		wake:   make(chan struct{}, 1),
	}
}

// Chunks delivers one newline-terminated line per chunk.
func (s *Source) Chunks() <-chan string { return s.chunks }

// Status delivers progress text.
func (s *Source) Status() <-chan string { return s.status }

// Errors delivers read failures.
func (s *Source) Errors() <-chan error { return s.errs }

// Start opens the file and begins playback in the background.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}

	reader, err := recording.Open(s.path)
	if err != nil {
		return fmt.Errorf("open replay file: %w", err)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.started = true

	go func() {
		defer close(s.done)
		defer reader.Close() //nolint:errcheck // Read-only file.

		s.run(ctx, reader)
	}()

	return nil
}

// Stop cancels playback and waits for it to end.
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

// SetSpeed changes the pacing of the following lines.
func (s *Source) SetSpeed(speed Speed) {
	s.mu.Lock()
	s.speed = speed
	s.mu.Unlock()

	s.signal()
}

// Speed returns the current pacing.
func (s *Source) Speed() Speed {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.speed
}

// SetPaused pauses or resumes playback.
func (s *Source) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	s.mu.Unlock()

	s.signal()

	status := StatusReplaying
	if paused {
		status = StatusPaused
	}

	s.report(status)
}

// Paused reports whether playback is paused.
func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.paused
}

// StepNext releases exactly one line while paused.
func (s *Source) StepNext() {
	s.mu.Lock()
	s.stepRequested = true
	s.mu.Unlock()

	s.signal()
}

func (s *Source) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// report sends a status without blocking playback. Statuses after the end
// of playback are dropped.
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

// finish closes the output channels.
func (s *Source) finish() {
	s.mu.Lock()
	s.finished = true
	close(s.status)
	close(s.errs)
	s.mu.Unlock()

	close(s.chunks)
}

func (s *Source) run(ctx context.Context, reader io.Reader) {
	defer s.finish()

	s.report(StatusReplaying)

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lines := 0

	for scanner.Scan() {
		if err := s.waitTurn(ctx); err != nil {
			s.report(StatusStopped)

			return
		}

		s.holdAfterStep()

		select {
		case <-ctx.Done():
			s.report(StatusStopped)

			return
		case s.chunks <- scanner.Text() + "\n":
		}

		lines++

		if lines%statusEvery == 0 {
			s.report(fmt.Sprintf("%s (%d lines)", StatusReplaying, lines))
		}

		if err := s.pace(ctx); err != nil {
			s.report(StatusStopped)

			return
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case s.errs <- fmt.Errorf("read replay file: %w", err):
		default:
		}

		s.report("Error: " + err.Error())

		return
	}

	s.report(fmt.Sprintf("Complete (%d lines)", lines))
}

// waitTurn blocks while paused unless a step was requested.
func (s *Source) waitTurn(ctx context.Context) error {
	for {
		s.mu.Lock()
		paused, stepped := s.paused, s.stepRequested
		s.stepRequested = false
		s.mu.Unlock()

		if !paused || stepped {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.wake:
		}
	}
}

// holdAfterStep pauses step-speed playback before its line is handed out,
// so the next line waits for StepNext.
func (s *Source) holdAfterStep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.speed == SpeedStep {
		s.paused = true
	}
}

// pace waits the speed delay.
func (s *Source) pace(ctx context.Context) error {
	delay := s.Speed().Delay()
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
