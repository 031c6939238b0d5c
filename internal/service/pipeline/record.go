package pipeline

import (
	"context"
	"fmt"

	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/repository/recording"
)

// StartRecording tees every processed line into path, replacing any
// active recording.
func (p *Pipeline) StartRecording(path string) error {
	rec, err := recording.Create(path, p.flushEvery)
	if err != nil {
		return fmt.Errorf("start recording: %w", err)
	}

	p.recMu.Lock()
	previous := p.recorder
	p.recorder, p.recordFailed = rec, false
	p.recMu.Unlock()

	if previous != nil {
		if err = previous.Close(); err != nil {
			logger.WarnKV(context.Background(), "Close previous recording failed", "path", previous.Path(), "error", err)
		}
	}

	return nil
}

// StopRecording flushes and closes the active recording, if any.
func (p *Pipeline) StopRecording() error {
	p.recMu.Lock()
	rec := p.recorder
	p.recorder = nil
	p.recMu.Unlock()

	if rec == nil {
		return nil
	}

	if err := rec.Close(); err != nil {
		return fmt.Errorf("stop recording: %w", err)
	}

	return nil
}

// Recording returns the active recording path.
func (p *Pipeline) Recording() (string, bool) {
	p.recMu.Lock()
	defer p.recMu.Unlock()

	if p.recorder == nil {
		return "", false
	}

	return p.recorder.Path(), true
}

// record writes one line to the active recording. Failures are counted and
// logged once per recording; they never interrupt ingestion.
func (p *Pipeline) record(ctx context.Context, line string) {
	p.recMu.Lock()
	defer p.recMu.Unlock()

	if p.recorder == nil {
		return
	}

	if err := p.recorder.WriteLine(line); err != nil {
		p.metrics.RecordingFailed()

		if !p.recordFailed {
			p.recordFailed = true

			logger.ErrorKV(ctx, "Recording write failed", "path", p.recorder.Path(), "error", err)
		}
	}
}
