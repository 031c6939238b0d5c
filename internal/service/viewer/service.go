package viewer

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/metrics"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
	"github.com/oshokin/mova-viewer/internal/service/aggregator"
	"github.com/oshokin/mova-viewer/internal/service/alerting"
	"github.com/oshokin/mova-viewer/internal/service/pipeline"
	"github.com/oshokin/mova-viewer/internal/source/replay"
)

// service is the facade the transports call into. It is unexported to keep
// the transports decoupled from the implementation.
type service struct {
	sessionID  string
	startedAt  time.Time
	sourceMode string

	agg     *aggregator.Aggregator
	engine  *alerting.Engine
	pipe    *pipeline.Pipeline
	metrics *metrics.Collector

	// replay is nil unless the source is a replay.
	replay *replay.Source
	// archive is nil when archiving is disabled.
	archive archive.Repository
}

// Status reports source, pipeline and aggregation state.
func (s *service) Status(context.Context) *mova.Status {
	status := &mova.Status{
		SessionID:    s.sessionID,
		StartedAt:    s.startedAt,
		Source:       s.sourceMode,
		Pipeline:     s.pipe.Status(),
		QueueDepth:   s.pipe.Pending(),
		ActiveAlerts: len(s.engine.Active()),
		Stats:        s.agg.Stats(),
	}

	if path, ok := s.pipe.Recording(); ok {
		status.Recording = path
	}

	if s.replay != nil {
		status.Source = fmt.Sprintf("%s (%s)", s.sourceMode, s.replay.Speed())

		if s.replay.Paused() {
			status.Source += ", paused"
		}
	}

	return status
}

// CurrentSnapshot returns the live snapshot, or the display view when display is set.
func (s *service) CurrentSnapshot(_ context.Context, display bool) *mova.Snapshot {
	if display {
		return s.agg.DisplaySnapshot()
	}

	return s.agg.CurrentSnapshot()
}

// Snapshot finds the current or a retained historical snapshot.
func (s *service) Snapshot(_ context.Context, seq int64) (*mova.Snapshot, bool) {
	return s.agg.Snapshot(seq)
}

// History returns up to n finalized snapshots, newest first.
func (s *service) History(_ context.Context, n int) []*mova.Snapshot {
	return s.agg.History(n)
}

// ActiveAlerts returns the active alerts.
func (s *service) ActiveAlerts(context.Context) []*alarm.Alert {
	return s.engine.Active()
}

// AlertHistory returns up to limit alerts, newest first.
func (s *service) AlertHistory(_ context.Context, limit int) []*alarm.Alert {
	return s.engine.History(limit)
}

// Acknowledge marks an alert as seen.
func (s *service) Acknowledge(_ context.Context, id int64) bool {
	return s.engine.Acknowledge(id)
}

// ClearAlerts clears every active alert.
func (s *service) ClearAlerts(context.Context) {
	s.engine.ClearAll()
}

// Pin freezes the display view on seq, or on the current snapshot for zero.
func (s *service) Pin(_ context.Context, seq int64) *mova.Snapshot {
	if seq == 0 {
		return s.agg.PinCurrent()
	}

	return s.agg.Pin(seq)
}

// Unpin makes the display view follow the live snapshot.
func (s *service) Unpin(context.Context) {
	s.agg.Unpin()
}

// Reset drops snapshots, counters, queues and alert state.
func (s *service) Reset(ctx context.Context) {
	s.agg.Reset()
	s.metrics.ResetActiveAlerts()

	logger.Info(logger.WithName(ctx, "viewer"), "State reset")
}

// DrainEvents returns and clears the queued display events.
func (s *service) DrainEvents(context.Context) []mova.Event {
	return s.agg.DrainEvents()
}

// DrainRawLines returns and clears the queued raw lines.
func (s *service) DrainRawLines(context.Context) []string {
	return s.agg.DrainRawLines()
}

// SetRecording starts recording to path, or stops it when path is empty.
func (s *service) SetRecording(_ context.Context, path string) error {
	if path == "" {
		return s.pipe.StopRecording()
	}

	return s.pipe.StartRecording(path)
}

// ControlReplay applies speed, pause and step requests to a replay source.
func (s *service) ControlReplay(_ context.Context, control mova.ReplayControl) error {
	if s.replay == nil {
		return mova.ErrNotReplay
	}

	if control.Speed != "" {
		speed, err := replay.ParseSpeed(control.Speed)
		if err != nil {
			return fmt.Errorf("%w: %w", mova.ErrInvalidRequest, err)
		}

		s.replay.SetSpeed(speed)
	}

	if control.Paused != nil {
		s.replay.SetPaused(*control.Paused)
	}

	if control.Step {
		s.replay.StepNext()
	}

	return nil
}

// Archived lists the snapshots archived by this session.
func (s *service) Archived(ctx context.Context) ([]archive.Entry, error) {
	if s.archive == nil {
		return nil, archive.ErrDisabled
	}

	return s.archive.List(ctx, s.sessionID)
}

// ArchivedSnapshot loads one snapshot archived by this session.
func (s *service) ArchivedSnapshot(ctx context.Context, seq int64) (*mova.Snapshot, error) {
	if s.archive == nil {
		return nil, archive.ErrDisabled
	}

	snapshot, err := s.archive.Load(ctx, s.sessionID, seq)
	if err != nil {
		return nil, fmt.Errorf("load archived snapshot %d: %w", seq, err)
	}

	return snapshot, nil
}
