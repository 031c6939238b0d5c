package client

import (
	"context"
	"io"
	"time"

	"github.com/oshokin/mova-viewer/internal/config"
	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
	"github.com/oshokin/mova-viewer/internal/render"
	"github.com/oshokin/mova-viewer/internal/service/common"
)

// Options configures how mova-ctl reaches the daemon.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides grpc_addr from config when specified.
	ServerAddress string

	// Timeout overrides the per-call timeout from config when positive.
	Timeout time.Duration

	// NoColor disables terminal colors.
	NoColor bool
}

// Session is one connected mova-ctl invocation.
type Session struct {
	client  *common.Client
	printer *render.Printer
	address string
}

// Connect loads settings, identifies the operator and dials the daemon.
// Output is written to w.
func Connect(ctx context.Context, opts *Options, w io.Writer) (*Session, error) {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "mova-ctl")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	// Use server address from options if provided, otherwise use config.
	serverAddress := cfg.GRPCAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	timeout := cfg.Timeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	// Identify current user and hostname for audit logging.
	actor, err := common.DetectActor()
	if err != nil {
		logger.WarnKV(ctx, "Operator identity unavailable", "error", err)
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(timeout), common.WithActor(actor))
	if err != nil {
		return nil, err
	}

	logger.DebugKV(ctx, "Connected", "server_address", serverAddress, "actor", actor)

	return NewSession(client, serverAddress, w, opts.NoColor), nil
}

// NewSession wraps an existing client.
func NewSession(client *common.Client, address string, w io.Writer, noColor bool) *Session {
	var printerOpts []render.Option
	if noColor {
		printerOpts = append(printerOpts, render.WithoutColor())
	}

	return &Session{
		client:  client,
		printer: render.New(w, printerOpts...),
		address: address,
	}
}

// Close releases the connection.
func (s *Session) Close() error {
	return s.client.Close()
}

// Status prints the daemon status.
func (s *Session) Status(ctx context.Context) error {
	status, err := s.client.Status(ctx)
	if err != nil {
		return err
	}

	s.printer.Status(status)

	return nil
}

// Snapshot prints the live snapshot, the display view, or snapshot seq when positive.
func (s *Session) Snapshot(ctx context.Context, seq int64, display bool) error {
	var (
		snapshot *mova.Snapshot
		err      error
	)

	if seq > 0 {
		snapshot, err = s.client.FindSnapshot(ctx, seq)
	} else {
		snapshot, err = s.client.Snapshot(ctx, display)
	}

	if err != nil {
		return err
	}

	s.printSnapshot(snapshot)

	return nil
}

// History prints up to n finalized snapshots, newest first.
func (s *Session) History(ctx context.Context, n int) error {
	snapshots, err := s.client.History(ctx, n)
	if err != nil {
		return err
	}

	s.printer.History(snapshots)

	return nil
}

// Alerts prints the active alerts, or the alert history when history is set.
func (s *Session) Alerts(ctx context.Context, history bool, limit int) error {
	fetch := s.client.Alerts
	if history {
		fetch = func(ctx context.Context) ([]*alarm.Alert, error) {
			return s.client.AlertHistory(ctx, limit)
		}
	}

	alerts, err := fetch(ctx)
	if err != nil {
		return err
	}

	s.printer.Alerts(alerts)

	return nil
}

// Acknowledge marks alert id as seen.
func (s *Session) Acknowledge(ctx context.Context, id int64) error {
	if err := s.client.Acknowledge(ctx, id); err != nil {
		return err
	}

	s.printer.Line("alert %d acknowledged", id)

	return nil
}

// ClearAlerts clears every active alert.
func (s *Session) ClearAlerts(ctx context.Context) error {
	if err := s.client.ClearAlerts(ctx); err != nil {
		return err
	}

	s.printer.Line("alerts cleared")

	return nil
}

// Pin freezes the display view on seq, or on the live snapshot for zero.
func (s *Session) Pin(ctx context.Context, seq int64) error {
	snapshot, err := s.client.Pin(ctx, seq)
	if err != nil {
		return err
	}

	// Pinning before the first stage header succeeds with an empty view.
	if snapshot == nil || snapshot.SequenceID == 0 {
		s.printer.Line("pinned; no snapshot yet")

		return nil
	}

	s.printer.Line("pinned snapshot #%d", snapshot.SequenceID)

	return nil
}

// Unpin makes the display view follow the live snapshot again.
func (s *Session) Unpin(ctx context.Context) error {
	if err := s.client.Unpin(ctx); err != nil {
		return err
	}

	s.printer.Line("unpinned")

	return nil
}

// Reset drops all daemon state.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.client.Reset(ctx); err != nil {
		return err
	}

	s.printer.Line("state reset")

	return nil
}

// Events drains and prints the display events.
func (s *Session) Events(ctx context.Context) error {
	events, err := s.client.Events(ctx)
	if err != nil {
		return err
	}

	s.printer.Events(events)

	return nil
}

// RawLines drains and prints the raw lines.
func (s *Session) RawLines(ctx context.Context) error {
	lines, err := s.client.RawLines(ctx)
	if err != nil {
		return err
	}

	s.printer.RawLines(lines)

	return nil
}

// Record starts recording into path on the daemon host, or stops it when path is empty.
func (s *Session) Record(ctx context.Context, path string) error {
	if err := s.client.SetRecording(ctx, path); err != nil {
		return err
	}

	if path == "" {
		s.printer.Line("recording stopped")
	} else {
		s.printer.Line("recording to %s", path)
	}

	return nil
}

// Replay changes the speed, pause state or steps a replay.
func (s *Session) Replay(ctx context.Context, control mova.ReplayControl) error {
	if err := s.client.ControlReplay(ctx, control); err != nil {
		return err
	}

	return s.Status(ctx)
}

// Watch prints new events every interval until ctx is cancelled. Failed
// polls are logged and retried on the next tick.
func (s *Session) Watch(ctx context.Context, interval time.Duration) error {
	ctx = logger.WithName(ctx, "mova-ctl")

	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	logger.InfoKV(ctx, "Watching events", "server_address", s.address, "interval", interval)

	// attempt polls once; errors are not fatal.
	attempt := func() {
		events, err := s.client.Events(ctx)
		if err != nil {
			logger.ErrorKV(ctx, "Events failed", "error", err)

			return
		}

		if len(events) > 0 {
			s.printer.Events(events)
		}
	}

	// Attempt immediately before starting the loop.
	attempt()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			attempt()
		}
	}
}

// DefaultWatchInterval is the default polling period of Watch.
const DefaultWatchInterval = time.Second

func (s *Session) printSnapshot(snapshot *mova.Snapshot) {
	if snapshot == nil {
		s.printer.Line("no snapshot yet")

		return
	}

	s.printer.Snapshot(snapshot)
}
