package viewer

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/logger"
)

// Service abstracts the viewer operations the transport layer depends on.
type Service interface {
	Status(ctx context.Context) *mova.Status
	CurrentSnapshot(ctx context.Context, display bool) *mova.Snapshot
	Snapshot(ctx context.Context, seq int64) (*mova.Snapshot, bool)
	History(ctx context.Context, n int) []*mova.Snapshot
	ActiveAlerts(ctx context.Context) []*alarm.Alert
	AlertHistory(ctx context.Context, limit int) []*alarm.Alert
	Acknowledge(ctx context.Context, id int64) bool
	ClearAlerts(ctx context.Context)
	Pin(ctx context.Context, seq int64) *mova.Snapshot
	Unpin(ctx context.Context)
	Reset(ctx context.Context)
	DrainEvents(ctx context.Context) []mova.Event
	DrainRawLines(ctx context.Context) []string
	SetRecording(ctx context.Context, path string) error
	ControlReplay(ctx context.Context, control mova.ReplayControl) error
}

// Server implements ViewerServer on top of a Service.
type Server struct {
	// service provides the viewer operations.
	service Service
}

var (
	errUnexpectedRequest = status.Error(codes.Internal, "unexpected request type")
	errUnexpectedServer  = status.Error(codes.Internal, "unexpected server type")
)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// GetStatus reports source, pipeline and aggregation state.
func (s *Server) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return encodeStruct(ctx, s.service.Status(ctx))
}

// GetSnapshot returns the current or display snapshot.
func (s *Server) GetSnapshot(ctx context.Context, req *wrapperspb.BoolValue) (*structpb.Struct, error) {
	snapshot := s.service.CurrentSnapshot(ctx, req.GetValue())
	if snapshot == nil {
		return nil, status.Error(codes.NotFound, "no snapshot yet")
	}

	return encodeStruct(ctx, snapshot)
}

// FindSnapshot returns the current or a historical snapshot by sequence id.
func (s *Server) FindSnapshot(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req.GetValue() <= 0 {
		return nil, status.Error(codes.InvalidArgument, "sequence id must be positive")
	}

	snapshot, ok := s.service.Snapshot(ctx, req.GetValue())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "snapshot %d is not retained", req.GetValue())
	}

	return encodeStruct(ctx, snapshot)
}

// ListHistory returns up to req finalized snapshots, newest first; zero means all.
func (s *Server) ListHistory(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error) {
	if req.GetValue() < 0 {
		return nil, status.Error(codes.InvalidArgument, "count must not be negative")
	}

	return encodeList(ctx, s.service.History(ctx, int(req.GetValue())))
}

// ListAlerts returns the active alerts.
func (s *Server) ListAlerts(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return encodeList(ctx, s.service.ActiveAlerts(ctx))
}

// AlertHistory returns up to req alerts, newest first; zero means all.
func (s *Server) AlertHistory(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.ListValue, error) {
	if req.GetValue() < 0 {
		return nil, status.Error(codes.InvalidArgument, "limit must not be negative")
	}

	return encodeList(ctx, s.service.AlertHistory(ctx, int(req.GetValue())))
}

// AcknowledgeAlert marks an alert as seen.
func (s *Server) AcknowledgeAlert(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	if !s.service.Acknowledge(ctx, req.GetValue()) {
		return nil, status.Errorf(codes.NotFound, "alert %d not found", req.GetValue())
	}

	audit(ctx, "Alert acknowledged", "id", req.GetValue())

	return new(emptypb.Empty), nil
}

// ClearAlerts clears every active alert.
func (s *Server) ClearAlerts(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.service.ClearAlerts(ctx)
	audit(ctx, "Alerts cleared")

	return new(emptypb.Empty), nil
}

// Pin freezes the display view.
func (s *Server) Pin(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req.GetValue() < 0 {
		return nil, status.Error(codes.InvalidArgument, "sequence id must not be negative")
	}

	snapshot := s.service.Pin(ctx, req.GetValue())
	if snapshot == nil {
		return nil, status.Error(codes.FailedPrecondition, "nothing to pin yet")
	}

	audit(ctx, "View pinned", "sequence_id", snapshot.SequenceID)

	return encodeStruct(ctx, snapshot)
}

// Unpin makes the display view follow the live snapshot again.
func (s *Server) Unpin(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.service.Unpin(ctx)
	audit(ctx, "View unpinned")

	return new(emptypb.Empty), nil
}

// Reset drops all aggregated state.
func (s *Server) Reset(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.service.Reset(ctx)
	audit(ctx, "State reset")

	return new(emptypb.Empty), nil
}

// DrainEvents returns and clears the queued display events.
func (s *Server) DrainEvents(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return encodeList(ctx, s.service.DrainEvents(ctx))
}

// DrainRawLines returns and clears the queued raw lines.
func (s *Server) DrainRawLines(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	return encodeList(ctx, s.service.DrainRawLines(ctx))
}

// SetRecording starts or stops recording.
func (s *Server) SetRecording(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.service.SetRecording(ctx, req.GetValue()); err != nil {
		return nil, toStatusError(ctx, "set recording", err)
	}

	audit(ctx, "Recording changed", "path", req.GetValue())

	return new(emptypb.Empty), nil
}

// ControlReplay changes speed, pause state or steps a replay source.
func (s *Server) ControlReplay(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	var control mova.ReplayControl
	if err := FromMessage(req, &control); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.service.ControlReplay(ctx, control); err != nil {
		return nil, toStatusError(ctx, "control replay", err)
	}

	audit(ctx, "Replay controlled", "speed", control.Speed, "step", control.Step)

	return new(emptypb.Empty), nil
}

// audit logs a state-changing call together with the caller identity.
func audit(ctx context.Context, message string, kvs ...any) {
	ctx = logger.WithName(ctx, "grpc")

	logger.InfoKV(ctx, message, append(kvs, "actor", actorFromContext(ctx))...)
}

func encodeStruct(ctx context.Context, v any) (*structpb.Struct, error) {
	out, err := ToStruct(v)
	if err != nil {
		return nil, toStatusError(ctx, "encode response", err)
	}

	return out, nil
}

func encodeList(ctx context.Context, v any) (*structpb.ListValue, error) {
	out, err := ToList(v)
	if err != nil {
		return nil, toStatusError(ctx, "encode response", err)
	}

	return out, nil
}

// toStatusError maps service errors to gRPC codes. Unexpected errors are
// logged and reported without detail.
func toStatusError(ctx context.Context, operation string, err error) error {
	switch {
	case errors.Is(err, mova.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, mova.ErrNotReplay):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		logger.Errorf(logger.WithName(ctx, "grpc"), "Failed to %s: %v", operation, err)

		return status.Errorf(codes.Internal, "unable to %s", operation)
	}
}
