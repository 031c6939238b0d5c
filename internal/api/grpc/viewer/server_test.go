package viewer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
)

// fakeService implements Service with canned values for transport tests.
type fakeService struct {
	mu sync.Mutex

	snapshot  *mova.Snapshot
	history   []*mova.Snapshot
	alerts    []*alarm.Alert
	events    []mova.Event
	raw       []string
	recording string
	control   mova.ReplayControl
	replayErr error
	pinned    int64
	resets    int
}

func (f *fakeService) Status(context.Context) *mova.Status {
	return &mova.Status{SessionID: "session", Source: "replay", Pipeline: "Running"}
}

func (f *fakeService) CurrentSnapshot(context.Context, bool) *mova.Snapshot { return f.snapshot }

func (f *fakeService) Snapshot(_ context.Context, seq int64) (*mova.Snapshot, bool) {
	for _, s := range f.history {
		if s.SequenceID == seq {
			return s, true
		}
	}

	return nil, false
}

func (f *fakeService) History(_ context.Context, n int) []*mova.Snapshot {
	if n > 0 && n < len(f.history) {
		return f.history[:n]
	}

	return f.history
}

func (f *fakeService) ActiveAlerts(context.Context) []*alarm.Alert { return f.alerts }

func (f *fakeService) AlertHistory(context.Context, int) []*alarm.Alert { return f.alerts }

func (f *fakeService) Acknowledge(_ context.Context, id int64) bool {
	for _, a := range f.alerts {
		if a.ID == id {
			a.Acknowledged = true

			return true
		}
	}

	return false
}

func (f *fakeService) ClearAlerts(context.Context) { f.alerts = nil }

func (f *fakeService) Pin(_ context.Context, seq int64) *mova.Snapshot {
	f.pinned = seq

	return f.snapshot
}

func (f *fakeService) Unpin(context.Context)                    { f.pinned = -1 }
func (f *fakeService) Reset(context.Context)                    { f.resets++ }
func (f *fakeService) DrainEvents(context.Context) []mova.Event { return f.events }
func (f *fakeService) DrainRawLines(context.Context) []string   { return f.raw }

func (f *fakeService) SetRecording(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.recording = path

	return nil
}

func (f *fakeService) ControlReplay(_ context.Context, control mova.ReplayControl) error {
	f.control = control

	return f.replayErr
}

func sampleSnapshot(seq int64) *mova.Snapshot {
	s := mova.NewSnapshot(seq, 4, time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC))
	s.Fields.SAT = mova.StringPtr("123")
	s.Link(3, s.StartedAt).DEM = mova.StringPtr("1 2")

	return s
}

// TestServer_GetSnapshot converts the snapshot and reports a missing one.
func TestServer_GetSnapshot(t *testing.T) {
	t.Parallel()

	var (
		svc = new(fakeService)
		s   = NewServer(svc)
		ctx = t.Context()
	)

	_, err := s.GetSnapshot(ctx, wrapperspb.Bool(false))
	require.Equal(t, codes.NotFound, status.Code(err))

	svc.snapshot = sampleSnapshot(2)

	resp, err := s.GetSnapshot(ctx, wrapperspb.Bool(true))
	require.NoError(t, err)
	require.InDelta(t, 2, resp.GetFields()["sequence_id"].GetNumberValue(), 0)

	var decoded mova.Snapshot
	require.NoError(t, FromMessage(resp, &decoded))
	require.Equal(t, "123", *decoded.Fields.SAT)
	require.Equal(t, "1 2", *decoded.Links[3].DEM)
}

// TestServer_Validation rejects negative and zero arguments where they make no sense.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	var (
		s   = NewServer(new(fakeService))
		ctx = t.Context()
	)

	_, err := s.FindSnapshot(ctx, wrapperspb.Int64(0))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.FindSnapshot(ctx, wrapperspb.Int64(9))
	require.Equal(t, codes.NotFound, status.Code(err))

	_, err = s.ListHistory(ctx, wrapperspb.Int64(-1))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.AlertHistory(ctx, wrapperspb.Int64(-1))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Pin(ctx, wrapperspb.Int64(-5))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Pin(ctx, wrapperspb.Int64(0))
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	_, err = s.AcknowledgeAlert(ctx, wrapperspb.Int64(1))
	require.Equal(t, codes.NotFound, status.Code(err))
}

// TestServer_Lists encodes empty and populated lists.
func TestServer_Lists(t *testing.T) {
	t.Parallel()

	var (
		svc = &fakeService{raw: []string{"S 1", "NX 2"}}
		s   = NewServer(svc)
		ctx = t.Context()
	)

	alerts, err := s.ListAlerts(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Empty(t, alerts.GetValues())

	raw, err := s.DrainRawLines(ctx, new(emptypb.Empty))
	require.NoError(t, err)
	require.Len(t, raw.GetValues(), 2)
	require.Equal(t, "NX 2", raw.GetValues()[1].GetStringValue())

	svc.history = []*mova.Snapshot{sampleSnapshot(3), sampleSnapshot(2), sampleSnapshot(1)}

	history, err := s.ListHistory(ctx, wrapperspb.Int64(2))
	require.NoError(t, err)
	require.Len(t, history.GetValues(), 2)

	var decoded []*mova.Snapshot
	require.NoError(t, FromMessage(history, &decoded))
	require.Equal(t, int64(3), decoded[0].SequenceID)
}

// TestServer_ControlReplay maps service errors to status codes.
func TestServer_ControlReplay(t *testing.T) {
	t.Parallel()

	var (
		svc = new(fakeService)
		s   = NewServer(svc)
		ctx = t.Context()
	)

	req, err := structpb.NewStruct(map[string]any{"speed": "fast50", "paused": true})
	require.NoError(t, err)

	_, err = s.ControlReplay(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "fast50", svc.control.Speed)
	require.True(t, *svc.control.Paused)

	svc.replayErr = fmt.Errorf("%w: warp", mova.ErrInvalidRequest)
	_, err = s.ControlReplay(ctx, req)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	svc.replayErr = mova.ErrNotReplay
	_, err = s.ControlReplay(ctx, req)
	require.Equal(t, codes.FailedPrecondition, status.Code(err))

	svc.replayErr = errors.New("boom")
	_, err = s.ControlReplay(ctx, req)
	require.Equal(t, codes.Internal, status.Code(err))
}

// TestServiceDesc_Invoke calls through a real grpc.Server using the hand-written descriptor.
func TestServiceDesc_Invoke(t *testing.T) {
	t.Parallel()

	var (
		listener = bufconn.Listen(1 << 20)
		svc      = &fakeService{snapshot: sampleSnapshot(1)}
		seen     []string
		seenMu   sync.Mutex
	)

	server := grpc.NewServer(grpc.UnaryInterceptor(
		func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			seenMu.Lock()
			seen = append(seen, info.FullMethod)
			seenMu.Unlock()

			return handler(ctx, req)
		},
	))
	Register(server, NewServer(svc))

	go func() { _ = server.Serve(listener) }()

	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	statusResp := new(structpb.Struct)
	require.NoError(t, conn.Invoke(t.Context(), FullMethod(MethodGetStatus), new(emptypb.Empty), statusResp))
	require.Equal(t, "session", statusResp.GetFields()["session_id"].GetStringValue())

	require.NoError(t, conn.Invoke(
		t.Context(), FullMethod(MethodSetRecording), wrapperspb.String("/tmp/rec.log"), new(emptypb.Empty),
	))

	svc.mu.Lock()
	require.Equal(t, "/tmp/rec.log", svc.recording)
	svc.mu.Unlock()

	err = conn.Invoke(t.Context(), FullMethod(MethodAcknowledge), wrapperspb.Int64(4), new(emptypb.Empty))
	require.Equal(t, codes.NotFound, status.Code(err))

	seenMu.Lock()
	defer seenMu.Unlock()

	require.Equal(t, []string{
		FullMethod(MethodGetStatus),
		FullMethod(MethodSetRecording),
		FullMethod(MethodAcknowledge),
	}, seen)
}
