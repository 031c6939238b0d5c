package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/metrics"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
)

// fakeService implements Service with canned values.
type fakeService struct {
	snapshot  *mova.Snapshot
	history   []*mova.Snapshot
	alerts    []*alarm.Alert
	raw       []string
	recording string
	control   mova.ReplayControl
	replayErr error
	archived  map[int64]*mova.Snapshot
	pinned    *int64
	cleared   bool
	resets    int
}

func (f *fakeService) Status(context.Context) *mova.Status {
	return &mova.Status{SessionID: "s-1", Pipeline: "Running", Stats: mova.Stats{TotalLines: 12}}
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

func (f *fakeService) AlertHistory(_ context.Context, limit int) []*alarm.Alert {
	if limit > 0 && limit < len(f.alerts) {
		return f.alerts[:limit]
	}

	return f.alerts
}

func (f *fakeService) Acknowledge(_ context.Context, id int64) bool {
	for _, a := range f.alerts {
		if a.ID == id {
			a.Acknowledged = true

			return true
		}
	}

	return false
}

func (f *fakeService) ClearAlerts(context.Context) { f.cleared = true }

func (f *fakeService) Pin(_ context.Context, seq int64) *mova.Snapshot {
	f.pinned = &seq

	return f.snapshot
}

func (f *fakeService) Unpin(context.Context)                    { f.pinned = nil }
func (f *fakeService) Reset(context.Context)                    { f.resets++ }
func (f *fakeService) DrainEvents(context.Context) []mova.Event { return nil }
func (f *fakeService) DrainRawLines(context.Context) []string   { return f.raw }

func (f *fakeService) SetRecording(_ context.Context, path string) error {
	f.recording = path

	return nil
}

func (f *fakeService) ControlReplay(_ context.Context, control mova.ReplayControl) error {
	f.control = control

	return f.replayErr
}

func (f *fakeService) Archived(context.Context) ([]archive.Entry, error) {
	if f.archived == nil {
		return nil, archive.ErrDisabled
	}

	entries := make([]archive.Entry, 0, len(f.archived))
	for seq := range f.archived {
		entries = append(entries, archive.Entry{SequenceID: seq})
	}

	return entries, nil
}

func (f *fakeService) ArchivedSnapshot(_ context.Context, seq int64) (*mova.Snapshot, error) {
	snapshot, ok := f.archived[seq]
	if !ok {
		return nil, archive.ErrNotFound
	}

	return snapshot, nil
}

func newTestServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(NewHandler(t.Context(), svc, metrics.New().Handler()))
	t.Cleanup(server.Close)

	return server
}

func do(t *testing.T, server *httptest.Server, method, path, body string) (int, string) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, server.URL+path, reader)
	require.NoError(t, err)

	resp, err := server.Client().Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(data)
}

func sampleSnapshot(seq int64) *mova.Snapshot {
	return mova.NewSnapshot(seq, 2, time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC))
}

// TestRouter_Reads serves status, snapshots and history.
func TestRouter_Reads(t *testing.T) {
	t.Parallel()

	svc := &fakeService{history: []*mova.Snapshot{sampleSnapshot(2), sampleSnapshot(1)}}
	server := newTestServer(t, svc)

	code, body := do(t, server, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, code)

	var status mova.Status
	require.NoError(t, json.Unmarshal([]byte(body), &status))
	require.Equal(t, "s-1", status.SessionID)
	require.Equal(t, int64(12), status.Stats.TotalLines)

	code, body = do(t, server, http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusNotFound, code)
	require.JSONEq(t, `{"error":"no snapshot yet"}`, body)

	svc.snapshot = sampleSnapshot(3)

	code, _ = do(t, server, http.MethodGet, "/api/v1/snapshot?display=true", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, server, http.MethodGet, "/api/v1/snapshot?display=maybe", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, server, http.MethodGet, "/api/v1/snapshots/1", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"sequence_id":1`)

	code, _ = do(t, server, http.MethodGet, "/api/v1/snapshots/7", "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, server, http.MethodGet, "/api/v1/snapshots/abc", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, server, http.MethodGet, "/api/v1/history?n=1", "")
	require.Equal(t, http.StatusOK, code)

	var history []*mova.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &history))
	require.Len(t, history, 1)

	code, _ = do(t, server, http.MethodGet, "/api/v1/history?n=-3", "")
	require.Equal(t, http.StatusBadRequest, code)
}

// TestRouter_Alerts acknowledges and clears alerts.
func TestRouter_Alerts(t *testing.T) {
	t.Parallel()

	svc := &fakeService{alerts: []*alarm.Alert{{ID: 1, Rule: "NoData"}, {ID: 2, Rule: "SatOver"}}}
	server := newTestServer(t, svc)

	code, body := do(t, server, http.MethodGet, "/api/v1/alerts", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "SatOver")

	code, _ = do(t, server, http.MethodGet, "/api/v1/alerts/history?limit=1", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, server, http.MethodPost, "/api/v1/alerts/2/ack", "")
	require.Equal(t, http.StatusNoContent, code)
	require.True(t, svc.alerts[1].Acknowledged)

	code, _ = do(t, server, http.MethodPost, "/api/v1/alerts/9/ack", "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, server, http.MethodDelete, "/api/v1/alerts", "")
	require.Equal(t, http.StatusNoContent, code)
	require.True(t, svc.cleared)
}

// TestRouter_Actions covers pin, reset, recording and replay controls.
func TestRouter_Actions(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	server := newTestServer(t, svc)

	code, _ := do(t, server, http.MethodPost, "/api/v1/pin", "")
	require.Equal(t, http.StatusConflict, code)

	svc.snapshot = sampleSnapshot(4)

	code, _ = do(t, server, http.MethodPost, "/api/v1/pin?seq=4", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, int64(4), *svc.pinned)

	code, _ = do(t, server, http.MethodPost, "/api/v1/pin?seq=0", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, server, http.MethodDelete, "/api/v1/pin", "")
	require.Equal(t, http.StatusNoContent, code)
	require.Nil(t, svc.pinned)

	code, _ = do(t, server, http.MethodPost, "/api/v1/reset", "")
	require.Equal(t, http.StatusNoContent, code)
	require.Equal(t, 1, svc.resets)

	code, _ = do(t, server, http.MethodPut, "/api/v1/recording", `{"path":"/tmp/rec.lz4"}`)
	require.Equal(t, http.StatusNoContent, code)
	require.Equal(t, "/tmp/rec.lz4", svc.recording)

	code, _ = do(t, server, http.MethodPut, "/api/v1/recording", `{"file":"x"}`)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, server, http.MethodDelete, "/api/v1/recording", "")
	require.Equal(t, http.StatusNoContent, code)
	require.Empty(t, svc.recording)

	code, _ = do(t, server, http.MethodPost, "/api/v1/replay", `{"speed":"step","step":true}`)
	require.Equal(t, http.StatusNoContent, code)
	require.Equal(t, mova.ReplayControl{Speed: "step", Step: true}, svc.control)

	svc.replayErr = mova.ErrNotReplay

	code, body := do(t, server, http.MethodPost, "/api/v1/replay", `{"step":true}`)
	require.Equal(t, http.StatusConflict, code)
	require.Contains(t, body, "not a replay")
}

// TestRouter_Feeds encodes empty feeds as arrays.
func TestRouter_Feeds(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, &fakeService{raw: []string{"S 1 08:00:00"}})

	code, body := do(t, server, http.MethodGet, "/api/v1/events", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `[]`, body)

	code, body = do(t, server, http.MethodGet, "/api/v1/raw", "")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `["S 1 08:00:00"]`, body)
}

// TestRouter_Archive maps archive errors to status codes.
func TestRouter_Archive(t *testing.T) {
	t.Parallel()

	svc := new(fakeService)
	server := newTestServer(t, svc)

	code, _ := do(t, server, http.MethodGet, "/api/v1/archive", "")
	require.Equal(t, http.StatusServiceUnavailable, code)

	svc.archived = map[int64]*mova.Snapshot{5: sampleSnapshot(5)}

	code, body := do(t, server, http.MethodGet, "/api/v1/archive", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `"sequence_id":5`)

	code, _ = do(t, server, http.MethodGet, "/api/v1/archive/5", "")
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, server, http.MethodGet, "/api/v1/archive/6", "")
	require.Equal(t, http.StatusNotFound, code)
}

// TestRouter_Operational serves health and metrics.
func TestRouter_Operational(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, new(fakeService))

	code, _ := do(t, server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusNoContent, code)

	code, body := do(t, server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "mova_lines_total")
}
