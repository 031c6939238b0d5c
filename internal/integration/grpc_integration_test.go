package integration

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/mova-viewer/internal/config"
	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/repository/archive"
	"github.com/oshokin/mova-viewer/internal/service/alerting"
	"github.com/oshokin/mova-viewer/internal/service/common"
	"github.com/oshokin/mova-viewer/internal/service/viewer"
)

// capture is a short recording with three stages.
var capture = []string{
	"S 1 08:00:00 SMF 1 2 3 SAT 45 LAM 12",
	"5 NX 2 ESLI ABC 1LA 10 20 30",
	"S 2 08:00:05 SAT 1",
	"2 NX 2 08:00:06 OPT DEM 0 0",
	"S 3 08:00:10",
}

// reservePort returns a free local address.
func reservePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := l.Addr().String()
	_ = l.Close()

	return addr
}

// daemon describes a running viewer.
type daemon struct {
	grpcAddr    string
	httpAddr    string
	archivePath string
	done        chan error
}

// startViewer writes a recording and a configuration, then runs the daemon
// until the test ends.
func startViewer(t *testing.T) *daemon {
	t.Helper()

	dir := t.TempDir()
	replayPath := filepath.Join(dir, "capture.txt")
	require.NoError(t, os.WriteFile(replayPath, []byte(strings.Join(capture, "\n")+"\n"), 0o600))

	d := &daemon{
		grpcAddr:    reservePort(t),
		httpAddr:    reservePort(t),
		archivePath: filepath.Join(dir, "archive.db"),
		done:        make(chan error, 1),
	}

	cfgPath := filepath.Join(dir, "mova-viewer.yaml")

	// Create temporary configuration file.
	require.NoError(t, config.Save(cfgPath, &config.Config{
		Source: config.Source{
			Mode:       config.SourceReplay,
			ReplayFile: replayPath,
			Speed:      "instant",
		},
		Archive:     config.Archive{Path: d.archivePath},
		GRPCAddress: d.grpcAddr,
		HTTPAddress: d.httpAddr,
		Timeout:     3 * time.Second,
	}))

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		d.done <- viewer.Run(ctx, &viewer.Options{ConfigPath: cfgPath})
	}()

	t.Cleanup(func() {
		cancel()

		select {
		case err := <-d.done:
			require.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("viewer did not stop")
		}
	})

	return d
}

// TestViewer_GRPCRoundtrip replays a recording and queries it through the gRPC client.
func TestViewer_GRPCRoundtrip(t *testing.T) {
	t.Parallel()

	d := startViewer(t)
	ctx := context.Background()

	c, err := common.Dial(ctx, d.grpcAddr, common.WithCallTimeout(3*time.Second), common.WithActor("tester@ci"))
	require.NoError(t, err)

	defer func() {
		_ = c.Close()
	}()

	// Wait until the replay has been ingested.
	require.Eventually(t, func() bool {
		status, statusErr := c.Status(ctx)

		return statusErr == nil && status.Stats.TotalLines == int64(len(capture))
	}, 10*time.Second, 50*time.Millisecond)

	current, err := c.Snapshot(ctx, false)
	require.NoError(t, err)
	require.Equal(t, 3, current.Stage)

	history, err := c.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 2, history[0].Stage, "history is newest first")

	alerts, err := c.AlertHistory(ctx, 0)
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	require.Equal(t, alerting.RuleSatOver, alerts[len(alerts)-1].Rule)
	require.NotNil(t, alerts[len(alerts)-1].ClearedAt, "SAT 1 clears capacity mode")

	pinned, err := c.Pin(ctx, history[1].SequenceID)
	require.NoError(t, err)
	require.Equal(t, 1, pinned.Stage)

	display, err := c.Snapshot(ctx, true)
	require.NoError(t, err)
	require.Equal(t, history[1].SequenceID, display.SequenceID)

	require.NoError(t, c.Unpin(ctx))

	paused := true
	require.NoError(t, c.ControlReplay(ctx, mova.ReplayControl{Speed: "step", Paused: &paused}))

	lines, err := c.RawLines(ctx)
	require.NoError(t, err)
	require.Equal(t, capture, lines)

	require.NoError(t, c.Reset(ctx))

	status, err := c.Status(ctx)
	require.NoError(t, err)
	require.Zero(t, status.Stats.TotalLines)
}

// TestViewer_HTTPAndArchive reads the JSON API and checks finalized snapshots reach the archive.
func TestViewer_HTTPAndArchive(t *testing.T) {
	t.Parallel()

	d := startViewer(t)
	base := "http://" + d.httpAddr

	var history []*mova.Snapshot

	require.Eventually(t, func() bool {
		history = nil

		return getJSON(t, base+"/api/v1/history", &history) == http.StatusOK && len(history) == 2
	}, 10*time.Second, 50*time.Millisecond)

	var status mova.Status
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/status", &status))
	require.NotEmpty(t, status.SessionID)

	var entries []archive.Entry

	require.Eventually(t, func() bool {
		entries = nil

		return getJSON(t, base+"/api/v1/archive", &entries) == http.StatusOK && len(entries) == 2
	}, 10*time.Second, 50*time.Millisecond)

	require.Equal(t, 1, entries[0].Stage)

	var archived mova.Snapshot
	require.Equal(t, http.StatusOK, getJSON(t, base+"/api/v1/archive/1", &archived))
	require.Equal(t, int64(1), archived.SequenceID)

	require.Equal(t, http.StatusOK, getJSON(t, base+"/metrics", nil))
}

// getJSON fetches url and decodes a JSON body into out when out is not nil.
func getJSON(t *testing.T, url string, out any) int {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.Unmarshal(body, out))
	}

	return resp.StatusCode
}
