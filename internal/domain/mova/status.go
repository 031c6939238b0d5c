package mova

import (
	"errors"
	"time"
)

// Stats is a point-in-time view of the aggregation counters.
type Stats struct {
	TotalLines      int64  `json:"total_lines"`
	TotalSnapshots  int64  `json:"total_snapshots"`
	CurrentSequence int64  `json:"current_sequence"`
	HistoryLen      int    `json:"history_len"`
	Pinned          bool   `json:"pinned"`
	PinnedSequence  int64  `json:"pinned_sequence"`
	PendingEvents   int    `json:"pending_events"`
	PendingRawLines int    `json:"pending_raw_lines"`
	DroppedEvents   uint64 `json:"dropped_events"`
	DroppedRawLines uint64 `json:"dropped_raw_lines"`
}

// Status describes a running viewer: where its text comes from and how far
// ingestion has got.
type Status struct {
	SessionID    string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	Source       string    `json:"source"`
	Pipeline     string    `json:"pipeline"`
	Recording    string    `json:"recording,omitempty"`
	QueueDepth   int       `json:"queue_depth"`
	ActiveAlerts int       `json:"active_alerts"`
	Stats        Stats     `json:"stats"`
}

// ReplayControl changes how a replay source feeds lines. Zero fields leave
// the corresponding setting alone.
type ReplayControl struct {
	Speed  string `json:"speed,omitempty"`
	Paused *bool  `json:"paused,omitempty"`
	Step   bool   `json:"step,omitempty"`
}

var (
	// ErrNotReplay is returned for replay controls on a non-replay source.
	ErrNotReplay = errors.New("source is not a replay")
	// ErrInvalidRequest marks caller mistakes such as an unknown speed name.
	ErrInvalidRequest = errors.New("invalid request")
)
