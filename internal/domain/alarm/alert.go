package alarm

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks alerts for display and fan-out.
type Severity uint8

const (
	// SeverityInfo is informational.
	SeverityInfo Severity = iota
	// SeverityWarning needs attention.
	SeverityWarning
	// SeverityCritical means the feed is not usable.
	SeverityCritical
)

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "Info"
	case SeverityWarning:
		return "Warning"
	case SeverityCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Severity(%d)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "info":
		*s = SeverityInfo
	case "warning":
		*s = SeverityWarning
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", text)
	}

	return nil
}

// Alert is a single raise/clear cycle of a rule.
type Alert struct {
	// ID is the sequential identifier assigned when the alert is raised.
	ID int64 `json:"id"`
	// Rule is the stable rule key, e.g. "NoData" or "DemStuck_7".
	Rule string `json:"rule"`
	// Message is the human-readable description.
	Message string `json:"message"`
	// Severity ranks the alert.
	Severity Severity `json:"severity"`
	// RaisedAt is when the rule became active.
	RaisedAt time.Time `json:"raised_at"`
	// ClearedAt is nil while the alert is active.
	ClearedAt *time.Time `json:"cleared_at,omitempty"`
	// Acknowledged is set by an operator and never changes the active state.
	Acknowledged bool `json:"acknowledged"`
	// SnapshotSequenceID links the alert to the snapshot that triggered it.
	SnapshotSequenceID *int64 `json:"snapshot_sequence_id,omitempty"`
}

// IsActive reports whether the alert has not been cleared yet.
func (a *Alert) IsActive() bool {
	return a.ClearedAt == nil
}

// Clone returns a deep copy of the alert.
func (a *Alert) Clone() *Alert {
	if a == nil {
		return nil
	}

	cloned := *a

	if a.ClearedAt != nil {
		clearedAt := *a.ClearedAt
		cloned.ClearedAt = &clearedAt
	}

	if a.SnapshotSequenceID != nil {
		seq := *a.SnapshotSequenceID
		cloned.SnapshotSequenceID = &seq
	}

	return &cloned
}
