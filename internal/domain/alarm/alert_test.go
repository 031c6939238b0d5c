package alarm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestAlertClone verifies that Clone returns a deep copy and handles nil safely.
func TestAlertClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Alert)(nil).Clone())

	cleared := time.Now().UTC().Truncate(time.Second)
	seq := int64(4)
	a := &Alert{
		ID:                 1,
		Rule:               "DemStuck_7",
		Severity:           SeverityWarning,
		RaisedAt:           cleared.Add(-time.Minute),
		ClearedAt:          &cleared,
		SnapshotSequenceID: &seq,
	}

	b := a.Clone()
	require.Equal(t, a, b)
	require.NotSame(t, a.ClearedAt, b.ClearedAt)
	require.NotSame(t, a.SnapshotSequenceID, b.SnapshotSequenceID)
	require.False(t, b.IsActive())
}

// TestSeverityText round-trips severity names through the text codec.
func TestSeverityText(t *testing.T) {
	t.Parallel()

	for _, s := range []Severity{SeverityInfo, SeverityWarning, SeverityCritical} {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var got Severity
		require.NoError(t, got.UnmarshalText(text))
		require.Equal(t, s, got)
	}

	var s Severity
	require.Error(t, s.UnmarshalText([]byte("loud")))
}
