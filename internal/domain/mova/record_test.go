package mova

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestParseTimeOfDay covers accepted and rejected clock tokens.
func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	got, ok := ParseTimeOfDay("08:15:30")
	require.True(t, ok)
	require.Equal(t, 8*time.Hour+15*time.Minute+30*time.Second, got.Duration())
	require.Equal(t, "08:15:30", got.String())

	got, ok = ParseTimeOfDay("8:05:09.5")
	require.True(t, ok)
	require.Equal(t, 8*time.Hour+5*time.Minute+9*time.Second+500*time.Millisecond, got.Duration())

	for _, bad := range []string{"", "1:2:3", "123456789", "24:00:00", "08:61:00", "08:15", "ab:cd:ef", "08:15:30."} {
		_, ok = ParseTimeOfDay(bad)
		require.False(t, ok, bad)
	}
}

// TestTimeOfDayOn anchors a time of day to a calendar day.
func TestTimeOfDayOn(t *testing.T) {
	t.Parallel()

	tod, ok := ParseTimeOfDay("23:59:58")
	require.True(t, ok)

	day := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 1, 5, 23, 59, 58, 0, time.UTC), tod.On(day))
}

// TestRecordKindAndSummary checks the kind derived from payloads and the feed summaries.
func TestRecordKindAndSummary(t *testing.T) {
	t.Parallel()

	tod, _ := ParseTimeOfDay("08:15:30")

	header := &Record{Stage: IntPtr(3), TimeOfDay: &tod, Payload: new(StageHeader)}
	require.Equal(t, KindStageHeader, header.Kind())
	require.Equal(t, "Stage 3 @ 08:15:30", header.Summary())

	option := &Record{Link: IntPtr(2), Payload: &LinkOption{CF: IntPtr(3)}}
	require.Equal(t, "NX 2 OPT CF=3", option.Summary())

	other := &Record{RawLine: string(make([]byte, 80))}
	require.Equal(t, KindOther, other.Kind())
	require.Len(t, other.Summary(), summaryRawLimit+3)

	require.Equal(t, KindOther, (*Record)(nil).Kind())
}

// TestRecordJSON_PreservesPayloadType decodes a record back into its concrete payload.
func TestRecordJSON_PreservesPayloadType(t *testing.T) {
	t.Parallel()

	in := &Record{
		Seq:     12,
		RawLine: "3 NX 2 08:15:31 BDR 1 2 3 1LK 5 6 7 8",
		Link:    IntPtr(2),
		Age:     IntPtr(3),
		Payload: &LinkBoundary{Boundary: BDREntry{A: 1, B: 2, C: 3, LKs: []LKEntry{{Lane: 1, A: 5, B: 6, C: 7, D: 8}}}},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	require.Contains(t, string(data), `"kind":"LinkBoundary"`)

	var out Record
	require.NoError(t, json.Unmarshal(data, &out))

	boundary, ok := out.Payload.(*LinkBoundary)
	require.True(t, ok)
	require.Equal(t, in.Payload, boundary)
	require.Equal(t, 3, *out.Age)

	var kind Kind
	require.Error(t, kind.UnmarshalText([]byte("Nope")))
}
