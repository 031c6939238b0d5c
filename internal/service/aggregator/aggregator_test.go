package aggregator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/parser"
)

// recordingSink captures alert signals as strings.
type recordingSink struct {
	mu    sync.Mutex
	calls []string
}

func (s *recordingSink) add(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *recordingSink) DataReceived()                    { s.add("data") }
func (s *recordingSink) StageChanged()                    { s.add("stage") }
func (s *recordingSink) OptReceived(link int)             { s.add("opt %d", link) }
func (s *recordingSink) SATUpdated(sat string, seq int64) { s.add("sat %q %d", sat, seq) }
func (s *recordingSink) DEMUpdated(link int, dem string)  { s.add("dem %d %q", link, dem) }
func (s *recordingSink) Reset()                           { s.add("reset") }

func (s *recordingSink) take() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.calls
	s.calls = nil

	return out
}

type fixture struct {
	agg        *Aggregator
	sink       *recordingSink
	classifier *parser.Classifier
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()

	at := time.Date(2026, time.March, 2, 8, 0, 0, 0, time.UTC)
	now := func() time.Time { return at }

	sink := new(recordingSink)
	opts.Alerts = sink
	opts.Now = now

	agg, err := New(opts)
	require.NoError(t, err)

	return &fixture{
		agg:        agg,
		sink:       sink,
		classifier: parser.NewClassifier(parser.WithClock(now)),
	}
}

// feed runs lines through the same steps as the ingestion loop.
func (f *fixture) feed(lines ...string) {
	for _, line := range lines {
		f.agg.IngestRawLine(line)

		rec := f.classifier.Classify(line)
		f.agg.OnRecord(rec)
		f.agg.EnqueueEvent(rec)
	}
}

// TestNew_RejectsBadSizes reports configuration errors from the ring.
func TestNew_RejectsBadSizes(t *testing.T) {
	t.Parallel()

	_, err := New(Options{HistorySize: -1})
	require.Error(t, err)

	_, err = New(Options{DisplayQueueSize: -5})
	require.Error(t, err)
}

// TestOnRecord_DropsOrphans ignores records before the first stage header.
func TestOnRecord_DropsOrphans(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	f.feed("SMCYC 60", "5 NX 2 ESLI ABC")

	require.Nil(t, f.agg.CurrentSnapshot())
	require.Equal(t, int64(2), f.agg.Stats().TotalLines)

	events := f.agg.DrainEvents()
	require.Len(t, events, 2)
	require.Zero(t, events[0].SnapshotSequenceID)
}

// TestOnRecord_MergeRules folds every record kind into the current snapshot.
func TestOnRecord_MergeRules(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	f.feed(
		"S 3 08:15:30 SMF 1 2 3 SAT 123 LAM 12 CUT 5",
		"SMCYC 60 DMX 4 5",
		"7 SMIN 9 LMIN 1",
		"5 NX 2 ESLI ABC 1LA 10 20 30 2LA 1 1 1",
		"5 NX 2 1LA 7 8 9",
		"3 NX 2 08:15:31 BDR 1 2 3 1LK 5 6 7 8",
		"3 NX 2 08:15:31 BDR 4 5 6",
		"2 NX 2 08:15:32 OPT BDR 9 8 7 CF 3 DEM XX RCX 1 2 3",
		"IG:5 SDEM YY BON 1 2 RCIN 3 4",
		"garbage",
	)

	snap := f.agg.CurrentSnapshot()
	require.NotNil(t, snap)
	require.Equal(t, int64(1), snap.SequenceID)
	require.Equal(t, 3, snap.Stage)
	require.Equal(t, "08:15:30", snap.TimeOfDay.String())
	require.Len(t, snap.Records, 10)

	require.Equal(t, mova.StageFields{
		SMF:   []int{1, 2, 3},
		SAT:   mova.StringPtr("123"),
		LAM:   mova.IntPtr(12),
		CUT:   mova.IntPtr(5),
		SMCYC: mova.IntPtr(60),
		DMX:   []int{4, 5},
		SMIN:  mova.IntPtr(9),
		LMIN:  []int{1},
	}, snap.Fields)

	link := snap.Links[2]
	require.NotNil(t, link)
	require.Equal(t, mova.StringPtr("ABC"), link.ESLI, "ESLI survives a header without it")
	require.Equal(t, []mova.LAEntry{{Lane: 1, V1: 7, V2: 8, V3: 9}}, link.LAs, "LAs are replaced wholesale")
	require.Equal(t, []mova.BDREntry{
		{A: 1, B: 2, C: 3, LKs: []mova.LKEntry{{Lane: 1, A: 5, B: 6, C: 7, D: 8}}},
		{A: 4, B: 5, C: 6},
	}, link.BDRs, "boundary entries accumulate")
	require.Equal(t, mova.IntPtr(3), link.CF)
	require.Equal(t, mova.StringPtr("XX"), link.DEM)
	require.Equal(t, mova.StringPtr("XX"), link.DEMRaw)
	require.Equal(t, []int{1, 2, 3}, link.RCX)
	require.Equal(t, mova.IntPtr(9), link.OptBoundaryA)
	require.Equal(t, mova.IntPtr(5), link.IG)
	require.Equal(t, mova.StringPtr("YY"), link.SDEM)
	require.Equal(t, []int{1, 2}, link.BON)
	require.Equal(t, []int{3, 4}, link.RCIN)
}

// TestOnRecord_AlertSignals checks which signals each record kind produces.
func TestOnRecord_AlertSignals(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})

	f.feed("S 1 08:00:00 SAT 45")
	require.Equal(t, []string{"data", "stage", `sat "45" 1`}, f.sink.take())

	f.feed("2 NX 4 08:00:01 OPT DEM 0 0")
	require.Equal(t, []string{"data", `dem 4 "0 0"`, "opt 4"}, f.sink.take())

	f.feed("SMCYC 60")
	require.Equal(t, []string{"data"}, f.sink.take())

	f.feed("SMCYC 61 SAT 1")
	require.Equal(t, []string{"data", `sat "1" 1`}, f.sink.take())

	f.feed("S 2 08:00:05")
	require.Equal(t, []string{"data", "stage"}, f.sink.take())

	f.agg.Reset()
	require.Equal(t, []string{"reset"}, f.sink.take())
}

// TestStageHeader_FinalizesIntoHistory moves the current snapshot into history.
func TestStageHeader_FinalizesIntoHistory(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{HistorySize: 2})

	var finalized []int64

	f.agg.OnFinalized(func(s *mova.Snapshot) {
		finalized = append(finalized, s.SequenceID)
	})

	for stage := range 4 {
		f.feed(fmt.Sprintf("S %d 08:00:0%d", stage, stage), "SMCYC 60")
	}

	require.Equal(t, []int64{1, 2, 3}, finalized)

	history := f.agg.History(0)
	require.Len(t, history, 2)
	require.Equal(t, int64(2), history[0].SequenceID)
	require.Equal(t, int64(3), history[1].SequenceID)
	require.Equal(t, int64(4), f.agg.CurrentSnapshot().SequenceID)

	last := f.agg.History(1)
	require.Len(t, last, 1)
	require.Equal(t, int64(3), last[0].SequenceID)

	stats := f.agg.Stats()
	require.Equal(t, int64(3), stats.TotalSnapshots)
	require.Equal(t, int64(8), stats.TotalLines)

	found, ok := f.agg.Snapshot(3)
	require.True(t, ok)
	require.Equal(t, 2, found.Stage)

	_, ok = f.agg.Snapshot(1)
	require.False(t, ok)
}

// TestPin_IsImmutableWhileIngesting keeps the pinned view fixed as new lines arrive.
func TestPin_IsImmutableWhileIngesting(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	f.feed("S 1 08:00:00 SMCYC 10", "5 NX 2 ESLI A")

	pinned := f.agg.PinCurrent()
	require.NotNil(t, pinned)

	f.feed("SMCYC 20", "5 NX 2 ESLI B", "5 NX 3 ESLI C")

	display := f.agg.DisplaySnapshot()
	require.Empty(t, cmp.Diff(pinned, display))
	require.Equal(t, 10, *display.Fields.SMCYC)
	require.Equal(t, 20, *f.agg.CurrentSnapshot().Fields.SMCYC)

	display.Links[2].ESLI = mova.StringPtr("mutated")
	require.Equal(t, "A", *f.agg.DisplaySnapshot().Links[2].ESLI)

	f.agg.Unpin()
	require.False(t, f.agg.IsPinned())
	require.Equal(t, "B", *f.agg.DisplaySnapshot().Links[2].ESLI)
}

// TestPin_HistoricalAndFallback pins by sequence id and falls back to the current snapshot.
func TestPin_HistoricalAndFallback(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	f.feed("S 1 08:00:00", "S 2 08:00:01", "S 3 08:00:02")

	require.Equal(t, int64(2), f.agg.Pin(2).SequenceID)
	require.Equal(t, 2, f.agg.DisplaySnapshot().Stage)
	require.Equal(t, int64(2), f.agg.Stats().PinnedSequence)

	require.Equal(t, int64(3), f.agg.Pin(99).SequenceID)

	f.feed("S 4 08:00:03")
	require.Equal(t, 3, f.agg.DisplaySnapshot().Stage)
}

// TestPin_BeforeAnySnapshot stays pinned with an empty view.
func TestPin_BeforeAnySnapshot(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})

	require.Nil(t, f.agg.PinCurrent())
	f.feed("S 1 08:00:00")

	require.True(t, f.agg.IsPinned())
	require.Nil(t, f.agg.DisplaySnapshot())
}

// TestDisplayQueues drains events and raw lines, dropping the oldest when full.
func TestDisplayQueues(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{DisplayQueueSize: 2})
	f.feed("S 7 08:15:30", "5 NX 2 ESLI ABC", "noise")

	require.Equal(t, []string{"5 NX 2 ESLI ABC", "noise"}, f.agg.DrainRawLines())
	require.Empty(t, f.agg.DrainRawLines())

	events := f.agg.DrainEvents()
	require.Len(t, events, 2)
	require.Equal(t, mova.KindLinkHeader, events[0].Kind)
	require.Equal(t, mova.IntPtr(2), events[0].Link)
	require.Equal(t, mova.IntPtr(7), events[0].Stage)
	require.Equal(t, int64(1), events[0].SnapshotSequenceID)
	require.Equal(t, "NX 2 ESLI", events[0].Summary)
	require.Equal(t, mova.KindOther, events[1].Kind)

	stats := f.agg.Stats()
	require.Equal(t, uint64(1), stats.DroppedEvents)
	require.Equal(t, uint64(1), stats.DroppedRawLines)
}

// TestReset clears snapshots, history, counters and queues.
func TestReset(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{})
	f.feed("S 1 08:00:00", "S 2 08:00:01", "SMCYC 1")
	f.agg.PinCurrent()

	f.agg.Reset()

	require.Nil(t, f.agg.CurrentSnapshot())
	require.Nil(t, f.agg.DisplaySnapshot())
	require.Empty(t, f.agg.History(0))
	require.Empty(t, f.agg.DrainEvents())
	require.Empty(t, f.agg.DrainRawLines())
	require.Equal(t, mova.Stats{}, f.agg.Stats())

	f.feed("S 5 08:00:00")
	require.Equal(t, int64(1), f.agg.CurrentSnapshot().SequenceID)
}

// TestReaders_ConcurrentWithWriter reads copies while a single writer ingests.
func TestReaders_ConcurrentWithWriter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Options{HistorySize: 16})

	var wg sync.WaitGroup

	done := make(chan struct{})

	for range 4 {
		wg.Go(func() {
			for {
				select {
				case <-done:
					return
				default:
				}

				if snap := f.agg.DisplaySnapshot(); snap != nil {
					for _, link := range snap.Links {
						_ = len(link.BDRs)
					}
				}

				_ = f.agg.History(4)
				_ = f.agg.Stats()
			}
		})
	}

	for i := range 500 {
		if i%20 == 0 {
			f.feed(fmt.Sprintf("S %d 08:00:00", i))
		}

		f.feed(fmt.Sprintf("3 NX %d 08:15:31 BDR 1 2 3", i%5))
	}

	close(done)
	wg.Wait()

	require.Equal(t, int64(525), f.agg.Stats().TotalLines)
}
