package aggregator

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oshokin/mova-viewer/internal/domain/mova"
	"github.com/oshokin/mova-viewer/internal/ring"
)

// AlertSink receives the signals that drive alert rules.
type AlertSink interface {
	DataReceived()
	StageChanged()
	OptReceived(link int)
	SATUpdated(sat string, snapshotSeq int64)
	DEMUpdated(link int, dem string)
	Reset()
}

// FinalizeListener is called with a snapshot that has just moved into
// history. The snapshot must be treated as read-only.
type FinalizeListener func(s *mova.Snapshot)

// Options configures an Aggregator.
type Options struct {
	// HistorySize is the number of finalized snapshots kept.
	HistorySize int
	// DisplayQueueSize bounds the pending event and raw line queues.
	DisplayQueueSize int
	// Alerts receives rule signals; nil disables them.
	Alerts AlertSink
	// Now overrides the clock.
	Now func() time.Time
}

// Default sizes.
const (
	DefaultHistorySize      = 1000
	DefaultDisplayQueueSize = 10000
)

// Aggregator holds the live snapshot, the pinned view and history.
type Aggregator struct {
	mu  sync.RWMutex
	now func() time.Time

	alerts AlertSink

	// history holds finalized snapshots, oldest first.
	history *ring.Ring[*mova.Snapshot]
	// events and rawLines are the display feeds drained by readers.
	events   *ring.Ring[mova.Event]
	rawLines *ring.Ring[string]

	current *mova.Snapshot
	pinned  *mova.Snapshot
	// isPinned stays set when pinning happened before any snapshot existed.
	isPinned bool

	totalLines     int64
	totalSnapshots int64

	listeners []FinalizeListener
}

// New creates an aggregator. It fails when a size is not positive after defaults.
func New(opts Options) (*Aggregator, error) {
	if opts.HistorySize == 0 {
		opts.HistorySize = DefaultHistorySize
	}

	if opts.DisplayQueueSize == 0 {
		opts.DisplayQueueSize = DefaultDisplayQueueSize
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	history, err := ring.New[*mova.Snapshot](opts.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}

	events, err := ring.New[mova.Event](opts.DisplayQueueSize)
	if err != nil {
		return nil, fmt.Errorf("event queue: %w", err)
	}

	rawLines, err := ring.New[string](opts.DisplayQueueSize)
	if err != nil {
		return nil, fmt.Errorf("raw line queue: %w", err)
	}

	return &Aggregator{
		now:      opts.Now,
		alerts:   opts.Alerts,
		history:  history,
		events:   events,
		rawLines: rawLines,
	}, nil
}

// OnFinalized registers a listener for finalized snapshots.
func (a *Aggregator) OnFinalized(l FinalizeListener) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.listeners = append(a.listeners, l)
}

// IngestRawLine counts a line, queues it for display and signals that data arrived.
func (a *Aggregator) IngestRawLine(line string) {
	a.mu.Lock()
	a.totalLines++
	a.mu.Unlock()

	a.rawLines.Add(line)

	if a.alerts != nil {
		a.alerts.DataReceived()
	}
}

// OnRecord folds one record into the state. Records arriving before the
// first stage header are dropped.
func (a *Aggregator) OnRecord(rec *mova.Record) {
	if rec == nil {
		return
	}

	a.mu.Lock()

	var (
		signals   []func()
		finalized *mova.Snapshot
		listeners []FinalizeListener
	)

	if header, ok := rec.Payload.(*mova.StageHeader); ok && rec.Stage != nil {
		finalized = a.current
		listeners = a.listeners
		signals = a.openSnapshotLocked(rec, header)
	} else if a.current != nil {
		signals = a.mergeLocked(rec)
	}

	a.mu.Unlock()

	if finalized != nil {
		for _, l := range listeners {
			l(finalized)
		}
	}

	for _, signal := range signals {
		if signal != nil {
			signal()
		}
	}
}

// openSnapshotLocked finalizes the current snapshot and starts the next one.
func (a *Aggregator) openSnapshotLocked(rec *mova.Record, header *mova.StageHeader) []func() {
	signals := []func(){a.signal(func(s AlertSink) { s.StageChanged() })}

	if a.current != nil {
		a.history.Add(a.current)
		a.totalSnapshots++
	}

	next := mova.NewSnapshot(a.totalSnapshots+1, *rec.Stage, a.now())
	if rec.TimeOfDay != nil {
		tod := *rec.TimeOfDay
		next.TimeOfDay = &tod
	}

	next.Fields.Merge(header.Fields)
	next.Records = append(next.Records, rec)
	a.current = next

	return append(signals, a.satSignal(header.Fields))
}

// mergeLocked applies the per-kind merge rules to the current snapshot.
func (a *Aggregator) mergeLocked(rec *mova.Record) []func() {
	snap := a.current
	snap.Records = append(snap.Records, rec)

	now := a.now()

	switch p := rec.Payload.(type) {
	case *mova.StageDetail:
		snap.Fields.Merge(p.Fields)

		return []func(){a.satSignal(p.Fields)}
	case *mova.StageMinLine:
		snap.Fields.Merge(p.Fields)

		return []func(){a.satSignal(p.Fields)}
	}

	if rec.Link == nil {
		return nil
	}

	link := *rec.Link
	state := snap.Link(link, now)
	state.LastUpdated = now

	switch p := rec.Payload.(type) {
	case *mova.LinkHeader:
		if p.ESLI != nil {
			state.ESLI = mova.StringPtr(*p.ESLI)
		}

		state.LAs = slices.Clone(p.LAs)
	case *mova.LinkBoundary:
		state.BDRs = append(state.BDRs, p.Boundary.Clone())
	case *mova.LinkOption:
		return a.mergeOption(state, link, p)
	case *mova.LinkContinuation:
		if p.IG != nil {
			state.IG = mova.IntPtr(*p.IG)
		}

		if p.SDEM != nil {
			state.SDEM = mova.StringPtr(*p.SDEM)
		}

		if p.RCIN != nil {
			state.RCIN = slices.Clone(p.RCIN)
		}

		if p.BON != nil {
			state.BON = slices.Clone(p.BON)
		}
	}

	return nil
}

func (a *Aggregator) mergeOption(state *mova.LinkState, link int, p *mova.LinkOption) []func() {
	var signals []func()

	if p.CF != nil {
		state.CF = mova.IntPtr(*p.CF)
	}

	if p.DEM != nil {
		dem := *p.DEM
		state.DEM = mova.StringPtr(dem)

		signals = append(signals, a.signal(func(s AlertSink) { s.DEMUpdated(link, dem) }))
	}

	if p.DEMRaw != nil {
		state.DEMRaw = mova.StringPtr(*p.DEMRaw)
	}

	if p.RCX != nil {
		state.RCX = slices.Clone(p.RCX)
	}

	if p.OptBoundaryA != nil {
		state.OptBoundaryA = mova.IntPtr(*p.OptBoundaryA)
	}

	if p.OptBoundaryB != nil {
		state.OptBoundaryB = mova.IntPtr(*p.OptBoundaryB)
	}

	if p.OptBoundaryC != nil {
		state.OptBoundaryC = mova.IntPtr(*p.OptBoundaryC)
	}

	return append(signals, a.signal(func(s AlertSink) { s.OptReceived(link) }))
}

// satSignal reports the snapshot SAT when fields carried one.
func (a *Aggregator) satSignal(fields mova.StageFields) func() {
	if fields.SAT == nil || a.current.Fields.SAT == nil {
		return nil
	}

	sat, seq := *a.current.Fields.SAT, a.current.SequenceID

	return a.signal(func(s AlertSink) { s.SATUpdated(sat, seq) })
}

// signal binds fn to the alert sink; it returns a no-op without one.
func (a *Aggregator) signal(fn func(AlertSink)) func() {
	sink := a.alerts

	return func() {
		if sink != nil {
			fn(sink)
		}
	}
}

// EnqueueEvent queues a display event for rec against the current snapshot.
func (a *Aggregator) EnqueueEvent(rec *mova.Record) {
	if rec == nil {
		return
	}

	a.mu.RLock()

	event := mova.Event{
		Time:    rec.ReceivedAt,
		Kind:    rec.Kind(),
		Stage:   rec.Stage,
		Link:    rec.Link,
		Summary: rec.Summary(),
		RawLine: rec.RawLine,
	}

	if a.current != nil {
		event.SnapshotSequenceID = a.current.SequenceID

		if event.Stage == nil {
			event.Stage = mova.IntPtr(a.current.Stage)
		}
	}

	a.mu.RUnlock()

	if rec.TimeOfDay != nil {
		event.Time = rec.TimeOfDay.On(rec.ReceivedAt)
	}

	a.events.Add(event)
}
