package aggregator

import (
	"github.com/oshokin/mova-viewer/internal/domain/mova"
)

// Pin freezes the display view on the snapshot with sequence id seq. When
// history no longer holds it the view falls back to a copy of the current
// snapshot. It returns a copy of the pinned snapshot, nil when none exists.
func (a *Aggregator) Pin(seq int64) *mova.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	pinned, ok := a.history.Find(func(s *mova.Snapshot) bool {
		return s.SequenceID == seq
	})
	if !ok {
		pinned = a.current.Clone()
	}

	a.pinned, a.isPinned = pinned, true

	return pinned.Clone()
}

// PinCurrent freezes the display view on a copy of the current snapshot.
func (a *Aggregator) PinCurrent() *mova.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pinned, a.isPinned = a.current.Clone(), true

	return a.pinned.Clone()
}

// Unpin makes the display view track the current snapshot again.
func (a *Aggregator) Unpin() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pinned, a.isPinned = nil, false
}

// Reset drops all snapshots, counters, queued display items and alert state.
func (a *Aggregator) Reset() {
	a.mu.Lock()

	a.current, a.pinned, a.isPinned = nil, nil, false
	a.totalLines, a.totalSnapshots = 0, 0
	a.history.Clear()
	a.events.Clear()
	a.rawLines.Clear()

	sink := a.alerts

	a.mu.Unlock()

	if sink != nil {
		sink.Reset()
	}
}

// CurrentSnapshot returns a copy of the live snapshot, nil before the first stage header.
func (a *Aggregator) CurrentSnapshot() *mova.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.current.Clone()
}

// DisplaySnapshot returns a copy of the pinned snapshot while pinned,
// otherwise of the current one.
func (a *Aggregator) DisplaySnapshot() *mova.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.isPinned {
		return a.pinned.Clone()
	}

	return a.current.Clone()
}

// IsPinned reports whether the display view is frozen.
func (a *Aggregator) IsPinned() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.isPinned
}

// Snapshot looks up a snapshot by sequence id in history or as the current one.
func (a *Aggregator) Snapshot(seq int64) (*mova.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.current != nil && a.current.SequenceID == seq {
		return a.current.Clone(), true
	}

	found, ok := a.history.Find(func(s *mova.Snapshot) bool {
		return s.SequenceID == seq
	})
	if !ok {
		return nil, false
	}

	return found.Clone(), true
}

// History returns copies of up to n most recent finalized snapshots, oldest
// first. A non-positive n returns all of them.
func (a *Aggregator) History(n int) []*mova.Snapshot {
	var items []*mova.Snapshot
	if n <= 0 {
		items = a.history.ToSlice()
	} else {
		items = a.history.LastN(n)
	}

	out := make([]*mova.Snapshot, len(items))
	for i, s := range items {
		out[i] = s.Clone()
	}

	return out
}

// DrainEvents returns and removes the pending display events, oldest first.
func (a *Aggregator) DrainEvents() []mova.Event {
	return a.events.Drain()
}

// DrainRawLines returns and removes the pending raw lines, oldest first.
func (a *Aggregator) DrainRawLines() []string {
	return a.rawLines.Drain()
}

// Stats returns the current counters.
func (a *Aggregator) Stats() mova.Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := mova.Stats{
		TotalLines:      a.totalLines,
		TotalSnapshots:  a.totalSnapshots,
		HistoryLen:      a.history.Len(),
		Pinned:          a.isPinned,
		PendingEvents:   a.events.Len(),
		PendingRawLines: a.rawLines.Len(),
		DroppedEvents:   a.events.Dropped(),
		DroppedRawLines: a.rawLines.Dropped(),
	}

	if a.current != nil {
		stats.CurrentSequence = a.current.SequenceID
	}

	if a.pinned != nil {
		stats.PinnedSequence = a.pinned.SequenceID
	}

	return stats
}
