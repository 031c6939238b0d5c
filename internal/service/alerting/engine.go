package alerting

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oshokin/mova-viewer/internal/domain/alarm"
)

// Listener receives a copy of an alert that was raised or cleared.
type Listener func(a *alarm.Alert)

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine evaluates alert rules. All methods are safe for concurrent use;
// listeners run on the caller's goroutine after the engine lock is released.
type Engine struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	// nextID is the ID of the next raised alert.
	nextID int64
	// history holds alerts in raise order, capped at cfg.HistorySize.
	history []*alarm.Alert
	// active maps a rule key to its active alert.
	active map[string]*alarm.Alert

	lastData  time.Time
	lastStage time.Time
	lastOpt   time.Time
	// demSince maps a link to the time its DEM became non-zero.
	demSince map[int]time.Time

	raised  []Listener
	cleared []Listener
}

// notification is a listener call deferred until the lock is released.
type notification struct {
	alert  *alarm.Alert
	raised bool
}

// NewEngine returns an engine whose liveness timers start now.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		nextID:   1,
		active:   make(map[string]*alarm.Alert),
		demSince: make(map[int]time.Time),
	}

	for _, opt := range opts {
		opt(e)
	}

	now := e.now()
	e.lastData, e.lastStage, e.lastOpt = now, now, now

	return e
}

// Config returns the effective thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// OnRaised registers a listener for raised alerts.
func (e *Engine) OnRaised(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.raised = append(e.raised, l)
}

// OnCleared registers a listener for cleared alerts.
func (e *Engine) OnCleared(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cleared = append(e.cleared, l)
}

// DataReceived records that a line arrived and clears NoData.
func (e *Engine) DataReceived() {
	e.update(func(now time.Time) []notification {
		e.lastData = now

		return e.clearLocked(RuleNoData, now)
	})
}

// StageChanged records a stage header and clears NoStageChange.
func (e *Engine) StageChanged() {
	e.update(func(now time.Time) []notification {
		e.lastStage = now

		return e.clearLocked(RuleNoStageChange, now)
	})
}

// OptReceived records a link option line and clears NoOpt.
func (e *Engine) OptReceived(int) {
	e.update(func(now time.Time) []notification {
		e.lastOpt = now

		return e.clearLocked(RuleNoOpt, now)
	})
}

// SATUpdated raises or clears SatOver for the current SAT text. Empty text is ignored.
func (e *Engine) SATUpdated(sat string, snapshotSeq int64) {
	if sat == "" {
		return
	}

	e.update(func(now time.Time) []notification {
		if !isOverSaturated(sat) {
			return e.clearLocked(RuleSatOver, now)
		}

		return e.raiseLocked(&alarm.Alert{
			Rule:               RuleSatOver,
			Message:            "Capacity mode detected",
			Severity:           alarm.SeverityWarning,
			SnapshotSequenceID: &snapshotSeq,
		}, now)
	})
}

// DEMUpdated tracks how long a link's DEM has been non-zero. An idle value
// clears the link's DemStuck alert; once no link is active every remaining
// DemStuck alert is cleared too.
func (e *Engine) DEMUpdated(link int, dem string) {
	e.update(func(now time.Time) []notification {
		if !isIdleDEM(dem) {
			if _, ok := e.demSince[link]; !ok {
				e.demSince[link] = now
			}

			return nil
		}

		delete(e.demSince, link)

		out := e.clearLocked(DemStuckRule(link), now)

		if len(e.demSince) == 0 {
			for _, rule := range slices.Sorted(maps.Keys(e.active)) {
				if strings.HasPrefix(rule, RuleDemStuckPrefix) {
					out = append(out, e.clearLocked(rule, now)...)
				}
			}
		}

		return out
	})
}

// Tick evaluates the time-based rules.
func (e *Engine) Tick() {
	e.update(func(now time.Time) []notification {
		var out []notification

		if now.Sub(e.lastData) > e.cfg.NoData {
			out = append(out, e.raiseLocked(&alarm.Alert{
				Rule:     RuleNoData,
				Message:  fmt.Sprintf("No data for %s", e.cfg.NoData),
				Severity: alarm.SeverityCritical,
			}, now)...)
		}

		if now.Sub(e.lastStage) > e.cfg.NoStageChange {
			out = append(out, e.raiseLocked(&alarm.Alert{
				Rule:     RuleNoStageChange,
				Message:  fmt.Sprintf("No stage change for %s", e.cfg.NoStageChange),
				Severity: alarm.SeverityWarning,
			}, now)...)
		}

		if now.Sub(e.lastOpt) > e.cfg.NoOpt {
			out = append(out, e.raiseLocked(&alarm.Alert{
				Rule:     RuleNoOpt,
				Message:  fmt.Sprintf("No OPT blocks for %s", e.cfg.NoOpt),
				Severity: alarm.SeverityInfo,
			}, now)...)
		}

		for _, link := range slices.Sorted(maps.Keys(e.demSince)) {
			if now.Sub(e.demSince[link]) <= e.cfg.DemStuck {
				continue
			}

			out = append(out, e.raiseLocked(&alarm.Alert{
				Rule:     DemStuckRule(link),
				Message:  fmt.Sprintf("DEM stuck on link %d for %s", link, e.cfg.DemStuck),
				Severity: alarm.SeverityWarning,
			}, now)...)
		}

		return out
	})
}

// Run calls Tick every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick()
		}
	}
}

// Acknowledge marks an alert acknowledged, active or cleared. It returns
// false when the alert is no longer known.
func (e *Engine) Acknowledge(id int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if a := e.findLocked(id); a != nil {
		a.Acknowledged = true

		return true
	}

	return false
}

// ClearAll clears every active alert.
func (e *Engine) ClearAll() {
	e.update(func(now time.Time) []notification {
		var out []notification

		for _, rule := range slices.Sorted(maps.Keys(e.active)) {
			out = append(out, e.clearLocked(rule, now)...)
		}

		return out
	})
}

// Active returns copies of the active alerts ordered by ID.
func (e *Engine) Active() []*alarm.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*alarm.Alert, 0, len(e.active))
	for _, a := range e.active {
		out = append(out, a.Clone())
	}

	slices.SortFunc(out, func(a, b *alarm.Alert) int {
		return int(a.ID - b.ID)
	})

	return out
}

// History returns copies of up to limit most recent alerts, newest first.
// A non-positive limit returns everything retained.
func (e *Engine) History(limit int) []*alarm.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 || limit > len(e.history) {
		limit = len(e.history)
	}

	out := make([]*alarm.Alert, 0, limit)
	for i := len(e.history) - 1; i >= len(e.history)-limit; i-- {
		out = append(out, e.history[i].Clone())
	}

	return out
}

// Reset forgets every alert and restarts the liveness timers.
// Alert IDs keep increasing so stale acknowledgements cannot hit new alerts.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()

	e.history = nil
	clear(e.active)
	clear(e.demSince)
	e.lastData, e.lastStage, e.lastOpt = now, now, now
}

// update runs fn under the lock and delivers its notifications afterwards.
func (e *Engine) update(fn func(now time.Time) []notification) {
	e.mu.Lock()
	out := fn(e.now())
	raised, cleared := e.raised, e.cleared
	e.mu.Unlock()

	for _, n := range out {
		listeners := cleared
		if n.raised {
			listeners = raised
		}

		for _, l := range listeners {
			l(n.alert.Clone())
		}
	}
}

func (e *Engine) raiseLocked(a *alarm.Alert, now time.Time) []notification {
	if _, ok := e.active[a.Rule]; ok {
		return nil
	}

	a.ID = e.nextID
	a.RaisedAt = now
	e.nextID++

	e.active[a.Rule] = a
	e.history = append(e.history, a)

	if over := len(e.history) - e.cfg.HistorySize; over > 0 {
		e.history = slices.Delete(e.history, 0, over)
	}

	return []notification{{alert: a.Clone(), raised: true}}
}

func (e *Engine) clearLocked(rule string, now time.Time) []notification {
	a, ok := e.active[rule]
	if !ok {
		return nil
	}

	clearedAt := now
	a.ClearedAt = &clearedAt
	delete(e.active, rule)

	return []notification{{alert: a.Clone()}}
}

func (e *Engine) findLocked(id int64) *alarm.Alert {
	for _, a := range e.history {
		if a.ID == id {
			return a
		}
	}

	for _, a := range e.active {
		if a.ID == id {
			return a
		}
	}

	return nil
}
