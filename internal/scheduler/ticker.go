package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"MacroTracker/internal/clock"
	"MacroTracker/internal/logger"
	"MacroTracker/internal/metrics"
	"MacroTracker/internal/model"
)

// DefaultSpec re-runs the scheduler every second for second-level countdowns.
const DefaultSpec = "@every 1s"

var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSpec checks a tick cadence expression.
func ParseSpec(spec string) error {
	if _, err := specParser.Parse(spec); err != nil {
		return fmt.Errorf("parse tick spec %q: %w", spec, err)
	}
	return nil
}

// TransitionKind tells whether a window opened or closed between two ticks.
type TransitionKind string

const (
	MacroStarted TransitionKind = "started"
	MacroEnded   TransitionKind = "ended"
)

// Transition is emitted when the active window changes between ticks.
type Transition struct {
	Kind     TransitionKind
	Macro    model.MacroWindow
	Snapshot Snapshot
}

// WindowProvider supplies the window set for the next tick, already filtered
// by the session toggles.
type WindowProvider func() []model.MacroWindow

// Option configures a Ticker.
type Option func(*Ticker)

// WithSpec sets the cron cadence (seconds precision).
func WithSpec(spec string) Option { return func(t *Ticker) { t.spec = spec } }

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option { return func(t *Ticker) { t.now = now } }

// OnSnapshot registers the consumer of every snapshot.
func OnSnapshot(fn func(Snapshot)) Option { return func(t *Ticker) { t.onSnapshot = fn } }

// OnTransition registers the consumer of window open/close events.
func OnTransition(fn func(Transition)) Option { return func(t *Ticker) { t.onTransition = fn } }

// Ticker is the owned timer handle that re-invokes Schedule at a fixed cadence.
// It holds no scheduling state other than the last snapshot; each tick
// recomputes from now.
type Ticker struct {
	cron         *cron.Cron
	spec         string
	windows      WindowProvider
	now          func() time.Time
	onSnapshot   func(Snapshot)
	onTransition func(Transition)
	log          *logger.Logger

	tickMu     sync.Mutex
	lastActive *model.MacroWindow

	mu      sync.Mutex
	running bool
	entry   cron.EntryID
	latest  *Snapshot
}

// NewTicker creates a stopped ticker.
func NewTicker(windows WindowProvider, opts ...Option) *Ticker {
	t := &Ticker{
		spec:    DefaultSpec,
		windows: windows,
		now:     time.Now,
		log:     logger.Get().Named("ticker"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.cron = cron.New(
		cron.WithParser(specParser),
		cron.WithLocation(clock.Eastern()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return t
}

// Start registers the tick and starts the timer. Calling Start on a running
// ticker is a no-op.
func (t *Ticker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil
	}
	id, err := t.cron.AddFunc(t.spec, func() { t.Tick() })
	if err != nil {
		return fmt.Errorf("register tick: %w", err)
	}
	t.entry = id
	t.running = true
	t.cron.Start()
	t.log.Infow("ticker started", "spec", t.spec)
	return nil
}

// Stop cancels the timer and waits for an in-flight tick. Idempotent.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	t.cron.Remove(t.entry)
	t.mu.Unlock()

	<-t.cron.Stop().Done()
	t.log.Infow("ticker stopped")
}

// Running reports whether the timer is active.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Latest returns the most recent snapshot, if any tick has run.
func (t *Ticker) Latest() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return Snapshot{}, false
	}
	return *t.latest, true
}

// Tick computes one snapshot synchronously and publishes it.
func (t *Ticker) Tick() Snapshot {
	t.tickMu.Lock()
	defer t.tickMu.Unlock()

	snap := Schedule(t.now(), t.windows())
	metrics.SchedulerTicks.Inc()

	t.mu.Lock()
	t.latest = &snap
	t.mu.Unlock()

	transitions := t.diff(snap)
	if t.onSnapshot != nil {
		t.onSnapshot(snap)
	}
	if t.onTransition != nil {
		for _, tr := range transitions {
			t.onTransition(tr)
		}
	}
	return snap
}

// diff compares the new active window with the previous tick's.
func (t *Ticker) diff(snap Snapshot) []Transition {
	prev := t.lastActive
	cur := snap.ActiveMacro
	if prev != nil && cur != nil && prev.ID == cur.ID {
		return nil
	}

	var out []Transition
	if prev != nil {
		metrics.ActiveMacro.WithLabelValues(prev.ID).Set(0)
		metrics.MacroTransitions.WithLabelValues(prev.ID, string(MacroEnded)).Inc()
		t.log.Infow("macro ended", "macro", prev.ID)
		out = append(out, Transition{Kind: MacroEnded, Macro: *prev, Snapshot: snap})
	}
	if cur != nil {
		metrics.ActiveMacro.WithLabelValues(cur.ID).Set(1)
		metrics.MacroTransitions.WithLabelValues(cur.ID, string(MacroStarted)).Inc()
		t.log.Infow("macro started", "macro", cur.ID, "remaining_min", t.remaining(snap, cur.ID))
		out = append(out, Transition{Kind: MacroStarted, Macro: *cur, Snapshot: snap})
	}
	t.lastActive = cur
	return out
}

func (t *Ticker) remaining(snap Snapshot, id string) int {
	if ms, ok := snap.StatusOf(id); ok {
		return ms.MinutesRemaining
	}
	return 0
}
