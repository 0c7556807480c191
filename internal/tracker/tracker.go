package tracker

import (
	"context"
	"sync"
	"time"

	"MacroTracker/internal/catalog"
	"MacroTracker/internal/clock"
	"MacroTracker/internal/journal"
	"MacroTracker/internal/logger"
	"MacroTracker/internal/model"
	"MacroTracker/internal/notifier"
	"MacroTracker/internal/recorder"
	"MacroTracker/internal/scheduler"
)

const (
	outboxSize  = 64
	maxFailures = 20
	sendTimeout = 3 * time.Minute
)

// Options configures a Tracker.
type Options struct {
	UserID           string
	Sessions         catalog.SessionFilter
	TickSpec         string
	AlertLeadMinutes int
	AlertOnEnd       bool
	WriteTimeout     time.Duration
	ExportDir        string
	Now              func() time.Time
	Logger           *logger.Logger
}

// Tracker wires the ticker, the journal and the notifier together: it turns
// window transitions into alerts, chat commands into journal writes, and
// journal write failures into retryable chat messages.
type Tracker struct {
	ticker   *scheduler.Ticker
	journal  *journal.Journal
	notifier notifier.Notifier
	toggles  *catalog.Toggles
	windows  []model.MacroWindow
	opts     Options
	now      func() time.Time
	log      *logger.Logger

	outbox chan string

	mu       sync.Mutex
	alerted  map[string]string // macro id -> ET date of the last heads-up
	failures []journal.WriteFailure
}

// New creates a stopped tracker over store.
func New(store recorder.Recorder, n notifier.Notifier, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickSpec == "" {
		opts.TickSpec = scheduler.DefaultSpec
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = journal.DefaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get()
	}

	t := &Tracker{
		notifier: n,
		toggles:  catalog.NewToggles(opts.Sessions),
		windows:  catalog.Default(),
		opts:     opts,
		now:      opts.Now,
		log:      opts.Logger.Named("tracker"),
		outbox:   make(chan string, outboxSize),
		alerted:  make(map[string]string),
	}
	t.journal = journal.New(store, t.windows, opts.UserID,
		journal.WithFailureHandler(t.handleWriteFailure),
		journal.WithWriteTimeout(opts.WriteTimeout),
		journal.WithClock(opts.Now),
		journal.WithLogger(opts.Logger.Named("journal").With("user", opts.UserID)),
	)
	t.ticker = scheduler.NewTicker(t.toggles.Windows,
		scheduler.WithSpec(opts.TickSpec),
		scheduler.WithClock(opts.Now),
		scheduler.OnSnapshot(t.handleSnapshot),
		scheduler.OnTransition(t.handleTransition),
	)
	return t
}

// Journal exposes the log collection.
func (t *Tracker) Journal() *journal.Journal { return t.journal }

// Toggles exposes the session filter.
func (t *Tracker) Toggles() *catalog.Toggles { return t.toggles }

// Start loads the journal, then starts delivery and the ticker. Delivery stops
// when ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.journal.Load(ctx); err != nil {
		return err
	}
	go t.deliver(ctx)
	if err := t.ticker.Start(); err != nil {
		return err
	}
	t.log.Infow("tracker started", "user", t.opts.UserID, "sessions", t.toggles.Filter())
	return nil
}

// Stop halts the ticker and waits for pending journal writes.
func (t *Tracker) Stop(ctx context.Context) error {
	t.ticker.Stop()
	err := t.journal.Close(ctx)
	t.log.Infow("tracker stopped")
	return err
}

// Snapshot schedules now against the enabled windows.
func (t *Tracker) Snapshot() scheduler.Snapshot {
	return scheduler.Schedule(t.now(), t.toggles.Windows())
}

func (t *Tracker) handleTransition(tr scheduler.Transition) {
	switch tr.Kind {
	case scheduler.MacroStarted:
		t.notify(notifier.FormatMacroStart(tr.Macro))
	case scheduler.MacroEnded:
		if t.opts.AlertOnEnd {
			t.notify(notifier.FormatMacroEnd(tr.Macro))
		}
	}
}

// handleSnapshot sends one heads-up per window per ET date once the window is
// within the lead time.
func (t *Tracker) handleSnapshot(snap scheduler.Snapshot) {
	lead := t.opts.AlertLeadMinutes
	if lead <= 0 || snap.IsWeekend {
		return
	}
	for _, ms := range snap.MacroStatuses {
		if ms.Status != scheduler.StatusUpcoming || ms.MinutesUntil > lead {
			continue
		}
		t.mu.Lock()
		seen := t.alerted[ms.Macro.ID] == snap.Fields.Date
		t.alerted[ms.Macro.ID] = snap.Fields.Date
		t.mu.Unlock()
		if seen {
			continue
		}
		start, err := clock.At(snap.Fields.Date, ms.Macro.StartHour, ms.Macro.StartMinute, 0)
		if err != nil {
			t.log.Errorw("heads-up start time", "macro", ms.Macro.ID, "error", err)
			continue
		}
		t.notify(notifier.FormatHeadsUp(ms.Macro, snap.Now, start))
	}
}

func (t *Tracker) handleWriteFailure(f journal.WriteFailure) {
	t.log.Warnw("journal write rolled back", "op", f.Op, "date", f.Date, "macro", f.MacroID, "error", f.Err)

	t.mu.Lock()
	t.failures = append(t.failures, f)
	if len(t.failures) > maxFailures {
		t.failures = t.failures[len(t.failures)-maxFailures:]
	}
	t.mu.Unlock()

	name := f.MacroID
	if w, ok := catalog.Lookup(f.MacroID); ok {
		name = w.Name
	}
	t.notify(notifier.FormatWriteFailure(string(f.Op), name, f.Date, f.Err))
}

// takeFailures returns and clears the failures awaiting /retry.
func (t *Tracker) takeFailures() []journal.WriteFailure {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.failures
	t.failures = nil
	return out
}

// notify queues a message without blocking the caller.
func (t *Tracker) notify(text string) {
	select {
	case t.outbox <- text:
	default:
		t.log.Warnw("outbox full, dropping notification")
	}
}

func (t *Tracker) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text := <-t.outbox:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if err := t.notifier.Send(sendCtx, text); err != nil {
				t.log.Errorw("send notification failed", "error", err)
			}
			cancel()
		}
	}
}
