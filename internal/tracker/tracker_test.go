package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroTracker/internal/catalog"
	"MacroTracker/internal/clock"
	"MacroTracker/internal/export"
	"MacroTracker/internal/logger"
	"MacroTracker/internal/model"
	"MacroTracker/internal/recorder"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// brokenStore fails every Upsert while broken is set.
type brokenStore struct {
	*recorder.MemoryRecorder
	mu     sync.Mutex
	broken bool
}

func (s *brokenStore) setBroken(b bool) {
	s.mu.Lock()
	s.broken = b
	s.mu.Unlock()
}

func (s *brokenStore) Upsert(ctx context.Context, key model.LogKey, patch model.LogPatch) (model.MacroLog, error) {
	s.mu.Lock()
	broken := s.broken
	s.mu.Unlock()
	if broken {
		return model.MacroLog{}, errors.New("connection reset")
	}
	return s.MemoryRecorder.Upsert(ctx, key, patch)
}

type nopNotifier struct{}

func (nopNotifier) Send(context.Context, string) error { return nil }

func et(t *testing.T, date string, h, m int) time.Time {
	t.Helper()
	ts, err := clock.At(date, h, m, 0)
	require.NoError(t, err)
	return ts
}

const monday = "2025-01-06"

func newTracker(t *testing.T, opts Options) (*Tracker, *brokenStore, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: et(t, monday, 9, 45)}
	store := &brokenStore{MemoryRecorder: recorder.NewMemoryRecorder()}
	if opts.UserID == "" {
		opts.UserID = "u1"
	}
	if opts.Sessions == (catalog.SessionFilter{}) {
		opts.Sessions = catalog.AllSessions
	}
	opts.Now = clk.Now
	opts.Logger = logger.Nop()
	tr := New(store, nopNotifier{}, opts)
	t.Cleanup(func() { _ = tr.Stop(context.Background()) })
	return tr, store, clk
}

// queued drains the outbox without blocking.
func queued(tr *Tracker) []string {
	var out []string
	for {
		select {
		case msg := <-tr.outbox:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func cmd(tr *Tracker, text string) string {
	return tr.HandleCommand(context.Background(), text)
}

func TestLogCommand_MergesFields(t *testing.T) {
	tr, store, _ := newTracker(t, Options{})

	reply := cmd(tr, "/log ny-open points 12.5")
	assert.Contains(t, reply, "NY Open")
	assert.Contains(t, reply, "pts 12.50")

	reply = cmd(tr, "/log ny-open direction bullish")
	assert.Contains(t, reply, "pts 12.50 | dir BULLISH")

	reply = cmd(tr, "/log ny-open sweep lows")
	assert.Contains(t, reply, "sweep LOWS")

	tr.Journal().Flush()
	logs, err := store.ListByDate(context.Background(), "u1", monday)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, 12.5, *logs[0].PointsMoved)
	assert.Equal(t, model.DirectionBullish, *logs[0].Direction)

	reply = cmd(tr, "/log ny-open points null")
	assert.Contains(t, reply, "pts — | dir BULLISH")
}

func TestLogCommand_Rejects(t *testing.T) {
	tr, _, _ := newTracker(t, Options{})

	tests := []struct {
		text string
		want string
	}{
		{"/log ny-open points", "Usage"},
		{"/log nope points 1", "unknown macro"},
		{"/log ny-open points abc", "points must be a number"},
		{"/log ny-open points NaN", "points must be a number"},
		{"/log ny-open direction UP", "unknown enum value"},
		{"/log ny-open colour red", "unknown field"},
		{"/log ny-open points 1 06/01/2025", "bad date"},
	}
	for _, tt := range tests {
		assert.Contains(t, cmd(tr, tt.text), tt.want, tt.text)
	}
	tr.Journal().Flush()
	assert.Empty(t, tr.Journal().Snapshot())
}

func TestLogCommand_ExplicitDate(t *testing.T) {
	tr, _, _ := newTracker(t, Options{})

	cmd(tr, "/log ny-pm points 3 2025-01-03")
	_, ok := tr.Journal().Get("2025-01-03", "ny-pm")
	assert.True(t, ok)
	_, ok = tr.Journal().Get(monday, "ny-pm")
	assert.False(t, ok)
}

func TestLinkCommands(t *testing.T) {
	tr, _, _ := newTracker(t, Options{})

	cmd(tr, "/link ny-open https://tv/a")
	reply := cmd(tr, "/link ny-open https://tv/b")
	assert.Contains(t, reply, "[1] https://tv/b")

	reply = cmd(tr, "/unlink ny-open 0")
	assert.Contains(t, reply, "[0] https://tv/b")
	assert.NotContains(t, reply, "tv/a")

	reply = cmd(tr, "/unlink ny-open 9")
	assert.Contains(t, reply, "[0] https://tv/b")

	assert.Contains(t, cmd(tr, "/unlink ny-pm 0"), "Nothing logged")
	assert.Contains(t, cmd(tr, "/unlink ny-open x"), "Index must be a number")
}

func TestDeleteCommand(t *testing.T) {
	tr, store, _ := newTracker(t, Options{})

	assert.Contains(t, cmd(tr, "/delete ny-open"), "Nothing logged")

	cmd(tr, "/log ny-open points 4")
	tr.Journal().Flush()
	assert.Contains(t, cmd(tr, "/delete ny-open"), "Deleted NY Open")
	tr.Journal().Flush()

	logs, err := store.ListAll(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestViewCommands(t *testing.T) {
	tr, _, _ := newTracker(t, Options{})
	cmd(tr, "/log ny-open direction bearish")

	assert.Contains(t, cmd(tr, "/now"), "NY Open</b> active")
	assert.Contains(t, cmd(tr, "/now@MacroTrackerBot"), "NY Open</b> active")
	assert.Contains(t, cmd(tr, "/today"), "dir BEARISH")
	assert.Contains(t, cmd(tr, "/stats"), "(1 logged)")
	assert.Contains(t, cmd(tr, "/stats"), "Bearish 100%")
	assert.Contains(t, cmd(tr, "/help"), "/sessions")
	assert.Contains(t, cmd(tr, ""), "/retry")
}

func TestSessionsCommand(t *testing.T) {
	tr, _, _ := newTracker(t, Options{})

	assert.Equal(t, "Sessions: asia on | london on | ny on", cmd(tr, "/sessions"))
	assert.Equal(t, "Sessions: asia on | london on | ny off", cmd(tr, "/sessions ny off"))
	assert.Nil(t, tr.Snapshot().ActiveMacro, "disabled session must not stay active")

	assert.Contains(t, cmd(tr, "/sessions tokyo on"), "asia, london or ny")
	assert.Contains(t, cmd(tr, "/sessions ny maybe"), "expected on or off")
}

func TestTickAlerts(t *testing.T) {
	tr, _, clk := newTracker(t, Options{AlertLeadMinutes: 5, AlertOnEnd: true})

	clk.Set(et(t, monday, 9, 30))
	tr.ticker.Tick()
	msgs := queued(tr)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "NY Open</b> started")

	clk.Set(et(t, monday, 10, 0))
	tr.ticker.Tick()
	msgs = queued(tr)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "NY Open</b> ended")

	clk.Set(et(t, monday, 10, 46))
	tr.ticker.Tick()
	msgs = queued(tr)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "NY AM Macro 1</b> starts 4 minutes from now")

	clk.Set(et(t, monday, 10, 47))
	tr.ticker.Tick()
	assert.Empty(t, queued(tr), "heads-up is sent once per window per day")

	clk.Set(et(t, "2025-01-07", 10, 46))
	tr.ticker.Tick()
	assert.Len(t, queued(tr), 1)
}

func TestTickAlerts_NoHeadsUpWhenDisabled(t *testing.T) {
	tr, _, clk := newTracker(t, Options{})

	clk.Set(et(t, monday, 10, 46))
	tr.ticker.Tick()
	assert.Empty(t, queued(tr))
}

func TestWriteFailureAndRetry(t *testing.T) {
	tr, store, _ := newTracker(t, Options{})

	assert.Equal(t, "Nothing to retry.", cmd(tr, "/retry"))

	store.setBroken(true)
	cmd(tr, "/log ny-open points 5")
	tr.Journal().Flush()

	_, ok := tr.Journal().Get(monday, "ny-open")
	assert.False(t, ok, "failed write is rolled back")
	msgs := queued(tr)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Could not save upsert for <b>NY Open</b>")

	store.setBroken(false)
	assert.Equal(t, "🔁 Retrying 1 of 1 failed saves.", cmd(tr, "/retry"))
	tr.Journal().Flush()

	rec, ok := tr.Journal().Get(monday, "ny-open")
	require.True(t, ok)
	assert.Equal(t, 5.0, *rec.PointsMoved)
	assert.Equal(t, "Nothing to retry.", cmd(tr, "/retry"))
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	tr, _, clk := newTracker(t, Options{ExportDir: dir})
	cmd(tr, "/log ny-open points 7")
	cmd(tr, "/log ny-pm direction consolidation")

	reply := cmd(tr, "/export")
	assert.Contains(t, reply, "Exported 2 logs")

	doc, err := export.ReadFile(dir + "/" + export.FileName(clk.Now()))
	require.NoError(t, err)
	assert.Len(t, doc.MacroLogs, 2)
}

func TestStartLoadsJournal(t *testing.T) {
	tr, store, _ := newTracker(t, Options{TickSpec: "@every 1h"})
	_, err := store.MemoryRecorder.Upsert(context.Background(),
		model.LogKey{UserID: "u1", Date: monday, MacroID: "ny-am-2"},
		model.LogPatch{PointsMoved: model.Value(9.0)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, tr.Start(ctx))
	assert.True(t, tr.ticker.Running())

	_, ok := tr.Journal().Get(monday, "ny-am-2")
	assert.True(t, ok)
}
