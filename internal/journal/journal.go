package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"MacroTracker/internal/logger"
	"MacroTracker/internal/metrics"
	"MacroTracker/internal/model"
	"MacroTracker/internal/recorder"
)

// DefaultWriteTimeout bounds one store call.
const DefaultWriteTimeout = 10 * time.Second

// Op names a journal write.
type Op string

const (
	OpUpsert     Op = "upsert"
	OpAddLink    Op = "add_link"
	OpRemoveLink Op = "remove_link"
	OpDelete     Op = "delete"
)

// WriteFailure reports a store write that was rolled back locally.
type WriteFailure struct {
	Op      Op
	Date    string
	MacroID string
	Err     error

	retry func() bool
}

// Retry re-applies the failed write locally and dispatches it again.
func (f WriteFailure) Retry() bool {
	if f.retry == nil {
		return false
	}
	return f.retry()
}

// mutation is one optimistic write. apply runs on the local view (nil means
// the row is absent); send performs the store call against the confirmed row.
type mutation struct {
	op    Op
	apply func(*model.MacroLog) *model.MacroLog
	send  func(ctx context.Context, base *model.MacroLog) (*model.MacroLog, error)
}

// row is base (last state confirmed by the store) plus writes not yet confirmed.
type row struct {
	base     *model.MacroLog
	pending  []*mutation
	view     *model.MacroLog
	draining bool
}

func (r *row) rebuild() {
	var v *model.MacroLog
	if r.base != nil {
		c := r.base.Clone()
		v = &c
	}
	for _, m := range r.pending {
		v = m.apply(v)
	}
	r.view = v
}

// Option configures a Journal.
type Option func(*Journal)

// WithFailureHandler receives every rolled-back write.
func WithFailureHandler(fn func(WriteFailure)) Option {
	return func(j *Journal) { j.onFailure = fn }
}

// WithWriteTimeout bounds each store call.
func WithWriteTimeout(d time.Duration) Option {
	return func(j *Journal) { j.timeout = d }
}

// WithClock replaces time.Now for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithLogger replaces the journal's logger.
func WithLogger(l *logger.Logger) Option {
	return func(j *Journal) { j.log = l }
}

// Journal is the in-memory log collection the UI and analytics read. Writes
// land locally first and reach the recorder asynchronously; writes to the
// same (date, macroId) are sent strictly in order.
type Journal struct {
	store     recorder.Recorder
	windows   map[string]model.MacroWindow
	userID    string
	timeout   time.Duration
	now       func() time.Time
	onFailure func(WriteFailure)
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	idle *sync.Cond
	rows map[model.LogKey]*row
}

// New creates a Journal for one user over the given windows.
func New(store recorder.Recorder, windows []model.MacroWindow, userID string, opts ...Option) *Journal {
	j := &Journal{
		store:   store,
		windows: make(map[string]model.MacroWindow, len(windows)),
		userID:  userID,
		timeout: DefaultWriteTimeout,
		now:     time.Now,
		log:     logger.Get().Named("journal").With("user", userID),
		rows:    make(map[model.LogKey]*row),
	}
	for _, w := range windows {
		j.windows[w.ID] = w
	}
	j.idle = sync.NewCond(&j.mu)
	j.ctx, j.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(j)
	}
	if j.onFailure == nil {
		j.onFailure = func(f WriteFailure) {
			j.log.Warnw("write rolled back", "op", f.Op, "date", f.Date, "macro", f.MacroID, "error", f.Err)
		}
	}
	return j
}

// Load replaces the confirmed state with the store's rows. Rows with writes
// still in flight keep their pending edits on top.
func (j *Journal) Load(ctx context.Context) error {
	logs, err := j.store.ListAll(ctx, j.userID)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	for k, r := range j.rows {
		if len(r.pending) == 0 && !r.draining {
			delete(j.rows, k)
		}
	}
	for _, l := range logs {
		k := j.key(l.Date, l.MacroID)
		r := j.rows[k]
		if r == nil {
			r = &row{}
			j.rows[k] = r
		}
		r.base = &l
		r.rebuild()
	}
	j.log.Infow("journal loaded", "rows", len(logs))
	return nil
}

func (j *Journal) key(date, macroID string) model.LogKey {
	return model.LogKey{UserID: j.userID, Date: date, MacroID: macroID}
}

// admit checks that a write targets a known window and a valid date. Stale UI
// state is tolerated, so failures are logged and the write is dropped.
func (j *Journal) admit(op Op, date, macroID string) (model.LogKey, bool) {
	k := j.key(date, macroID)
	if _, ok := j.windows[macroID]; !ok {
		j.log.Warnw("ignoring write for unknown macro", "op", op, "macro", macroID)
		return k, false
	}
	if err := k.Validate(); err != nil {
		j.log.Warnw("ignoring write with invalid key", "op", op, "key", k.String(), "error", err)
		return k, false
	}
	return k, true
}

// Upsert merges patch into the row for (date, macroID), creating it if needed.
// It returns the optimistic row; false means the write was ignored.
func (j *Journal) Upsert(date, macroID string, patch model.LogPatch) (model.MacroLog, bool) {
	k, ok := j.admit(OpUpsert, date, macroID)
	if !ok {
		return model.MacroLog{}, false
	}
	if patch.Empty() {
		rec, _ := j.Get(date, macroID)
		return rec, true
	}
	m := &mutation{
		op: OpUpsert,
		apply: func(v *model.MacroLog) *model.MacroLog {
			v = j.ensure(v, k)
			patch.Apply(v)
			v.UpdatedAt = j.now()
			return v
		},
		send: func(ctx context.Context, _ *model.MacroLog) (*model.MacroLog, error) {
			rec, err := j.store.Upsert(ctx, k, patch)
			return present(rec), err
		},
	}
	return j.submit(k, m)
}

// AddLink appends url to the row's tvLinks.
func (j *Journal) AddLink(date, macroID, url string) (model.MacroLog, bool) {
	k, ok := j.admit(OpAddLink, date, macroID)
	if !ok || url == "" {
		return model.MacroLog{}, false
	}
	m := &mutation{
		op: OpAddLink,
		apply: func(v *model.MacroLog) *model.MacroLog {
			v = j.ensure(v, k)
			v.TVLinks = append(append([]string{}, v.TVLinks...), url)
			v.UpdatedAt = j.now()
			return v
		},
		send: func(ctx context.Context, _ *model.MacroLog) (*model.MacroLog, error) {
			rec, err := j.store.AddLink(ctx, k, url)
			return present(rec), err
		},
	}
	return j.submit(k, m)
}

// RemoveLink drops tvLinks[index]. An out-of-range index is a no-op.
func (j *Journal) RemoveLink(date, macroID string, index int) (model.MacroLog, bool) {
	k, ok := j.admit(OpRemoveLink, date, macroID)
	if !ok {
		return model.MacroLog{}, false
	}
	cur, exists := j.Get(date, macroID)
	if !exists || index < 0 || index >= len(cur.TVLinks) {
		return cur, exists
	}
	m := &mutation{
		op: OpRemoveLink,
		apply: func(v *model.MacroLog) *model.MacroLog {
			if v == nil || index >= len(v.TVLinks) {
				return v
			}
			links := make([]string, 0, len(v.TVLinks)-1)
			links = append(links, v.TVLinks[:index]...)
			v.TVLinks = append(links, v.TVLinks[index+1:]...)
			v.UpdatedAt = j.now()
			return v
		},
		send: func(ctx context.Context, base *model.MacroLog) (*model.MacroLog, error) {
			rec, err := j.store.RemoveLink(ctx, k, index)
			if err != nil {
				return base, err
			}
			return present(rec), nil
		},
	}
	return j.submit(k, m)
}

// Delete removes the row with the given id. Unknown ids are a no-op.
func (j *Journal) Delete(id string) bool {
	if id == "" {
		return false
	}
	j.mu.Lock()
	var found *model.LogKey
	for k, r := range j.rows {
		if r.view != nil && r.view.ID == id {
			found = &k
			break
		}
	}
	j.mu.Unlock()
	if found == nil {
		return false
	}
	return j.DeleteEntry(found.Date, found.MacroID)
}

// DeleteEntry removes the row for (date, macroID), if any.
func (j *Journal) DeleteEntry(date, macroID string) bool {
	k, ok := j.admit(OpDelete, date, macroID)
	if !ok {
		return false
	}
	if _, exists := j.Get(date, macroID); !exists {
		return false
	}
	m := &mutation{
		op:    OpDelete,
		apply: func(*model.MacroLog) *model.MacroLog { return nil },
		send: func(ctx context.Context, base *model.MacroLog) (*model.MacroLog, error) {
			if base == nil {
				return nil, nil
			}
			if err := j.store.Delete(ctx, j.userID, base.ID); err != nil {
				return base, err
			}
			return nil, nil
		},
	}
	_, ok = j.submit(k, m)
	return ok
}

func (j *Journal) ensure(v *model.MacroLog, k model.LogKey) *model.MacroLog {
	if v != nil {
		return v
	}
	now := j.now()
	return &model.MacroLog{
		UserID:    k.UserID,
		Date:      k.Date,
		MacroID:   k.MacroID,
		TVLinks:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func present(rec model.MacroLog) *model.MacroLog {
	if rec.ID == "" {
		return nil
	}
	return &rec
}

// submit applies m locally and queues it for the store.
func (j *Journal) submit(k model.LogKey, m *mutation) (model.MacroLog, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	r := j.rows[k]
	if r == nil {
		r = &row{}
		j.rows[k] = r
	}
	r.pending = append(r.pending, m)
	r.rebuild()

	if !r.draining {
		r.draining = true
		go j.drain(k)
	}

	if r.view == nil {
		return model.MacroLog{}, true
	}
	return r.view.Clone(), true
}

// drain sends the row's pending writes one at a time, oldest first.
func (j *Journal) drain(k model.LogKey) {
	for {
		j.mu.Lock()
		r := j.rows[k]
		if r == nil || len(r.pending) == 0 {
			if r != nil {
				r.draining = false
				if r.base == nil {
					delete(j.rows, k)
				}
			}
			j.idle.Broadcast()
			j.mu.Unlock()
			return
		}
		m := r.pending[0]
		var base *model.MacroLog
		if r.base != nil {
			c := r.base.Clone()
			base = &c
		}
		j.mu.Unlock()

		ctx, cancel := context.WithTimeout(j.ctx, j.timeout)
		start := time.Now()
		res, err := m.send(ctx, base)
		metrics.ObserveStore(string(m.op), start)
		cancel()

		j.mu.Lock()
		r.pending = r.pending[1:]
		if err == nil {
			r.base = res
		}
		r.rebuild()
		j.mu.Unlock()

		if err != nil {
			metrics.JournalWrites.WithLabelValues(string(m.op), "error").Inc()
			metrics.JournalRollbacks.WithLabelValues(string(m.op)).Inc()
			j.onFailure(WriteFailure{
				Op:      m.op,
				Date:    k.Date,
				MacroID: k.MacroID,
				Err:     err,
				retry:   func() bool { _, ok := j.submit(k, m); return ok },
			})
			continue
		}
		metrics.JournalWrites.WithLabelValues(string(m.op), "success").Inc()
	}
}

// Flush blocks until every queued write has settled.
func (j *Journal) Flush() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for j.busyLocked() {
		j.idle.Wait()
	}
}

func (j *Journal) busyLocked() bool {
	for _, r := range j.rows {
		if r.draining {
			return true
		}
	}
	return false
}

// Close waits for in-flight writes and then cancels any that are stuck.
func (j *Journal) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		j.Flush()
		close(done)
	}()
	select {
	case <-done:
		j.cancel()
		return nil
	case <-ctx.Done():
		j.cancel()
		<-done
		return ctx.Err()
	}
}

// Get returns the local row for (date, macroID).
func (j *Journal) Get(date, macroID string) (model.MacroLog, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	r := j.rows[j.key(date, macroID)]
	if r == nil || r.view == nil {
		return model.MacroLog{}, false
	}
	return r.view.Clone(), true
}

// Snapshot returns an immutable copy of the local collection, ordered by date
// then macro id.
func (j *Journal) Snapshot() []model.MacroLog {
	return j.collect(func(model.MacroLog) bool { return true })
}

// ForDate returns the local rows for one date.
func (j *Journal) ForDate(date string) []model.MacroLog {
	return j.collect(func(l model.MacroLog) bool { return l.Date == date })
}

func (j *Journal) collect(keep func(model.MacroLog) bool) []model.MacroLog {
	j.mu.Lock()
	out := make([]model.MacroLog, 0, len(j.rows))
	for _, r := range j.rows {
		if r.view != nil && keep(*r.view) {
			out = append(out, r.view.Clone())
		}
	}
	j.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].Date != out[b].Date {
			return out[a].Date < out[b].Date
		}
		return out[a].MacroID < out[b].MacroID
	})
	return out
}
