package recorder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MacroTracker/internal/model"
)

// MemoryRecorder keeps rows in process memory. Used when no database path is
// configured and by tests.
type MemoryRecorder struct {
	mu     sync.Mutex
	rows   map[model.LogKey]model.MacroLog
	now    func() time.Time
	closed bool
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{rows: make(map[model.LogKey]model.MacroLog), now: time.Now}
}

func (m *MemoryRecorder) modify(key model.LogKey, create bool, fn func(*model.MacroLog) bool) (model.MacroLog, error) {
	if err := key.Validate(); err != nil {
		return model.MacroLog{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return model.MacroLog{}, ErrClosed
	}

	rec, found := m.rows[key]
	if !found {
		if !create {
			return model.MacroLog{}, nil
		}
		rec = newLog(key, m.now())
	} else {
		rec = rec.Clone()
	}
	if fn(&rec) || !found {
		rec.UpdatedAt = m.now()
		m.rows[key] = rec
	}
	return rec.Clone(), nil
}

func (m *MemoryRecorder) Upsert(_ context.Context, key model.LogKey, patch model.LogPatch) (model.MacroLog, error) {
	return m.modify(key, !patch.Empty(), func(rec *model.MacroLog) bool {
		patch.Apply(rec)
		return !patch.Empty()
	})
}

func (m *MemoryRecorder) AddLink(_ context.Context, key model.LogKey, url string) (model.MacroLog, error) {
	if url == "" {
		return model.MacroLog{}, fmt.Errorf("add link: empty url")
	}
	return m.modify(key, true, func(rec *model.MacroLog) bool {
		rec.TVLinks = append(rec.TVLinks, url)
		return true
	})
}

func (m *MemoryRecorder) RemoveLink(_ context.Context, key model.LogKey, index int) (model.MacroLog, error) {
	return m.modify(key, false, func(rec *model.MacroLog) bool {
		return removeLink(rec, index)
	})
}

func (m *MemoryRecorder) Delete(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	for k, rec := range m.rows {
		if rec.ID == id && rec.UserID == userID {
			delete(m.rows, k)
			return nil
		}
	}
	return nil
}

func (m *MemoryRecorder) ListByDate(_ context.Context, userID, date string) ([]model.MacroLog, error) {
	return m.list(func(rec model.MacroLog) bool { return rec.UserID == userID && rec.Date == date })
}

func (m *MemoryRecorder) ListAll(_ context.Context, userID string) ([]model.MacroLog, error) {
	return m.list(func(rec model.MacroLog) bool { return rec.UserID == userID })
}

func (m *MemoryRecorder) list(keep func(model.MacroLog) bool) ([]model.MacroLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]model.MacroLog, 0, len(m.rows))
	for _, rec := range m.rows {
		if keep(rec) {
			out = append(out, rec.Clone())
		}
	}
	sortLogs(out)
	return out, nil
}

func (m *MemoryRecorder) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
