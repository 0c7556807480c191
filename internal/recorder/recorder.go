package recorder

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"MacroTracker/internal/model"
)

// ErrClosed is returned by a recorder after Close.
var ErrClosed = errors.New("recorder closed")

// Recorder is the keyed log store. Rows are unique per (userId, date, macroId);
// every write is a field-level merge, never a whole-row replace.
type Recorder interface {
	// Upsert creates the row if absent, else merges only the fields the patch sets.
	Upsert(ctx context.Context, key model.LogKey, patch model.LogPatch) (model.MacroLog, error)
	// AddLink appends url to the row's tvLinks, creating the row if needed.
	AddLink(ctx context.Context, key model.LogKey, url string) (model.MacroLog, error)
	// RemoveLink drops tvLinks[index]. Out-of-range indexes and missing rows are no-ops.
	RemoveLink(ctx context.Context, key model.LogKey, index int) (model.MacroLog, error)
	// Delete hard-deletes a row by id. Unknown ids are not an error.
	Delete(ctx context.Context, userID, id string) error
	ListByDate(ctx context.Context, userID, date string) ([]model.MacroLog, error)
	ListAll(ctx context.Context, userID string) ([]model.MacroLog, error)
	Close() error
}

func newLog(key model.LogKey, now time.Time) model.MacroLog {
	return model.MacroLog{
		ID:        uuid.NewString(),
		UserID:    key.UserID,
		Date:      key.Date,
		MacroID:   key.MacroID,
		TVLinks:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// removeLink drops links[index] in place and reports whether anything changed.
func removeLink(rec *model.MacroLog, index int) bool {
	if index < 0 || index >= len(rec.TVLinks) {
		return false
	}
	links := make([]string, 0, len(rec.TVLinks)-1)
	links = append(links, rec.TVLinks[:index]...)
	links = append(links, rec.TVLinks[index+1:]...)
	rec.TVLinks = links
	return true
}

func sortLogs(logs []model.MacroLog) {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].Date != logs[j].Date {
			return logs[i].Date < logs[j].Date
		}
		return logs[i].MacroID < logs[j].MacroID
	})
}
