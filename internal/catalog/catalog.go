package catalog

import (
	"fmt"
	"sort"

	"MacroTracker/internal/model"
)

// defaultWindows is the static macro table, sorted by ET start time.
var defaultWindows = []model.MacroWindow{
	{ID: "london-macro-1", Name: "London Macro 1", Category: model.CategoryLondon, StartHour: 2, StartMinute: 33, EndHour: 3, EndMinute: 0},
	{ID: "london-macro-2", Name: "London Macro 2", Category: model.CategoryLondon, StartHour: 4, StartMinute: 3, EndHour: 4, EndMinute: 30},
	{ID: "ny-premarket", Name: "NY Pre-Market", Category: model.CategoryOvernight, StartHour: 8, StartMinute: 50, EndHour: 9, EndMinute: 10},
	{ID: "ny-open", Name: "NY Open", Category: model.CategoryRTH, StartHour: 9, StartMinute: 30, EndHour: 10, EndMinute: 0},
	{ID: "ny-am-1", Name: "NY AM Macro 1", Category: model.CategoryRTH, StartHour: 10, StartMinute: 50, EndHour: 11, EndMinute: 10},
	{ID: "ny-am-2", Name: "NY AM Macro 2", Category: model.CategoryRTH, StartHour: 11, StartMinute: 50, EndHour: 12, EndMinute: 10},
	{ID: "ny-lunch", Name: "NY Lunch Macro", Category: model.CategoryRTH, StartHour: 13, StartMinute: 10, EndHour: 13, EndMinute: 40},
	{ID: "ny-pm", Name: "NY PM Macro", Category: model.CategoryRTH, StartHour: 14, StartMinute: 50, EndHour: 15, EndMinute: 10},
	{ID: "ny-close", Name: "NY Last Hour", Category: model.CategoryRTHClose, StartHour: 15, StartMinute: 15, EndHour: 15, EndMinute: 45},
	{ID: "asia-open", Name: "Asia Open", Category: model.CategoryAsia, StartHour: 20, StartMinute: 0, EndHour: 20, EndMinute: 30},
	{ID: "asia-range", Name: "Asia Range", Category: model.CategoryAsia, StartHour: 20, StartMinute: 50, EndHour: 21, EndMinute: 10},
}

// Default returns a copy of the static catalog.
func Default() []model.MacroWindow {
	out := make([]model.MacroWindow, len(defaultWindows))
	copy(out, defaultWindows)
	return out
}

// WindowsForDisplay returns the catalog, without Asia windows unless
// includeAsia is set, sorted by start time.
func WindowsForDisplay(includeAsia bool) []model.MacroWindow {
	out := make([]model.MacroWindow, 0, len(defaultWindows))
	for _, w := range defaultWindows {
		if w.Category == model.CategoryAsia && !includeAsia {
			continue
		}
		out = append(out, w)
	}
	sortByStart(out)
	return out
}

// Lookup finds a catalog window by id.
func Lookup(id string) (model.MacroWindow, bool) {
	return find(defaultWindows, id)
}

func find(windows []model.MacroWindow, id string) (model.MacroWindow, bool) {
	for _, w := range windows {
		if w.ID == id {
			return w, true
		}
	}
	return model.MacroWindow{}, false
}

func sortByStart(windows []model.MacroWindow) {
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].StartMinutes() < windows[j].StartMinutes()
	})
}

// Validate checks the invariants every window set fed to the scheduler must hold.
func Validate(windows []model.MacroWindow) error {
	seen := make(map[string]bool, len(windows))
	for i, w := range windows {
		if w.ID == "" {
			return fmt.Errorf("window %d: empty id", i)
		}
		if seen[w.ID] {
			return fmt.Errorf("window %s: duplicate id", w.ID)
		}
		seen[w.ID] = true
		if !w.Category.Valid() {
			return fmt.Errorf("window %s: unknown category %q", w.ID, w.Category)
		}
		if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 ||
			w.StartMinute < 0 || w.StartMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
			return fmt.Errorf("window %s: bounds out of range", w.ID)
		}
		if w.StartMinutes() >= w.EndMinutes() {
			return fmt.Errorf("window %s: start %s not before end", w.ID, w.TimeRange())
		}
		if i == 0 {
			continue
		}
		prev := windows[i-1]
		if w.StartMinutes() < prev.StartMinutes() {
			return fmt.Errorf("window %s: not sorted after %s", w.ID, prev.ID)
		}
		if w.StartMinutes() < prev.EndMinutes() {
			return fmt.Errorf("window %s: overlaps %s", w.ID, prev.ID)
		}
	}
	return nil
}
