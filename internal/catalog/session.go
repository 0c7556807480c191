package catalog

import (
	"sync/atomic"

	"MacroTracker/internal/model"
)

// SessionFilter selects which groups of windows take part in scheduling.
type SessionFilter struct {
	ShowAsia   bool `yaml:"show_asia"`
	ShowLondon bool `yaml:"show_london"`
	ShowNY     bool `yaml:"show_ny"`
}

// AllSessions enables every group.
var AllSessions = SessionFilter{ShowAsia: true, ShowLondon: true, ShowNY: true}

// Allows reports whether a window of category c passes the filter.
func (f SessionFilter) Allows(c model.Category) bool {
	switch c {
	case model.CategoryAsia:
		return f.ShowAsia
	case model.CategoryLondon:
		return f.ShowLondon
	case model.CategoryOvernight, model.CategoryRTH, model.CategoryRTHClose:
		return f.ShowNY
	}
	return false
}

// Filter keeps the windows allowed by f, preserving order.
func Filter(windows []model.MacroWindow, f SessionFilter) []model.MacroWindow {
	out := make([]model.MacroWindow, 0, len(windows))
	for _, w := range windows {
		if f.Allows(w.Category) {
			out = append(out, w)
		}
	}
	return out
}

// Toggles holds the live session switches. Safe for concurrent use; the
// ticker reads them on every tick.
type Toggles struct {
	asia   atomic.Bool
	london atomic.Bool
	ny     atomic.Bool
}

// NewToggles seeds the switches from f.
func NewToggles(f SessionFilter) *Toggles {
	t := &Toggles{}
	t.Set(f)
	return t
}

func (t *Toggles) Set(f SessionFilter) {
	t.asia.Store(f.ShowAsia)
	t.london.Store(f.ShowLondon)
	t.ny.Store(f.ShowNY)
}

func (t *Toggles) SetAsia(on bool)   { t.asia.Store(on) }
func (t *Toggles) SetLondon(on bool) { t.london.Store(on) }
func (t *Toggles) SetNY(on bool)     { t.ny.Store(on) }

// Filter returns the current switch state.
func (t *Toggles) Filter() SessionFilter {
	return SessionFilter{
		ShowAsia:   t.asia.Load(),
		ShowLondon: t.london.Load(),
		ShowNY:     t.ny.Load(),
	}
}

// Windows returns the default catalog filtered by the current switches.
func (t *Toggles) Windows() []model.MacroWindow {
	return Filter(defaultWindows, t.Filter())
}
