package scheduler

import (
	"time"

	"MacroTracker/internal/clock"
	"MacroTracker/internal/model"
)

// Status is where a window sits relative to now.
type Status string

const (
	StatusUpcoming Status = "upcoming"
	StatusActive   Status = "active"
	StatusPassed   Status = "passed"
)

// Regular market session bounds, used for IsTradingHours outside macro windows.
const (
	marketOpenMinutes  = 9*60 + 30
	marketCloseMinutes = 16 * 60
)

// MacroStatus is one window's state within a snapshot.
type MacroStatus struct {
	Macro            model.MacroWindow
	Status           Status
	MinutesRemaining int // active only
	MinutesUntil     int // upcoming only
	SecondsUntil     int // upcoming only
}

// Snapshot is the scheduler's answer for a single instant. It is never persisted.
type Snapshot struct {
	Now                time.Time
	Fields             clock.Fields
	ActiveMacro        *model.MacroWindow
	NextMacro          *model.MacroWindow
	MinutesToNextMacro int
	SecondsToNextMacro int
	MacroStatuses      []MacroStatus
	IsTradingHours     bool
	IsWeekend          bool
	NextTradingDay     string
}

// StatusOf returns the status entry for a window id.
func (s Snapshot) StatusOf(id string) (MacroStatus, bool) {
	for _, ms := range s.MacroStatuses {
		if ms.Macro.ID == id {
			return ms, true
		}
	}
	return MacroStatus{}, false
}

// ActiveID returns the active window id or "".
func (s Snapshot) ActiveID() string {
	if s.ActiveMacro == nil {
		return ""
	}
	return s.ActiveMacro.ID
}

// Schedule classifies every window against now. windows must already be
// filtered by the session toggles and sorted by start time.
func Schedule(now time.Time, windows []model.MacroWindow) Snapshot {
	f := clock.ToEasternFields(now)
	nowMinutes := f.MinuteOfDay()

	snap := Snapshot{
		Now:            now,
		Fields:         f,
		IsWeekend:      f.IsWeekend(),
		NextTradingDay: nextTradingDay(f.Weekday).String(),
		MacroStatuses:  make([]MacroStatus, 0, len(windows)),
	}

	if snap.IsWeekend {
		for _, w := range windows {
			snap.MacroStatuses = append(snap.MacroStatuses, MacroStatus{Macro: w, Status: StatusPassed})
		}
		return snap
	}

	for _, w := range windows {
		ms := MacroStatus{Macro: w}
		switch {
		case nowMinutes < w.StartMinutes():
			ms.Status = StatusUpcoming
			ms.MinutesUntil = w.StartMinutes() - nowMinutes
			ms.SecondsUntil = max(ms.MinutesUntil*60-f.Second, 0)
			if snap.NextMacro == nil {
				next := w
				snap.NextMacro = &next
				snap.MinutesToNextMacro = ms.MinutesUntil
				snap.SecondsToNextMacro = ms.SecondsUntil
			}
		case nowMinutes < w.EndMinutes():
			ms.Status = StatusActive
			ms.MinutesRemaining = w.EndMinutes() - nowMinutes
			if snap.ActiveMacro == nil {
				active := w
				snap.ActiveMacro = &active
			}
		default:
			ms.Status = StatusPassed
		}
		snap.MacroStatuses = append(snap.MacroStatuses, ms)
	}

	snap.IsTradingHours = snap.ActiveMacro != nil ||
		(nowMinutes >= marketOpenMinutes && nowMinutes < marketCloseMinutes)
	return snap
}

// nextTradingDay walks forward from d to the next non-weekend day.
func nextTradingDay(d time.Weekday) time.Weekday {
	next := d
	for i := 0; i < 3; i++ {
		next = (next + 1) % 7
		if !clock.IsWeekend(next) {
			return next
		}
	}
	return time.Monday
}
