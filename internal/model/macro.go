package model

import (
	"encoding/json"
	"fmt"
)

// Category groups macro windows by the session they belong to.
type Category string

const (
	CategoryOvernight Category = "overnight"
	CategoryLondon    Category = "london"
	CategoryRTH       Category = "rth"
	CategoryRTHClose  Category = "rth_close"
	CategoryAsia      Category = "asia"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryOvernight, CategoryLondon, CategoryRTH, CategoryRTHClose, CategoryAsia:
		return true
	}
	return false
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := Category(s)
	if !v.Valid() {
		return fmt.Errorf("%w: category %q", ErrUnknownEnum, s)
	}
	*c = v
	return nil
}

// MacroWindow is a fixed Eastern-Time interval [start, end) on a single day.
type MacroWindow struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Category    Category `json:"category" yaml:"category"`
	StartHour   int      `json:"startHour" yaml:"start_hour"`
	StartMinute int      `json:"startMinute" yaml:"start_minute"`
	EndHour     int      `json:"endHour" yaml:"end_hour"`
	EndMinute   int      `json:"endMinute" yaml:"end_minute"`
}

// StartMinutes returns the window start as minutes after midnight ET.
func (w MacroWindow) StartMinutes() int { return w.StartHour*60 + w.StartMinute }

// EndMinutes returns the window end as minutes after midnight ET.
func (w MacroWindow) EndMinutes() int { return w.EndHour*60 + w.EndMinute }

// Contains reports whether minuteOfDay falls inside [start, end).
func (w MacroWindow) Contains(minuteOfDay int) bool {
	return minuteOfDay >= w.StartMinutes() && minuteOfDay < w.EndMinutes()
}

// TimeRange renders the window as "HH:MM-HH:MM".
func (w MacroWindow) TimeRange() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
}
