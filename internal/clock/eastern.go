package clock

import (
	"sync"
	"time"

	// Embedded zone database so the conversion works on hosts without one.
	_ "time/tzdata"
)

// EasternZone is the IANA zone every macro window is anchored to.
const EasternZone = "America/New_York"

var (
	easternOnce sync.Once
	eastern     *time.Location
)

// Eastern returns the America/New_York location. DST transitions come from
// the zone database, never from a fixed offset.
func Eastern() *time.Location {
	easternOnce.Do(func() {
		loc, err := time.LoadLocation(EasternZone)
		if err != nil {
			// tzdata is embedded, so this only fires on a corrupt build.
			panic("clock: load " + EasternZone + ": " + err.Error())
		}
		eastern = loc
	})
	return eastern
}

// Fields are the Eastern-Time calendar fields of an instant.
type Fields struct {
	Hour    int
	Minute  int
	Second  int
	Weekday time.Weekday
	Date    string // YYYY-MM-DD in ET
}

// MinuteOfDay returns hour*60+minute.
func (f Fields) MinuteOfDay() int { return f.Hour*60 + f.Minute }

// IsWeekend reports Saturday or Sunday.
func (f Fields) IsWeekend() bool {
	return IsWeekend(f.Weekday)
}

// IsWeekend reports whether d is Saturday or Sunday.
func IsWeekend(d time.Weekday) bool {
	return d == time.Saturday || d == time.Sunday
}

// ToEasternFields converts t through the Eastern zone.
func ToEasternFields(t time.Time) Fields {
	et := t.In(Eastern())
	return Fields{
		Hour:    et.Hour(),
		Minute:  et.Minute(),
		Second:  et.Second(),
		Weekday: et.Weekday(),
		Date:    et.Format("2006-01-02"),
	}
}

// Today returns the current ET calendar date.
func Today(now time.Time) string {
	return ToEasternFields(now).Date
}

// At builds the instant for an ET wall-clock time on the given ET date.
func At(date string, hour, minute, second int) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", date, Eastern())
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, second, 0, Eastern()), nil
}
