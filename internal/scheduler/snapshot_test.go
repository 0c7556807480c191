package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroTracker/internal/catalog"
	"MacroTracker/internal/clock"
	"MacroTracker/internal/model"
)

var nyOpen = model.MacroWindow{ID: "ny-open", Name: "NY Open", Category: model.CategoryRTH, StartHour: 9, StartMinute: 30, EndHour: 10}

func at(t *testing.T, date string, h, m, s int) time.Time {
	t.Helper()
	ts, err := clock.At(date, h, m, s)
	require.NoError(t, err)
	return ts
}

func TestSchedule_SingleWindowExample(t *testing.T) {
	windows := []model.MacroWindow{nyOpen}

	// Tuesday 2025-01-07
	snap := Schedule(at(t, "2025-01-07", 9, 45, 0), windows)
	require.NotNil(t, snap.ActiveMacro)
	assert.Equal(t, "ny-open", snap.ActiveMacro.ID)
	assert.Equal(t, 15, snap.MacroStatuses[0].MinutesRemaining)
	assert.True(t, snap.IsTradingHours)

	snap = Schedule(at(t, "2025-01-07", 9, 15, 0), windows)
	assert.Equal(t, StatusUpcoming, snap.MacroStatuses[0].Status)
	assert.Equal(t, 15, snap.MacroStatuses[0].MinutesUntil)
	assert.Equal(t, 15, snap.MinutesToNextMacro)
	assert.Equal(t, 900, snap.SecondsToNextMacro)
	assert.Nil(t, snap.ActiveMacro)

	snap = Schedule(at(t, "2025-01-07", 10, 0, 0), windows)
	assert.Equal(t, StatusPassed, snap.MacroStatuses[0].Status)
	assert.Nil(t, snap.ActiveMacro)
	assert.Nil(t, snap.NextMacro)
}

func TestSchedule_SecondsRefineCountdown(t *testing.T) {
	snap := Schedule(at(t, "2025-01-07", 9, 29, 45), []model.MacroWindow{nyOpen})
	assert.Equal(t, 1, snap.MinutesToNextMacro)
	assert.Equal(t, 15, snap.SecondsToNextMacro)
}

func TestSchedule_AtMostOneActiveAndMonotonic(t *testing.T) {
	windows := catalog.Default()
	start := at(t, "2025-01-08", 0, 0, 0)

	order := map[Status]int{StatusUpcoming: 0, StatusActive: 1, StatusPassed: 2}
	last := make(map[string]int)

	for m := 0; m < 24*60; m++ {
		snap := Schedule(start.Add(time.Duration(m)*time.Minute), windows)
		active := 0
		for _, ms := range snap.MacroStatuses {
			if ms.Status == StatusActive {
				active++
			}
			rank := order[ms.Status]
			assert.GreaterOrEqual(t, rank, last[ms.Macro.ID], "window %s regressed at minute %d", ms.Macro.ID, m)
			last[ms.Macro.ID] = rank
		}
		assert.LessOrEqual(t, active, 1, "minute %d", m)
		if snap.NextMacro != nil {
			assert.GreaterOrEqual(t, snap.MinutesToNextMacro, 0)
			assert.GreaterOrEqual(t, snap.SecondsToNextMacro, 0)
		}
	}
}

func TestSchedule_AbuttingBoundaryIsHalfOpen(t *testing.T) {
	a := model.MacroWindow{ID: "a", Category: model.CategoryLondon, StartHour: 9, EndHour: 9, EndMinute: 30}
	b := model.MacroWindow{ID: "b", Category: model.CategoryRTH, StartHour: 9, StartMinute: 30, EndHour: 10}

	snap := Schedule(at(t, "2025-01-07", 9, 30, 0), []model.MacroWindow{a, b})
	require.NotNil(t, snap.ActiveMacro)
	assert.Equal(t, "b", snap.ActiveMacro.ID)
	st, _ := snap.StatusOf("a")
	assert.Equal(t, StatusPassed, st.Status)
}

func TestSchedule_NextMacroTieKeepsCatalogOrder(t *testing.T) {
	a := model.MacroWindow{ID: "first", Category: model.CategoryRTH, StartHour: 11, EndHour: 11, EndMinute: 10}
	b := model.MacroWindow{ID: "second", Category: model.CategoryRTH, StartHour: 11, EndHour: 11, EndMinute: 20}

	snap := Schedule(at(t, "2025-01-07", 10, 0, 0), []model.MacroWindow{a, b})
	require.NotNil(t, snap.NextMacro)
	assert.Equal(t, "first", snap.NextMacro.ID)
}

func TestSchedule_Weekend(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2025-01-11", "Monday"}, // Saturday
		{"2025-01-12", "Monday"}, // Sunday
	}
	for _, tt := range tests {
		for _, h := range []int{0, 9, 15, 23} {
			snap := Schedule(at(t, tt.date, h, 40, 0), catalog.Default())
			assert.True(t, snap.IsWeekend)
			assert.False(t, snap.IsTradingHours)
			assert.Nil(t, snap.ActiveMacro)
			assert.Nil(t, snap.NextMacro)
			assert.Equal(t, tt.want, snap.NextTradingDay)
			assert.NotContains(t, []string{"Saturday", "Sunday"}, snap.NextTradingDay)
			for _, ms := range snap.MacroStatuses {
				assert.Equal(t, StatusPassed, ms.Status)
			}
		}
	}
}

func TestSchedule_NextTradingDayOnWeekdays(t *testing.T) {
	assert.Equal(t, "Monday", Schedule(at(t, "2025-01-10", 12, 0, 0), nil).NextTradingDay)
	assert.Equal(t, "Wednesday", Schedule(at(t, "2025-01-07", 12, 0, 0), nil).NextTradingDay)
}

func TestSchedule_TradingHoursOutsideMacros(t *testing.T) {
	snap := Schedule(at(t, "2025-01-07", 12, 30, 0), catalog.Default())
	assert.Nil(t, snap.ActiveMacro)
	assert.True(t, snap.IsTradingHours)

	snap = Schedule(at(t, "2025-01-07", 17, 0, 0), catalog.Default())
	assert.False(t, snap.IsTradingHours)

	snap = Schedule(at(t, "2025-01-07", 2, 40, 0), catalog.Default())
	require.NotNil(t, snap.ActiveMacro)
	assert.Equal(t, "london-macro-1", snap.ActiveMacro.ID)
	assert.True(t, snap.IsTradingHours)
}

func TestSchedule_DaylightSavingUsesZone(t *testing.T) {
	// 13:45 UTC is 09:45 EDT in July but 08:45 EST in January.
	july := Schedule(time.Date(2025, 7, 8, 13, 45, 0, 0, time.UTC), []model.MacroWindow{nyOpen})
	jan := Schedule(time.Date(2025, 1, 7, 13, 45, 0, 0, time.UTC), []model.MacroWindow{nyOpen})
	assert.Equal(t, "ny-open", july.ActiveID())
	assert.Equal(t, "", jan.ActiveID())
}
