package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MacroTracker/internal/model"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestEveryFilterCombination_IsValid(t *testing.T) {
	for _, asia := range []bool{false, true} {
		for _, london := range []bool{false, true} {
			for _, ny := range []bool{false, true} {
				f := SessionFilter{ShowAsia: asia, ShowLondon: london, ShowNY: ny}
				assert.NoError(t, Validate(Filter(Default(), f)), "filter %+v", f)
			}
		}
	}
}

func TestWindowsForDisplay(t *testing.T) {
	without := WindowsForDisplay(false)
	with := WindowsForDisplay(true)

	for _, w := range without {
		assert.NotEqual(t, model.CategoryAsia, w.Category, w.ID)
	}
	assert.Len(t, with, len(Default()))
	assert.Greater(t, len(with), len(without))
	require.NoError(t, Validate(with))
}

func TestFilter_Sessions(t *testing.T) {
	ny := Filter(Default(), SessionFilter{ShowNY: true})
	require.NotEmpty(t, ny)
	for _, w := range ny {
		assert.Contains(t, []model.Category{model.CategoryOvernight, model.CategoryRTH, model.CategoryRTHClose}, w.Category)
	}

	assert.Empty(t, Filter(Default(), SessionFilter{}))
}

func TestToggles_Windows(t *testing.T) {
	tg := NewToggles(AllSessions)
	assert.Len(t, tg.Windows(), len(Default()))

	tg.SetLondon(false)
	for _, w := range tg.Windows() {
		assert.NotEqual(t, model.CategoryLondon, w.Category)
	}
	assert.False(t, tg.Filter().ShowLondon)
}

func TestValidate_Rejects(t *testing.T) {
	a := model.MacroWindow{ID: "a", Category: model.CategoryRTH, StartHour: 9, StartMinute: 30, EndHour: 10}
	b := model.MacroWindow{ID: "b", Category: model.CategoryRTH, StartHour: 9, StartMinute: 45, EndHour: 10, EndMinute: 15}
	abut := model.MacroWindow{ID: "c", Category: model.CategoryRTH, StartHour: 10, EndHour: 10, EndMinute: 30}

	tests := []struct {
		name    string
		windows []model.MacroWindow
		wantErr bool
	}{
		{"abutting is fine", []model.MacroWindow{a, abut}, false},
		{"overlap", []model.MacroWindow{a, b}, true},
		{"unsorted", []model.MacroWindow{abut, a}, true},
		{"duplicate id", []model.MacroWindow{a, {ID: "a", Category: model.CategoryAsia, StartHour: 20, EndHour: 21}}, true},
		{"empty window", []model.MacroWindow{{ID: "z", Category: model.CategoryRTH, StartHour: 9, EndHour: 9}}, true},
		{"bad category", []model.MacroWindow{{ID: "z", Category: "lunch", StartHour: 9, EndHour: 10}}, true},
	}
	for _, tt := range tests {
		err := Validate(tt.windows)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
	}
}

func TestLookup(t *testing.T) {
	w, ok := Lookup("ny-open")
	require.True(t, ok)
	assert.Equal(t, 9*60+30, w.StartMinutes())

	_, ok = Lookup("nope")
	assert.False(t, ok)
}
