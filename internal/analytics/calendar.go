package analytics

import (
	"sort"

	"MacroTracker/internal/model"
)

// GroupByDate maps each ISO date to its rows. Rows for different windows on
// the same date stay separate and are ordered by catalog position.
func GroupByDate(logs []model.MacroLog, windows []model.MacroWindow) map[string][]model.MacroLog {
	pos := make(map[string]int, len(windows))
	for i, w := range windows {
		pos[w.ID] = i
	}
	rank := func(id string) int {
		if p, ok := pos[id]; ok {
			return p
		}
		return len(windows)
	}

	out := make(map[string][]model.MacroLog)
	for _, l := range logs {
		out[l.Date] = append(out[l.Date], l)
	}
	for date := range out {
		day := out[date]
		sort.SliceStable(day, func(i, j int) bool {
			ri, rj := rank(day[i].MacroID), rank(day[j].MacroID)
			if ri != rj {
				return ri < rj
			}
			return day[i].MacroID < day[j].MacroID
		})
	}
	return out
}

// Dates returns the keys of a grouping in ascending order.
func Dates(groups map[string][]model.MacroLog) []string {
	out := make([]string, 0, len(groups))
	for d := range groups {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
