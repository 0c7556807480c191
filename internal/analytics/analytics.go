package analytics

import (
	"math"
	"sort"
	"time"

	"MacroTracker/internal/model"
)

// MinDaySamples is the number of rows a weekday needs before it can be the best day.
const MinDaySamples = 3

// MacroStat aggregates the rows of one macro window.
type MacroStat struct {
	MacroID      string
	Name         string
	Count        int
	PointsCount  int
	AvgPoints    float64
	BullishCount int
	BearishCount int
}

// DayStat aggregates the rows that fall on one weekday.
type DayStat struct {
	Weekday         time.Weekday
	Total           int
	Directional     int
	DirectionalRate int // percent, rounded
}

// Summary is the rollup shown on the stats view.
type Summary struct {
	TotalLogs           int
	BullishCount        int
	BearishCount        int
	ConsolidationCount  int
	BullishRate         int
	BearishRate         int
	ConsolidationRate   int
	AvgPoints           float64
	PointsCount         int
	LowResistanceCount  int
	HighResistanceCount int
	BestMacro           *MacroStat
	BestDay             *DayStat

	Macros   []MacroStat
	Weekdays []DayStat
	Sweeps   map[model.LiquiditySweep]int
}

// FilterWithData keeps the rows that carry a direction or a points value.
func FilterWithData(logs []model.MacroLog) []model.MacroLog {
	out := make([]model.MacroLog, 0, len(logs))
	for _, l := range logs {
		if l.HasData() {
			out = append(out, l)
		}
	}
	return out
}

// Compute reduces the has-data subset of logs. windows supplies names and the
// catalog order used to break bestMacro ties.
func Compute(logs []model.MacroLog, windows []model.MacroWindow) Summary {
	rows := FilterWithData(logs)
	s := Summary{
		TotalLogs: len(rows),
		Sweeps:    make(map[model.LiquiditySweep]int),
	}

	var pointsSum float64
	var pointsN int
	for _, l := range rows {
		if l.Direction != nil {
			switch *l.Direction {
			case model.DirectionBullish:
				s.BullishCount++
			case model.DirectionBearish:
				s.BearishCount++
			case model.DirectionConsolidation:
				s.ConsolidationCount++
			}
		}
		if l.PointsMoved != nil {
			pointsSum += *l.PointsMoved
			pointsN++
		}
		if l.DisplacementQuality != nil {
			switch *l.DisplacementQuality {
			case model.DisplacementClean:
				s.LowResistanceCount++
			case model.DisplacementChoppy:
				s.HighResistanceCount++
			}
		}
		if l.LiquiditySweep != nil {
			s.Sweeps[*l.LiquiditySweep]++
		}
	}

	s.BullishRate = rate(s.BullishCount, s.TotalLogs)
	s.BearishRate = rate(s.BearishCount, s.TotalLogs)
	// Chop is every has-data row without a directional call, so the three
	// rates cover the whole total.
	s.ConsolidationRate = rate(s.TotalLogs-s.BullishCount-s.BearishCount, s.TotalLogs)
	s.PointsCount = pointsN
	if pointsN > 0 {
		s.AvgPoints = pointsSum / float64(pointsN)
	}

	s.Macros = macroStats(rows, windows)
	s.BestMacro = bestMacro(s.Macros)
	s.Weekdays = dayStats(rows)
	s.BestDay = bestDay(s.Weekdays)
	return s
}

func rate(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}

// macroStats groups rows per macro, in catalog order followed by unknown ids
// in first-seen order.
func macroStats(rows []model.MacroLog, windows []model.MacroWindow) []MacroStat {
	index := make(map[string]int)
	var stats []MacroStat
	for _, w := range windows {
		index[w.ID] = len(stats)
		stats = append(stats, MacroStat{MacroID: w.ID, Name: w.Name})
	}

	sums := make([]float64, len(stats))
	for _, l := range rows {
		i, ok := index[l.MacroID]
		if !ok {
			i = len(stats)
			index[l.MacroID] = i
			stats = append(stats, MacroStat{MacroID: l.MacroID, Name: l.MacroID})
			sums = append(sums, 0)
		}
		st := &stats[i]
		st.Count++
		if l.PointsMoved != nil {
			st.PointsCount++
			sums[i] += *l.PointsMoved
		}
		if l.Direction != nil {
			switch *l.Direction {
			case model.DirectionBullish:
				st.BullishCount++
			case model.DirectionBearish:
				st.BearishCount++
			}
		}
	}

	out := stats[:0]
	for i, st := range stats {
		if st.Count == 0 {
			continue
		}
		if st.PointsCount > 0 {
			st.AvgPoints = sums[i] / float64(st.PointsCount)
		}
		out = append(out, st)
	}
	return out
}

func bestMacro(stats []MacroStat) *MacroStat {
	var best *MacroStat
	for i := range stats {
		st := stats[i]
		if st.PointsCount == 0 {
			continue
		}
		if best == nil || st.AvgPoints > best.AvgPoints {
			best = &st
		}
	}
	return best
}

// dayStats buckets rows by the weekday of their local calendar date, Monday first.
func dayStats(rows []model.MacroLog) []DayStat {
	byDay := make(map[time.Weekday]*DayStat)
	for _, l := range rows {
		d, err := model.ParseDate(l.Date)
		if err != nil {
			continue
		}
		wd := d.Weekday()
		st, ok := byDay[wd]
		if !ok {
			st = &DayStat{Weekday: wd}
			byDay[wd] = st
		}
		st.Total++
		if l.Direction != nil && (*l.Direction == model.DirectionBullish || *l.Direction == model.DirectionBearish) {
			st.Directional++
		}
	}

	out := make([]DayStat, 0, len(byDay))
	for _, st := range byDay {
		st.DirectionalRate = rate(st.Directional, st.Total)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return mondayFirst(out[i].Weekday) < mondayFirst(out[j].Weekday) })
	return out
}

func mondayFirst(d time.Weekday) int { return (int(d) + 6) % 7 }

func bestDay(stats []DayStat) *DayStat {
	var best *DayStat
	var bestRate float64
	for i := range stats {
		st := stats[i]
		if st.Total < MinDaySamples {
			continue
		}
		r := float64(st.Directional) / float64(st.Total)
		if best == nil || r > bestRate {
			best = &st
			bestRate = r
		}
	}
	return best
}
