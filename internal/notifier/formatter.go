package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"MacroTracker/internal/analytics"
	"MacroTracker/internal/model"
	"MacroTracker/internal/scheduler"
)

// Placeholder stands in for a missing value.
const Placeholder = "—"

// FormatCountdown renders seconds as "1h 04m 30s", "4m 30s" or "30s".
func FormatCountdown(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// FormatSnapshot renders the live "now" view.
func FormatSnapshot(snap scheduler.Snapshot) string {
	var b strings.Builder
	f := snap.Fields
	b.WriteString(fmt.Sprintf("🕒 <b>%s %02d:%02d:%02d ET</b> (%s)\n\n", f.Date, f.Hour, f.Minute, f.Second, f.Weekday))

	if snap.IsWeekend {
		b.WriteString(fmt.Sprintf("Weekend, markets closed. Next trading day: <b>%s</b>\n", snap.NextTradingDay))
		return b.String()
	}

	if snap.ActiveMacro != nil {
		remaining := 0
		if ms, ok := snap.StatusOf(snap.ActiveMacro.ID); ok {
			remaining = ms.MinutesRemaining
		}
		b.WriteString(fmt.Sprintf("🟢 <b>%s</b> active (%s), %d min left\n",
			html.EscapeString(snap.ActiveMacro.Name), snap.ActiveMacro.TimeRange(), remaining))
	} else {
		b.WriteString("No macro active\n")
	}

	if snap.NextMacro != nil {
		b.WriteString(fmt.Sprintf("⏭ Next: <b>%s</b> at %02d:%02d in %s\n",
			html.EscapeString(snap.NextMacro.Name), snap.NextMacro.StartHour, snap.NextMacro.StartMinute,
			FormatCountdown(snap.SecondsToNextMacro)))
	} else {
		b.WriteString(fmt.Sprintf("⏭ No more macros today. Next trading day: %s\n", snap.NextTradingDay))
	}

	if snap.IsTradingHours {
		b.WriteString("Trading hours\n")
	}
	return b.String()
}

var statusIcon = map[scheduler.Status]string{
	scheduler.StatusUpcoming: "⏳",
	scheduler.StatusActive:   "🟢",
	scheduler.StatusPassed:   "✔️",
}

// FormatDay renders every scheduled window for a date with its log entry.
func FormatDay(snap scheduler.Snapshot, logs []model.MacroLog) string {
	byMacro := make(map[string]model.MacroLog, len(logs))
	for _, l := range logs {
		byMacro[l.MacroID] = l
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Macros %s</b>\n\n", snap.Fields.Date))
	for _, ms := range snap.MacroStatuses {
		b.WriteString(fmt.Sprintf("%s %s <code>%s</code> %s\n",
			statusIcon[ms.Status], ms.Macro.TimeRange(), ms.Macro.ID, html.EscapeString(ms.Macro.Name)))
		if l, ok := byMacro[ms.Macro.ID]; ok {
			b.WriteString("    " + FormatLogLine(l) + "\n")
		}
	}
	if len(snap.MacroStatuses) == 0 {
		b.WriteString("No sessions enabled. Use /sessions to turn some on.\n")
	}
	return b.String()
}

// FormatLogLine is the one-line summary of a log row.
func FormatLogLine(l model.MacroLog) string {
	parts := []string{
		"pts " + formatPoints(l.PointsMoved),
		"dir " + orPlaceholder(l.Direction),
		"disp " + orPlaceholder(l.DisplacementQuality),
		"sweep " + orPlaceholder(l.LiquiditySweep),
	}
	line := strings.Join(parts, " | ")
	if n := len(l.TVLinks); n > 0 {
		line += fmt.Sprintf(" | %d link(s)", n)
	}
	return line
}

// FormatLog renders one row in full, links included.
func FormatLog(l model.MacroLog, name string) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📝 <b>%s</b> %s\n", html.EscapeString(name), l.Date))
	b.WriteString(FormatLogLine(l) + "\n")
	for i, link := range l.TVLinks {
		b.WriteString(fmt.Sprintf("  [%d] %s\n", i, html.EscapeString(link)))
	}
	if !l.UpdatedAt.IsZero() {
		b.WriteString(fmt.Sprintf("updated %s\n", humanize.Time(l.UpdatedAt)))
	}
	return b.String()
}

func formatPoints(p *float64) string {
	if p == nil {
		return Placeholder
	}
	return humanize.FormatFloat("#,###.##", *p)
}

func orPlaceholder[T ~string](p *T) string {
	if p == nil {
		return Placeholder
	}
	return string(*p)
}

// FormatSummary renders the analytics rollup.
func FormatSummary(s analytics.Summary) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>Macro stats</b> (%s logged)\n\n", humanize.Comma(int64(s.TotalLogs))))
	b.WriteString(fmt.Sprintf("Bullish %d%% | Bearish %d%% | Consolidation %d%%\n",
		s.BullishRate, s.BearishRate, s.ConsolidationRate))

	avg := Placeholder
	if s.PointsCount > 0 {
		avg = humanize.FormatFloat("#,###.#", s.AvgPoints)
	}
	b.WriteString(fmt.Sprintf("Avg points: %s\n", avg))
	b.WriteString(fmt.Sprintf("Clean displacement: %d | Choppy: %d\n", s.LowResistanceCount, s.HighResistanceCount))

	best := Placeholder
	if s.BestMacro != nil {
		best = fmt.Sprintf("%s (%s pts avg, %d logs)",
			html.EscapeString(s.BestMacro.Name), humanize.FormatFloat("#,###.#", s.BestMacro.AvgPoints), s.BestMacro.Count)
	}
	b.WriteString(fmt.Sprintf("Best macro: %s\n", best))

	day := Placeholder
	if s.BestDay != nil {
		day = fmt.Sprintf("%s (%d%% directional, %d logs)", s.BestDay.Weekday, s.BestDay.DirectionalRate, s.BestDay.Total)
	}
	b.WriteString(fmt.Sprintf("Best day: %s\n", day))

	if len(s.Sweeps) > 0 {
		b.WriteString("Sweeps:")
		for _, sw := range []model.LiquiditySweep{model.SweepHighs, model.SweepLows, model.SweepBoth, model.SweepNone} {
			if n := s.Sweeps[sw]; n > 0 {
				b.WriteString(fmt.Sprintf(" %s %d", sw, n))
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatMacroStart announces a window opening.
func FormatMacroStart(w model.MacroWindow) string {
	return fmt.Sprintf("🔔 <b>%s</b> started (%s ET)\nLog it with /log %s points &lt;value&gt;",
		html.EscapeString(w.Name), w.TimeRange(), w.ID)
}

// FormatMacroEnd announces a window closing.
func FormatMacroEnd(w model.MacroWindow) string {
	return fmt.Sprintf("⏹ <b>%s</b> ended", html.EscapeString(w.Name))
}

// FormatHeadsUp warns that a window opens at start.
func FormatHeadsUp(w model.MacroWindow, now, start time.Time) string {
	return fmt.Sprintf("⏰ <b>%s</b> starts %s (%02d:%02d ET)",
		html.EscapeString(w.Name), humanize.RelTime(start, now, "ago", "from now"), w.StartHour, w.StartMinute)
}

// FormatWriteFailure tells the user a journal write was rolled back.
func FormatWriteFailure(op, macroName, date string, err error) string {
	return fmt.Sprintf("⚠️ Could not save %s for <b>%s</b> on %s: %s\nThe change was reverted. Send /retry to try again.",
		strings.ReplaceAll(op, "_", " "), html.EscapeString(macroName), date, html.EscapeString(err.Error()))
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return strings.Join([]string{
		"<b>MacroTracker commands</b>",
		"/now - active and next macro",
		"/today - today's macros and logs",
		"/stats - analytics over all logs",
		"/log &lt;macroId&gt; &lt;points|direction|quality|sweep&gt; &lt;value|null&gt;",
		"/link &lt;macroId&gt; &lt;url&gt;",
		"/unlink &lt;macroId&gt; &lt;index&gt;",
		"/delete &lt;macroId&gt;",
		"/export - write all logs to a JSON file",
		"/sessions [asia|london|ny] [on|off]",
		"/retry - re-run failed saves",
	}, "\n")
}
