package tracker

import (
	"context"
	"fmt"
	"html"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"MacroTracker/internal/analytics"
	"MacroTracker/internal/catalog"
	"MacroTracker/internal/export"
	"MacroTracker/internal/model"
	"MacroTracker/internal/notifier"
)

// HandleCommand processes a chat command and returns the reply.
func (t *Tracker) HandleCommand(_ context.Context, text string) string {
	args := strings.Fields(text)
	if len(args) == 0 {
		return notifier.FormatHelp()
	}
	cmd := strings.ToLower(args[0])
	if i := strings.IndexByte(cmd, '@'); i > 0 {
		cmd = cmd[:i]
	}
	args = args[1:]

	switch cmd {
	case "/now":
		return notifier.FormatSnapshot(t.Snapshot())
	case "/today":
		snap := t.Snapshot()
		return notifier.FormatDay(snap, t.journal.ForDate(snap.Fields.Date))
	case "/stats":
		return notifier.FormatSummary(analytics.Compute(t.journal.Snapshot(), t.windows))
	case "/log":
		return t.cmdLog(args)
	case "/link":
		return t.cmdLink(args)
	case "/unlink":
		return t.cmdUnlink(args)
	case "/delete":
		return t.cmdDelete(args)
	case "/export":
		return t.cmdExport()
	case "/sessions":
		return t.cmdSessions(args)
	case "/retry":
		return t.cmdRetry()
	default:
		return notifier.FormatHelp()
	}
}

// target resolves "<macroId> ... [date]" where date defaults to today in ET.
func (t *Tracker) target(macroID string, rest []string) (model.MacroWindow, string, error) {
	w, ok := catalog.Lookup(macroID)
	if !ok {
		return model.MacroWindow{}, "", fmt.Errorf("unknown macro %q", macroID)
	}
	date := t.Snapshot().Fields.Date
	if len(rest) > 0 {
		if _, err := model.ParseDate(rest[0]); err != nil {
			return model.MacroWindow{}, "", fmt.Errorf("bad date %q, want YYYY-MM-DD", rest[0])
		}
		date = rest[0]
	}
	return w, date, nil
}

func (t *Tracker) cmdLog(args []string) string {
	if len(args) < 3 {
		return "Usage: /log &lt;macroId&gt; &lt;points|direction|quality|sweep&gt; &lt;value|null&gt; [date]"
	}
	w, date, err := t.target(args[0], args[3:])
	if err != nil {
		return html.EscapeString(err.Error())
	}
	patch, err := parseField(args[1], args[2])
	if err != nil {
		return html.EscapeString(err.Error())
	}
	rec, ok := t.journal.Upsert(date, w.ID, patch)
	if !ok {
		return "Nothing saved."
	}
	return notifier.FormatLog(rec, w.Name)
}

// parseField turns one "/log" field/value pair into a patch. "null" clears.
func parseField(field, raw string) (model.LogPatch, error) {
	isNull := strings.EqualFold(raw, "null")
	var p model.LogPatch

	switch strings.ToLower(field) {
	case "points", "pts":
		if isNull {
			p.PointsMoved = model.Null[float64]()
			return p, nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return p, fmt.Errorf("points must be a number, got %q", raw)
		}
		p.PointsMoved = model.Value(v)
	case "direction", "dir":
		if isNull {
			p.Direction = model.Null[model.Direction]()
			return p, nil
		}
		v, err := model.ParseEnum[model.Direction](strings.ToUpper(raw))
		if err != nil {
			return p, fmt.Errorf("direction: %w", err)
		}
		p.Direction = model.Value(v)
	case "quality", "displacement":
		if isNull {
			p.DisplacementQuality = model.Null[model.DisplacementQuality]()
			return p, nil
		}
		v, err := model.ParseEnum[model.DisplacementQuality](strings.ToUpper(raw))
		if err != nil {
			return p, fmt.Errorf("quality: %w", err)
		}
		p.DisplacementQuality = model.Value(v)
	case "sweep":
		if isNull {
			p.LiquiditySweep = model.Null[model.LiquiditySweep]()
			return p, nil
		}
		v, err := model.ParseEnum[model.LiquiditySweep](strings.ToUpper(raw))
		if err != nil {
			return p, fmt.Errorf("sweep: %w", err)
		}
		p.LiquiditySweep = model.Value(v)
	default:
		return p, fmt.Errorf("unknown field %q", field)
	}
	return p, nil
}

func (t *Tracker) cmdLink(args []string) string {
	if len(args) < 2 {
		return "Usage: /link &lt;macroId&gt; &lt;url&gt; [date]"
	}
	w, date, err := t.target(args[0], args[2:])
	if err != nil {
		return html.EscapeString(err.Error())
	}
	rec, ok := t.journal.AddLink(date, w.ID, args[1])
	if !ok {
		return "Nothing saved."
	}
	return notifier.FormatLog(rec, w.Name)
}

func (t *Tracker) cmdUnlink(args []string) string {
	if len(args) < 2 {
		return "Usage: /unlink &lt;macroId&gt; &lt;index&gt; [date]"
	}
	w, date, err := t.target(args[0], args[2:])
	if err != nil {
		return html.EscapeString(err.Error())
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return "Index must be a number."
	}
	rec, ok := t.journal.RemoveLink(date, w.ID, idx)
	if !ok {
		return "Nothing logged for " + html.EscapeString(w.Name) + " on " + date + "."
	}
	return notifier.FormatLog(rec, w.Name)
}

func (t *Tracker) cmdDelete(args []string) string {
	if len(args) < 1 {
		return "Usage: /delete &lt;macroId&gt; [date]"
	}
	w, date, err := t.target(args[0], args[1:])
	if err != nil {
		return html.EscapeString(err.Error())
	}
	if !t.journal.DeleteEntry(date, w.ID) {
		return "Nothing logged for " + html.EscapeString(w.Name) + " on " + date + "."
	}
	return fmt.Sprintf("🗑 Deleted %s on %s.", html.EscapeString(w.Name), date)
}

func (t *Tracker) cmdExport() string {
	now := t.now()
	doc := export.Build(now, t.journal.Snapshot())
	path := filepath.Join(t.opts.ExportDir, export.FileName(now))
	if err := export.WriteFile(path, doc); err != nil {
		t.log.Errorw("export failed", "path", path, "error", err)
		return "Export failed: " + html.EscapeString(err.Error())
	}
	t.log.Infow("exported journal", "path", path, "rows", len(doc.MacroLogs))
	return fmt.Sprintf("📦 Exported %d logs to <code>%s</code>", len(doc.MacroLogs), html.EscapeString(path))
}

func (t *Tracker) cmdSessions(args []string) string {
	if len(args) >= 2 {
		on, err := parseSwitch(args[1])
		if err != nil {
			return html.EscapeString(err.Error())
		}
		switch strings.ToLower(args[0]) {
		case "asia":
			t.toggles.SetAsia(on)
		case "london":
			t.toggles.SetLondon(on)
		case "ny":
			t.toggles.SetNY(on)
		default:
			return "Session must be asia, london or ny."
		}
		t.log.Infow("session toggled", "session", args[0], "on", on)
	}
	f := t.toggles.Filter()
	return fmt.Sprintf("Sessions: asia %s | london %s | ny %s", onOff(f.ShowAsia), onOff(f.ShowLondon), onOff(f.ShowNY))
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func (t *Tracker) cmdRetry() string {
	failed := t.takeFailures()
	if len(failed) == 0 {
		return "Nothing to retry."
	}
	n := 0
	for _, f := range failed {
		if f.Retry() {
			n++
		}
	}
	return fmt.Sprintf("🔁 Retrying %d of %d failed saves.", n, len(failed))
}
