package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"MacroTracker/internal/clock"
	"MacroTracker/internal/model"
)

// Document is the journal export: every log row plus when it was taken.
type Document struct {
	ExportedAt time.Time        `json:"exportedAt"`
	MacroLogs  []model.MacroLog `json:"macroLogs"`
}

// Build snapshots logs into a Document. The rows are copied.
func Build(now time.Time, logs []model.MacroLog) Document {
	rows := make([]model.MacroLog, len(logs))
	for i, l := range logs {
		rows[i] = l.Clone()
	}
	return Document{ExportedAt: now.UTC(), MacroLogs: rows}
}

// FileName is the default export name, dated in ET like the logs it holds.
func FileName(now time.Time) string {
	return fmt.Sprintf("macro-logs-%s.json", clock.Today(now))
}

// Write encodes doc as indented JSON.
func Write(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFile writes doc to path through a temp file and rename, so readers
// never observe a partial export.
func WriteFile(path string, doc Document) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.json")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, doc); err != nil {
		tmp.Close()
		return fmt.Errorf("encode export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadFile loads an export written by WriteFile.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode export %s: %w", path, err)
	}
	if doc.MacroLogs == nil {
		doc.MacroLogs = []model.MacroLog{}
	}
	return doc, nil
}
