package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Field is one column of a partial update. An unset Field leaves the column
// untouched; a set Field with a nil Value clears it.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Value returns a Field that writes v.
func Value[T any](v T) Field[T] { return Field[T]{Set: true, Value: &v} }

// Null returns a Field that clears the column.
func Null[T any]() Field[T] { return Field[T]{Set: true} }

func (f Field[T]) apply(dst **T) {
	if f.Set {
		*dst = clonePtr(f.Value)
	}
}

func (f *Field[T]) decode(raw json.RawMessage) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// LogPatch is a shallow partial update of a MacroLog.
type LogPatch struct {
	PointsMoved         Field[float64]
	Direction           Field[Direction]
	DisplacementQuality Field[DisplacementQuality]
	LiquiditySweep      Field[LiquiditySweep]
	TVLinks             Field[[]string]
}

// Empty reports whether the patch touches nothing.
func (p LogPatch) Empty() bool { return len(p.Touched()) == 0 }

// Touched lists the wire names of the fields this patch writes.
func (p LogPatch) Touched() []string {
	var out []string
	if p.PointsMoved.Set {
		out = append(out, "pointsMoved")
	}
	if p.Direction.Set {
		out = append(out, "direction")
	}
	if p.DisplacementQuality.Set {
		out = append(out, "displacementQuality")
	}
	if p.LiquiditySweep.Set {
		out = append(out, "liquiditySweep")
	}
	if p.TVLinks.Set {
		out = append(out, "tvLinks")
	}
	return out
}

// Apply merges the patch into rec, leaving omitted fields alone.
func (p LogPatch) Apply(rec *MacroLog) {
	p.PointsMoved.apply(&rec.PointsMoved)
	p.Direction.apply(&rec.Direction)
	p.DisplacementQuality.apply(&rec.DisplacementQuality)
	p.LiquiditySweep.apply(&rec.LiquiditySweep)
	if p.TVLinks.Set {
		if p.TVLinks.Value == nil {
			rec.TVLinks = []string{}
		} else {
			rec.TVLinks = append([]string{}, (*p.TVLinks.Value)...)
		}
	}
}

// Invert builds the patch that restores every field p touches to its value in before.
func (p LogPatch) Invert(before MacroLog) LogPatch {
	var inv LogPatch
	if p.PointsMoved.Set {
		inv.PointsMoved = Field[float64]{Set: true, Value: clonePtr(before.PointsMoved)}
	}
	if p.Direction.Set {
		inv.Direction = Field[Direction]{Set: true, Value: clonePtr(before.Direction)}
	}
	if p.DisplacementQuality.Set {
		inv.DisplacementQuality = Field[DisplacementQuality]{Set: true, Value: clonePtr(before.DisplacementQuality)}
	}
	if p.LiquiditySweep.Set {
		inv.LiquiditySweep = Field[LiquiditySweep]{Set: true, Value: clonePtr(before.LiquiditySweep)}
	}
	if p.TVLinks.Set {
		links := append([]string{}, before.TVLinks...)
		inv.TVLinks = Value(links)
	}
	return inv
}

// UnmarshalJSON decodes a partial update: absent keys stay unset, explicit
// nulls clear.
func (p *LogPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		var err error
		switch k {
		case "pointsMoved":
			err = p.PointsMoved.decode(v)
		case "direction":
			err = p.Direction.decode(v)
		case "displacementQuality":
			err = p.DisplacementQuality.decode(v)
		case "liquiditySweep":
			err = p.LiquiditySweep.decode(v)
		case "tvLinks":
			err = p.TVLinks.decode(v)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	return nil
}
