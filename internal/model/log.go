package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date layout used for log keys.
const DateLayout = "2006-01-02"

// Direction is the directional outcome of a macro window.
type Direction string

const (
	DirectionBullish       Direction = "BULLISH"
	DirectionBearish       Direction = "BEARISH"
	DirectionConsolidation Direction = "CONSOLIDATION"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionBullish, DirectionBearish, DirectionConsolidation:
		return true
	}
	return false
}

func (d *Direction) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, d, "direction")
}

// DisplacementQuality tags how clean the move inside a window was.
type DisplacementQuality string

const (
	DisplacementClean  DisplacementQuality = "CLEAN"
	DisplacementChoppy DisplacementQuality = "CHOPPY"
)

func (q DisplacementQuality) Valid() bool {
	return q == DisplacementClean || q == DisplacementChoppy
}

func (q *DisplacementQuality) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, q, "displacementQuality")
}

// LiquiditySweep records which side of prior liquidity was taken.
type LiquiditySweep string

const (
	SweepHighs LiquiditySweep = "HIGHS"
	SweepLows  LiquiditySweep = "LOWS"
	SweepBoth  LiquiditySweep = "BOTH"
	SweepNone  LiquiditySweep = "NONE"
)

func (s LiquiditySweep) Valid() bool {
	switch s {
	case SweepHighs, SweepLows, SweepBoth, SweepNone:
		return true
	}
	return false
}

func (s *LiquiditySweep) UnmarshalJSON(data []byte) error {
	return unmarshalEnum(data, s, "liquiditySweep")
}

type enum interface {
	~string
	Valid() bool
}

// ParseEnum converts raw into T, rejecting values outside the closed set.
func ParseEnum[T enum](raw string) (T, error) {
	v := T(raw)
	if !v.Valid() {
		var zero T
		return zero, fmt.Errorf("%w: %q", ErrUnknownEnum, raw)
	}
	return v, nil
}

func unmarshalEnum[T enum](data []byte, dst *T, kind string) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	v, err := ParseEnum[T](s)
	if err != nil {
		return fmt.Errorf("%s: %w", kind, err)
	}
	*dst = v
	return nil
}

// MacroLog is one user's observation of one macro window on one date.
type MacroLog struct {
	ID                  string               `json:"id"`
	UserID              string               `json:"-"`
	Date                string               `json:"date"`
	MacroID             string               `json:"macroId"`
	PointsMoved         *float64             `json:"pointsMoved"`
	Direction           *Direction           `json:"direction"`
	DisplacementQuality *DisplacementQuality `json:"displacementQuality"`
	LiquiditySweep      *LiquiditySweep      `json:"liquiditySweep"`
	TVLinks             []string             `json:"tvLinks"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// HasData distinguishes a real entry from a logged-but-empty placeholder.
func (l MacroLog) HasData() bool {
	return l.Direction != nil || l.PointsMoved != nil
}

// Key returns the composite uniqueness key of the row.
func (l MacroLog) Key() LogKey {
	return LogKey{UserID: l.UserID, Date: l.Date, MacroID: l.MacroID}
}

// Clone returns a deep copy so callers can't mutate shared state.
func (l MacroLog) Clone() MacroLog {
	c := l
	c.PointsMoved = clonePtr(l.PointsMoved)
	c.Direction = clonePtr(l.Direction)
	c.DisplacementQuality = clonePtr(l.DisplacementQuality)
	c.LiquiditySweep = clonePtr(l.LiquiditySweep)
	c.TVLinks = append([]string{}, l.TVLinks...)
	return c
}

func (l MacroLog) MarshalJSON() ([]byte, error) {
	type alias MacroLog
	a := alias(l)
	if a.TVLinks == nil {
		a.TVLinks = []string{}
	}
	return json.Marshal(a)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// LogKey is the composite key (userId, date, macroId).
type LogKey struct {
	UserID  string
	Date    string
	MacroID string
}

func (k LogKey) String() string {
	return k.UserID + "/" + k.Date + "/" + k.MacroID
}

// Validate checks that the key is complete and the date is an ISO calendar date.
func (k LogKey) Validate() error {
	if k.MacroID == "" {
		return fmt.Errorf("%w: empty macro id", ErrInvalidKey)
	}
	if _, err := ParseDate(k.Date); err != nil {
		return err
	}
	return nil
}

// ParseDate parses an ISO date as a local calendar date, never as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}
