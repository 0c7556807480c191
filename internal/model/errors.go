package model

import "errors"

var (
	// ErrUnknownEnum is returned when a wire value is outside its closed set.
	ErrUnknownEnum = errors.New("unknown enum value")

	// ErrInvalidDate is returned for dates that are not ISO YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)

// ErrInvalidKey is returned when a log key is incomplete.
var ErrInvalidKey = errors.New("invalid log key")
