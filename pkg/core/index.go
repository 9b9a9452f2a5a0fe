package core

import (
	"errors"
	"fmt"
)

// ErrOutOfRange is returned when an ordinal does not name a unit.
var ErrOutOfRange = errors.New("ordinal out of range")

// Index maps caller-facing ordinals to units. Position i is service id i.
//
// An Index is built from a fresh listing on every request and is only
// meaningful for that request. The service manager may add, drop or reorder
// units between two listings, so the same ordinal can name a different unit
// on the next call. Callers that need to act on a specific unit should check
// the resolved Filename (the HTTP layer's expect guard does this).
type Index []Unit

// Resolve returns the unit at the given ordinal.
func (ix Index) Resolve(ordinal int) (Unit, error) {
	if ordinal < 0 || ordinal >= len(ix) {
		return Unit{}, fmt.Errorf("%w: %d (%d units listed)", ErrOutOfRange, ordinal, len(ix))
	}
	return ix[ordinal], nil
}

// StatusFields maps status labels ("Loaded", "Active", ...) to their values.
type StatusFields map[string]string

// LogLines holds raw journal lines in the order the collector emitted them.
type LogLines []string
