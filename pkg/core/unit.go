package core

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ServiceSuffix is the unit type suffix stripped from listing rows.
const ServiceSuffix = ".service"

// headerToken is the first column of the listing's own header row.
const headerToken = "UNIT"

// ErrInvalidUnit is returned by NewUnit when a column fails validation.
var ErrInvalidUnit = errors.New("invalid unit record")

// Unit is one row of a systemd service listing.
type Unit struct {
	Filename    string `json:"filename"`
	Load        string `json:"load"`
	Active      string `json:"active"`
	Sub         string `json:"sub"`
	Description string `json:"description"`
}

// NewUnit validates the listing columns and builds a Unit.
// filename is the bare unit name, without the ".service" suffix.
func NewUnit(filename, load, active, sub, description string) (Unit, error) {
	if !IsUnitName(filename) {
		return Unit{}, fmt.Errorf("%w: bad unit name %q", ErrInvalidUnit, filename)
	}
	if filename == headerToken {
		return Unit{}, fmt.Errorf("%w: header row", ErrInvalidUnit)
	}
	for _, col := range []struct{ name, value string }{
		{"load", load},
		{"active", active},
		{"sub", sub},
	} {
		if !IsWord(col.value) {
			return Unit{}, fmt.Errorf("%w: bad %s state %q", ErrInvalidUnit, col.name, col.value)
		}
	}
	return Unit{
		Filename:    filename,
		Load:        load,
		Active:      active,
		Sub:         sub,
		Description: description,
	}, nil
}

// ServiceName returns the full unit name including the ".service" suffix.
func (u Unit) ServiceName() string {
	return u.Filename + ServiceSuffix
}

// IsUnitName reports whether s is a non-empty run of word characters,
// '.', '@', ':', '\' or '-'.
func IsUnitName(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if isWordRune(r) || strings.ContainsRune(`.@:\-`, r) {
			continue
		}
		return false
	}
	return true
}

// IsWord reports whether s is a non-empty run of word characters.
func IsWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Verb is a lifecycle action forwarded to the service manager.
type Verb string

const (
	VerbStart   Verb = "start"
	VerbStop    Verb = "stop"
	VerbRestart Verb = "restart"
)

// ErrInvalidVerb is returned by ParseVerb for anything but start, stop or restart.
var ErrInvalidVerb = errors.New("invalid verb")

// ParseVerb validates a verb string.
func ParseVerb(s string) (Verb, error) {
	switch v := Verb(s); v {
	case VerbStart, VerbStop, VerbRestart:
		return v, nil
	default:
		return "", fmt.Errorf("%w %q: expected start, stop or restart", ErrInvalidVerb, s)
	}
}
