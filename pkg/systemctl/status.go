package systemctl

import (
	"errors"
	"strings"
	"unicode"

	"github.com/modoterra/unitgate/pkg/core"
)

// ErrNoBoundary is returned by ParseStatus when the status text has no blank
// line separating the metadata header from the journal excerpt.
var ErrNoBoundary = errors.New("status block has no blank-line boundary")

// fieldDelimiter separates a status label from its value.
const fieldDelimiter = ": "

// ParseStatus parses `systemctl status <unit>` output into label/value pairs.
//
// Scanning stops at the first empty line; the journal excerpt after it is
// ignored. Lines without ": " (tree continuation lines, the title line) are
// skipped, not folded into the previous value. A repeated label keeps its
// last value.
//
// When no empty line is present every line is parsed and the complete
// fields are returned together with ErrNoBoundary.
func ParseStatus(out []byte) (core.StatusFields, error) {
	fields := core.StatusFields{}
	boundary := false
	err := eachLine(out, func(line string) bool {
		if line == "" {
			boundary = true
			return false
		}
		if name, value, ok := splitStatusField(line); ok {
			fields[name] = value
		}
		return true
	})
	if err != nil {
		return fields, err
	}
	if !boundary {
		return fields, ErrNoBoundary
	}
	return fields, nil
}

func splitStatusField(line string) (name, value string, ok bool) {
	return strings.Cut(strings.TrimLeftFunc(line, unicode.IsSpace), fieldDelimiter)
}
