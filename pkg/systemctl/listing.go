package systemctl

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/modoterra/unitgate/pkg/core"
)

// Listing is the result of parsing one `systemctl list-units --type service`
// output.
type Listing struct {
	Units   core.Index
	Skipped []SkippedLine
	// Err is set when the output could not be read to the end. Units and
	// Skipped then hold the rows before the failure.
	Err error
}

// SkippedLine is an input line that did not match the listing grammar.
type SkippedLine struct {
	Number int    `json:"number"` // 1-based
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// Blank reports whether the skipped line was empty or whitespace only.
func (s SkippedLine) Blank() bool {
	return strings.TrimSpace(s.Text) == ""
}

// ParseListing turns a unit listing into unit records, one per row of the form
//
//	<filename>.service <load> <active> <sub> <description...>
//
// load and active must be whole word columns. sub is the leading word run of
// its column; a dashed sub state such as "auto-restart" yields sub "auto" and
// the rest of the line, "-restart ...", as the description.
//
// Rows keep their input order. Lines that do not match (the column header,
// blank separators, the legend and summary footer) are collected in Skipped
// and never stop the parse.
func ParseListing(out []byte) Listing {
	l := Listing{Units: core.Index{}}
	n := 0
	l.Err = eachLine(out, func(line string) bool {
		n++
		u, err := parseListingRow(line)
		if err != nil {
			l.Skipped = append(l.Skipped, SkippedLine{Number: n, Text: line, Reason: err.Error()})
			return true
		}
		l.Units = append(l.Units, u)
		return true
	})
	return l
}

func parseListingRow(line string) (core.Unit, error) {
	name, rest := cutField(line)
	if name == "" {
		return core.Unit{}, fmt.Errorf("blank line")
	}
	if !strings.HasSuffix(name, core.ServiceSuffix) {
		return core.Unit{}, fmt.Errorf("first column %q is not a service unit", name)
	}
	load, rest := cutField(rest)
	active, rest := cutField(rest)
	sub, rest := cutWord(rest)
	description := strings.TrimRightFunc(rest, unicode.IsSpace)

	return core.NewUnit(strings.TrimSuffix(name, core.ServiceSuffix), load, active, sub, description)
}

// cutWord returns the leading run of word characters of s and the remainder
// with its leading whitespace removed. Anything after the run that is not
// whitespace stays in the remainder, so "auto-restart Foo" yields "auto" and
// "-restart Foo".
func cutWord(s string) (word, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, func(r rune) bool { return !core.IsWord(string(r)) })
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

// cutField returns the first whitespace-delimited field of s and the
// remainder with its leading whitespace removed.
func cutField(s string) (field, rest string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}
