package pattern

import (
	"fmt"
	"strings"

	"github.com/cbegin/rhythmkit-go/internal/timing"
)

// NoteValue identifies a notated duration.
type NoteValue int

const (
	Whole NoteValue = iota
	DottedHalf
	Half
	DottedQuarter
	Quarter
	DottedEighth
	Eighth
	Sixteenth
	TripletQuarter
	TripletEighth
	numNoteValues
)

type valueInfo struct {
	name     string
	code     string
	duration timing.Frac
	tuplet   bool
	dots     int
	glyph    string
}

var valueTable = [numNoteValues]valueInfo{
	Whole:          {"whole", "w", timing.NewFrac(1, 1), false, 0, "w"},
	DottedHalf:     {"dottedHalf", "dh", timing.NewFrac(3, 4), false, 1, "h"},
	Half:           {"half", "h", timing.NewFrac(1, 2), false, 0, "h"},
	DottedQuarter:  {"dottedQuarter", "dq", timing.NewFrac(3, 8), false, 1, "q"},
	Quarter:        {"quarter", "q", timing.NewFrac(1, 4), false, 0, "q"},
	DottedEighth:   {"dottedEighth", "de", timing.NewFrac(3, 16), false, 1, "8"},
	Eighth:         {"eighth", "e", timing.NewFrac(1, 8), false, 0, "8"},
	Sixteenth:      {"sixteenth", "s", timing.NewFrac(1, 16), false, 0, "16"},
	TripletQuarter: {"tripletQuarter", "tq", timing.NewFrac(1, 6), true, 0, "q"},
	TripletEighth:  {"tripletEighth", "te", timing.NewFrac(1, 12), true, 0, "8"},
}

func (v NoteValue) Valid() bool { return v >= 0 && v < numNoteValues }

// Duration is the exact length in whole notes.
func (v NoteValue) Duration() timing.Frac {
	if !v.Valid() {
		return timing.Zero
	}
	return valueTable[v].duration
}

func (v NoteValue) String() string {
	if !v.Valid() {
		return fmt.Sprintf("NoteValue(%d)", int(v))
	}
	return valueTable[v].name
}

// Code is the short form used in share links and pattern text.
func (v NoteValue) Code() string {
	if !v.Valid() {
		return ""
	}
	return valueTable[v].code
}

func (v NoteValue) Tuplet() bool { return v.Valid() && valueTable[v].tuplet }

func (v NoteValue) Dots() int {
	if !v.Valid() {
		return 0
	}
	return valueTable[v].dots
}

// Glyph is the undotted notehead/flag class: w, h, q, 8, 16. Invalid values
// have no glyph.
func (v NoteValue) Glyph() string {
	if !v.Valid() {
		return ""
	}
	return valueTable[v].glyph
}

// AllNoteValues lists every value from longest to shortest.
func AllNoteValues() []NoteValue {
	out := make([]NoteValue, 0, numNoteValues)
	for v := NoteValue(0); v < numNoteValues; v++ {
		out = append(out, v)
	}
	return out
}

// ParseNoteValue accepts a name ("quarter") or code ("q").
func ParseNoteValue(s string) (NoteValue, error) {
	s = strings.TrimSpace(s)
	for v := NoteValue(0); v < numNoteValues; v++ {
		if strings.EqualFold(s, valueTable[v].name) || s == valueTable[v].code {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown note value %q", s)
}

func (v NoteValue) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, fmt.Errorf("invalid note value %d", int(v))
	}
	return []byte(v.String()), nil
}

func (v *NoteValue) UnmarshalText(b []byte) error {
	parsed, err := ParseNoteValue(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
