package timing

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidTimeSignature = errors.New("invalid time signature")
	ErrInvalidTempo         = errors.New("invalid tempo")
)

// TimeSignature is a meter such as 3/4 or 6/8. Grouping optionally splits the
// numerator into irregular beat groups (5/4 as 3+2).
// It marshals as text ("6/8", or "5/4(2+3)" for a non-default grouping).
type TimeSignature struct {
	Numerator   int
	Denominator int
	Grouping    []int
}

// Known meters offered by the tool, in display order.
var knownSignatures = []TimeSignature{
	{Numerator: 2, Denominator: 4},
	{Numerator: 3, Denominator: 4},
	{Numerator: 4, Denominator: 4},
	{Numerator: 5, Denominator: 4, Grouping: []int{3, 2}},
	{Numerator: 6, Denominator: 8},
	{Numerator: 7, Denominator: 8, Grouping: []int{2, 2, 3}},
	{Numerator: 9, Denominator: 8},
	{Numerator: 12, Denominator: 8},
}

func KnownSignatures() []TimeSignature {
	out := make([]TimeSignature, len(knownSignatures))
	copy(out, knownSignatures)
	return out
}

func ValidateSignature(sig TimeSignature) error {
	if sig.Numerator <= 0 {
		return fmt.Errorf("%w: numerator %d must be positive", ErrInvalidTimeSignature, sig.Numerator)
	}
	switch sig.Denominator {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("%w: denominator %d not in {1,2,4,8,16}", ErrInvalidTimeSignature, sig.Denominator)
	}
	if len(sig.Grouping) > 0 {
		total := 0
		for _, g := range sig.Grouping {
			if g <= 0 {
				return fmt.Errorf("%w: grouping %v has non-positive entry", ErrInvalidTimeSignature, sig.Grouping)
			}
			total += g
		}
		if total != sig.Numerator {
			return fmt.Errorf("%w: grouping %v does not add up to %d", ErrInvalidTimeSignature, sig.Grouping, sig.Numerator)
		}
	}
	return nil
}

// ParseTimeSignature parses "6/8" or "5/4(2+3)". Known irregular meters pick
// up their default grouping when none is given.
func ParseTimeSignature(s string) (TimeSignature, error) {
	text := strings.TrimSpace(s)
	var grouping []int
	if open := strings.IndexByte(text, '('); open >= 0 {
		if !strings.HasSuffix(text, ")") {
			return TimeSignature{}, fmt.Errorf("%w: %q", ErrInvalidTimeSignature, s)
		}
		for _, part := range strings.Split(text[open+1:len(text)-1], "+") {
			g, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return TimeSignature{}, fmt.Errorf("%w: grouping in %q", ErrInvalidTimeSignature, s)
			}
			grouping = append(grouping, g)
		}
		text = text[:open]
	}
	num, den, ok := strings.Cut(text, "/")
	if !ok {
		return TimeSignature{}, fmt.Errorf("%w: %q", ErrInvalidTimeSignature, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("%w: %q", ErrInvalidTimeSignature, s)
	}
	d, err := strconv.Atoi(strings.TrimSpace(den))
	if err != nil {
		return TimeSignature{}, fmt.Errorf("%w: %q", ErrInvalidTimeSignature, s)
	}
	sig := TimeSignature{Numerator: n, Denominator: d, Grouping: grouping}
	if len(sig.Grouping) == 0 {
		sig.Grouping = defaultGrouping(n, d)
	}
	if err := ValidateSignature(sig); err != nil {
		return TimeSignature{}, err
	}
	return sig, nil
}

func MustParseTimeSignature(s string) TimeSignature {
	sig, err := ParseTimeSignature(s)
	if err != nil {
		panic(err)
	}
	return sig
}

func defaultGrouping(n, d int) []int {
	for _, k := range knownSignatures {
		if k.Numerator == n && k.Denominator == d && len(k.Grouping) > 0 {
			return append([]int(nil), k.Grouping...)
		}
	}
	return nil
}

func (s TimeSignature) String() string {
	return fmt.Sprintf("%d/%d", s.Numerator, s.Denominator)
}

// Equal compares meters including their effective grouping.
func (s TimeSignature) Equal(o TimeSignature) bool {
	if s.Numerator != o.Numerator || s.Denominator != o.Denominator {
		return false
	}
	return equalInts(s.effectiveGrouping(), o.effectiveGrouping())
}

func (s TimeSignature) effectiveGrouping() []int {
	if len(s.Grouping) > 0 {
		return s.Grouping
	}
	return defaultGrouping(s.Numerator, s.Denominator)
}

func (s TimeSignature) MarshalText() ([]byte, error) {
	if err := ValidateSignature(s); err != nil {
		return nil, err
	}
	text := s.String()
	if len(s.Grouping) > 0 && !equalInts(s.Grouping, defaultGrouping(s.Numerator, s.Denominator)) {
		parts := make([]string, len(s.Grouping))
		for i, g := range s.Grouping {
			parts[i] = strconv.Itoa(g)
		}
		text += "(" + strings.Join(parts, "+") + ")"
	}
	return []byte(text), nil
}

func (s *TimeSignature) UnmarshalText(b []byte) error {
	sig, err := ParseTimeSignature(string(b))
	if err != nil {
		return err
	}
	*s = sig
	return nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Compound reports whether the beat divides into three (6/8, 9/8, 12/8).
func (s TimeSignature) Compound() bool {
	return s.Denominator >= 8 && s.Numerator > 3 && s.Numerator%3 == 0
}

// Capacity is the exact length of one measure in whole notes.
func (s TimeSignature) Capacity() Frac {
	return NewFrac(int64(s.Numerator), int64(s.Denominator))
}

// BeatUnit is the note value named by the denominator.
func (s TimeSignature) BeatUnit() Frac {
	return NewFrac(1, int64(s.Denominator))
}

// MainBeat is the felt beat: a dotted beat unit in compound meter.
func (s TimeSignature) MainBeat() Frac {
	if s.Compound() {
		return NewFrac(3, int64(s.Denominator))
	}
	return s.BeatUnit()
}

// BeatCount is the number of felt beats per measure.
func (s TimeSignature) BeatCount() int {
	if s.Compound() {
		return s.Numerator / 3
	}
	return s.Numerator
}

// Cells partitions a measure into main-beat cells. Grouping does not change
// the cells; it only moves accents.
func (s TimeSignature) Cells() []Frac {
	n := s.BeatCount()
	out := make([]Frac, n)
	for i := range out {
		out[i] = s.MainBeat()
	}
	return out
}

// GroupStarts returns offsets (within a measure) where a beat group begins.
// These are the accented positions for count-in and metronome clicks.
func (s TimeSignature) GroupStarts() []Frac {
	if len(s.Grouping) == 0 {
		return []Frac{Zero}
	}
	out := make([]Frac, 0, len(s.Grouping))
	pos := Zero
	for _, g := range s.Grouping {
		out = append(out, pos)
		pos = pos.Add(s.BeatUnit().MulInt(int64(g)))
	}
	return out
}

// BeatsPerMeasure returns the measure capacity numerator*(1/denominator).
func BeatsPerMeasure(sig TimeSignature) (Frac, error) {
	if err := ValidateSignature(sig); err != nil {
		return Zero, err
	}
	return sig.Capacity(), nil
}
