package pattern

import (
	"fmt"
	"slices"

	"github.com/cbegin/rhythmkit-go/internal/timing"
)

// Slot is one decision point inside a measure. Candidates are the allowed
// values, longest first, that fit the remaining capacity and leave a
// remainder the allowed set can still fill.
type Slot struct {
	Position   timing.Frac
	Remaining  timing.Frac
	MainBeat   timing.Frac
	Candidates []NoteValue
	// Fallback is the largest allowed value not longer than Remaining, or -1.
	Fallback NoteValue
}

// OnBeat reports whether the slot starts on a main-beat boundary.
func (s Slot) OnBeat() bool {
	return s.MainBeat.Positive() && s.Position.Mod(s.MainBeat).IsZero()
}

// Syncopating returns the candidates that push rhythmic weight off the beat.
// On a beat those are values that leave the next onset off the beat; off a
// beat, values that tie over the next main-beat boundary.
func (s Slot) Syncopating() []NoteValue {
	if !s.MainBeat.Positive() {
		return nil
	}
	var out []NoteValue
	if s.OnBeat() {
		for _, v := range s.Candidates {
			if !v.Duration().Mod(s.MainBeat).IsZero() {
				out = append(out, v)
			}
		}
		return out
	}
	boundary := s.Position.Sub(s.Position.Mod(s.MainBeat)).Add(s.MainBeat)
	for _, v := range s.Candidates {
		if boundary.Less(s.Position.Add(v.Duration())) {
			out = append(out, v)
		}
	}
	return out
}

// DecideSlot makes every random choice for one slot, in a fixed order: the
// syncopation draw, the value pick, the rest draw, then the accent draw for
// notes. Draws set to 0% or 100% consume nothing from r.
func DecideSlot(r Rand, slot Slot, s Settings) (Event, error) {
	var value NoteValue
	if len(slot.Candidates) == 0 {
		if slot.Fallback < 0 {
			return Event{}, fmt.Errorf("%w: nothing fits %v at %v", ErrUnsatisfiableMeasure, slot.Remaining, slot.Position)
		}
		value = slot.Fallback
	} else {
		pool := slot.Candidates
		if chance(r, s.SyncopationPercent) {
			if off := slot.Syncopating(); len(off) > 0 {
				pool = off
			}
		}
		value = PickByDensity(r, pool, s.Density)
	}
	e := Event{Kind: Note, Value: value}
	if chance(r, s.RestPercent) {
		e.Kind = Rest
	} else if chance(r, s.AccentPercent) {
		e.Accent = true
	}
	return e, nil
}

// PickByDensity draws one value. Sparse weights long values higher, dense
// weights short values higher, both linearly by rank; medium is uniform.
func PickByDensity(r Rand, values []NoteValue, density Density) NoteValue {
	if len(values) == 1 {
		return values[0]
	}
	if density != Sparse && density != Dense {
		return values[r.IntN(len(values))]
	}
	ranked := slices.Clone(values)
	slices.SortStableFunc(ranked, func(a, b NoteValue) int {
		c := b.Duration().Cmp(a.Duration())
		if density == Dense {
			return -c
		}
		return c
	})
	n := len(ranked)
	total := n * (n + 1) / 2
	x := r.Float64() * float64(total)
	for i, v := range ranked {
		x -= float64(n - i)
		if x < 0 {
			return v
		}
	}
	return ranked[n-1]
}

func chance(r Rand, percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	return r.Float64()*100 < float64(percent)
}
