package pattern

import (
	"errors"
	"fmt"
	"time"

	"github.com/cbegin/rhythmkit-go/internal/timing"
)

var (
	ErrUnsatisfiableMeasure = errors.New("allowed note values cannot fill the measure")
	ErrInvalidSettings      = errors.New("invalid rhythm settings")
)

type EventKind int

const (
	Note EventKind = iota
	Rest
)

func (k EventKind) String() string {
	if k == Rest {
		return "rest"
	}
	return "note"
}

func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *EventKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "note":
		*k = Note
	case "rest":
		*k = Rest
	default:
		return fmt.Errorf("unknown event kind %q", b)
	}
	return nil
}

// Event is one note or rest. Syllable and Beam are filled in by the notation
// adapter; Beam is a 1-based group id within the measure, 0 when unbeamed.
type Event struct {
	Kind     EventKind `json:"kind" yaml:"kind"`
	Value    NoteValue `json:"value" yaml:"value"`
	Accent   bool      `json:"accent,omitempty" yaml:"accent,omitempty"`
	Syllable string    `json:"syllable,omitempty" yaml:"syllable,omitempty"`
	Beam     int       `json:"beam,omitempty" yaml:"beam,omitempty"`
}

func (e Event) Duration() timing.Frac { return e.Value.Duration() }
func (e Event) IsRest() bool          { return e.Kind == Rest }

type Measure struct {
	Number int     `json:"number" yaml:"number"`
	Events []Event `json:"events" yaml:"events"`
}

// Sum is the exact total duration of the measure.
func (m Measure) Sum() timing.Frac {
	total := timing.Zero
	for _, e := range m.Events {
		total = total.Add(e.Duration())
	}
	return total
}

// Pattern is the output of one generate action. Callers treat it as
// immutable; regeneration produces a new Pattern.
type Pattern struct {
	ID        string               `json:"id" yaml:"id"`
	Signature timing.TimeSignature `json:"timeSignature" yaml:"time_signature"`
	Settings  Settings             `json:"settings" yaml:"settings"`
	Measures  []Measure            `json:"measures" yaml:"measures"`
	CreatedAt time.Time            `json:"createdAt" yaml:"created_at"`
}

func (p *Pattern) Tempo() int { return p.Settings.Tempo }

// Flatten returns every event in order.
func (p *Pattern) Flatten() []Event {
	var out []Event
	for _, m := range p.Measures {
		out = append(out, m.Events...)
	}
	return out
}

// TotalDuration is the pattern length in whole notes.
func (p *Pattern) TotalDuration() timing.Frac {
	return p.Signature.Capacity().MulInt(int64(len(p.Measures)))
}

// TotalBeats counts beat units (quarter notes in 4/4, eighths in 6/8).
func (p *Pattern) TotalBeats() timing.Frac {
	return p.TotalDuration().MulInt(int64(p.Signature.Denominator))
}

// Seconds is the playing time of the pattern at its own tempo.
func (p *Pattern) Seconds() float64 {
	return timing.NoteValueToSeconds(p.TotalDuration(), p.Settings.Tempo, p.Signature.Denominator)
}

// Validate checks that every measure sums exactly to the meter's capacity.
func (p *Pattern) Validate() error {
	if err := timing.ValidateSignature(p.Signature); err != nil {
		return err
	}
	capacity := p.Signature.Capacity()
	for _, m := range p.Measures {
		for i, e := range m.Events {
			if !e.Value.Valid() {
				return fmt.Errorf("measure %d event %d: invalid value %d", m.Number, i, int(e.Value))
			}
		}
		if got := m.Sum(); got != capacity {
			return fmt.Errorf("measure %d sums to %v, want %v", m.Number, got, capacity)
		}
	}
	return nil
}
