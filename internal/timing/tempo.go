package timing

import "fmt"

const (
	DefaultMinBPM = 40
	DefaultMaxBPM = 208
)

type TempoBounds struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

func DefaultTempoBounds() TempoBounds {
	return TempoBounds{Min: DefaultMinBPM, Max: DefaultMaxBPM}
}

// Validate rejects a tempo outside the bounds. Tempos are never clamped here.
func (b TempoBounds) Validate(bpm int) error {
	if bpm < b.Min || bpm > b.Max {
		return fmt.Errorf("%w: %d BPM outside [%d, %d]", ErrInvalidTempo, bpm, b.Min, b.Max)
	}
	return nil
}

// Clamp is for display paths such as tap tempo, where an estimate outside the
// range is pulled to the nearest bound.
func (b TempoBounds) Clamp(bpm int) int {
	if bpm < b.Min {
		return b.Min
	}
	if bpm > b.Max {
		return b.Max
	}
	return bpm
}

// SecondsPerBeat returns the length of one beat-unit note: 60/bpm * 4/beatUnit.
// bpm counts quarter notes per minute.
func SecondsPerBeat(bpm int, beatUnit int) float64 {
	if bpm <= 0 || beatUnit <= 0 {
		return 0
	}
	return 60.0 / float64(bpm) * (4.0 / float64(beatUnit))
}

// NoteValueToSeconds converts an exact duration to seconds. This is the only
// place musical time becomes floating point.
func NoteValueToSeconds(value Frac, bpm int, beatUnit int) float64 {
	if beatUnit <= 0 {
		return 0
	}
	beats := value.MulInt(int64(beatUnit))
	return beats.Float64() * SecondsPerBeat(bpm, beatUnit)
}

// BeatsToSeconds converts quarter-note beats to seconds.
func BeatsToSeconds(beats float64, bpm int) float64 {
	if bpm <= 0 {
		return 0
	}
	return beats * 60.0 / float64(bpm)
}

// SecondsToBeats converts seconds to quarter-note beats.
func SecondsToBeats(seconds float64, bpm int) float64 {
	return seconds * float64(bpm) / 60.0
}
