package lfo

import "math"

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
	Saw
)

// LFO is a per-sample modulation source. Output is in [-depth, +depth]; the
// unit of depth is up to the caller (semitones for vibrato, gain for
// tremolo).
type LFO struct {
	depth  float64
	rateHz float64
	wave   Waveform
	phase  float64
	delay  int
	held   int
}

// Set configures the oscillator. Out-of-range waveforms fall back to Sine.
func (l *LFO) Set(depth, rateHz float64, wave Waveform) {
	if wave < Sine || wave > Saw {
		wave = Sine
	}
	l.depth = depth
	l.rateHz = rateHz
	l.wave = wave
}

// SetDelay keeps the output at zero for the first n samples after Reset, so
// vibrato starts after the attack.
func (l *LFO) SetDelay(samples int) {
	l.delay = max(samples, 0)
}

// Sample advances one sample at sampleRate and returns the modulation value.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	if l.held < l.delay {
		l.held++
		return 0
	}
	var v float64
	switch l.wave {
	case Triangle:
		if l.phase < 0.5 {
			v = 4*l.phase - 1
		} else {
			v = 3 - 4*l.phase
		}
	case Square:
		v = -1
		if l.phase < 0.5 {
			v = 1
		}
	case Saw:
		v = 1 - 2*l.phase
	default:
		v = math.Sin(2 * math.Pi * l.phase)
	}
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

func (l *LFO) Reset() {
	l.phase = 0
	l.held = 0
}
