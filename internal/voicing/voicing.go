package voicing

import (
	"slices"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

// Wave selects the oscillator shape of a synthesized voice.
type Wave int

const (
	Pulse Wave = iota
	Square
	Triangle
	Noise
)

func (w Wave) String() string {
	switch w {
	case Pulse:
		return "pulse"
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	case Noise:
		return "noise"
	}
	return "unknown"
}

// AccentThreshold is the emphasis at or above which the accent pitch is used.
const AccentThreshold = 0.95

// tonalHold is the share of the written note length a tonal voice sustains.
const tonalHold = 0.9

// PercussionChannel is the General MIDI drum channel (10, zero based 9).
const PercussionChannel = 9

// Voicing describes how one sound option is played.
type Voicing struct {
	Wave            Wave
	Frequency       float64
	AccentFrequency float64
	Duration        float64
	Tonal           bool
	Vibrato         float64
	VibratoHz       float64

	// General MIDI mapping. Percussive voices use Key on the drum channel;
	// tonal voices play Key with Program on a melodic channel.
	Key     uint8
	Program uint8
}

var table = map[pattern.SoundOption]Voicing{
	pattern.Woodblock: {Wave: Triangle, Frequency: 800, AccentFrequency: 1000, Duration: 0.08, Key: 76},
	pattern.Drums:     {Wave: Triangle, Frequency: 200, AccentFrequency: 250, Duration: 0.15, Key: 36},
	pattern.Claps:     {Wave: Noise, Frequency: 1200, AccentFrequency: 1500, Duration: 0.05, Key: 39},
	pattern.Piano:     {Wave: Pulse, Frequency: 440, AccentFrequency: 440, Duration: 0.3, Tonal: true, Key: 69, Program: 0},
	pattern.Metronome: {Wave: Pulse, Frequency: 1000, AccentFrequency: 1200, Duration: 0.05, Key: 37},
	pattern.Snare:     {Wave: Noise, Frequency: 1800, AccentFrequency: 2200, Duration: 0.12, Key: 38},
	pattern.Clarinet: {Wave: Square, Frequency: 294, AccentFrequency: 294, Duration: 0.35, Tonal: true,
		Vibrato: 0.15, VibratoHz: 5.5, Key: 62, Program: 71},
}

// Tone is one resolved sound ready for an engine.
type Tone struct {
	Sound     pattern.SoundOption
	Wave      Wave
	Frequency float64
	Velocity  float64
	Duration  float64
	Vibrato   float64
	VibratoHz float64
	Key       uint8
	Program   uint8
	Tonal     bool
}

func Lookup(kind pattern.SoundOption) (Voicing, bool) {
	v, ok := table[kind]
	return v, ok
}

// Known lists the sound options that have a voicing, in display order.
func Known() []pattern.SoundOption {
	var out []pattern.SoundOption
	for _, s := range pattern.SoundOptions() {
		if _, ok := table[s]; ok {
			out = append(out, s)
		}
	}
	return slices.Clip(out)
}

// For resolves kind at the given emphasis. length is the written note length
// in seconds; tonal voices hold for most of it, percussive voices ignore it.
func For(kind pattern.SoundOption, emphasis float64, length float64) (Tone, bool) {
	v, ok := table[kind]
	if !ok {
		return Tone{}, false
	}
	freq := v.Frequency
	if emphasis >= AccentThreshold {
		freq = v.AccentFrequency
	}
	dur := v.Duration
	if v.Tonal && length > 0 {
		dur = max(v.Duration, length*tonalHold)
	}
	return Tone{
		Sound:     kind,
		Wave:      v.Wave,
		Frequency: freq,
		Velocity:  min(max(emphasis, 0), 1),
		Duration:  dur,
		Vibrato:   v.Vibrato,
		VibratoHz: v.VibratoHz,
		Key:       v.Key,
		Program:   v.Program,
		Tonal:     v.Tonal,
	}, true
}

// MIDIVelocity maps emphasis onto 1..127.
func MIDIVelocity(emphasis float64) uint8 {
	v := int(min(max(emphasis, 0), 1)*126) + 1
	return uint8(v)
}
