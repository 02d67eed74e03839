package pattern

import (
	"fmt"
	"slices"
	"sort"
)

type preset struct {
	allowed     []NoteValue
	syncopation int
	rest        int
	accent      int
	density     Density
}

var presets = map[string]preset{
	"beginner": {
		allowed:     []NoteValue{Half, Quarter},
		syncopation: 0,
		rest:        10,
		density:     Sparse,
	},
	"intermediate": {
		allowed:     []NoteValue{Half, Quarter, Eighth},
		syncopation: 25,
		rest:        15,
		density:     Medium,
	},
	"advanced": {
		allowed:     []NoteValue{Half, Quarter, Eighth, Sixteenth, TripletQuarter, TripletEighth},
		syncopation: 40,
		rest:        20,
		accent:      30,
		density:     Dense,
	},
}

// PresetNames lists the difficulty presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset applies a difficulty preset over the defaults.
func Preset(name string) (Settings, error) {
	return ApplyPreset(DefaultSettings(), name)
}

// ApplyPreset overwrites the note-value set, syncopation, rest, accent and
// density of base. Other fields are left alone.
func ApplyPreset(base Settings, name string) (Settings, error) {
	p, ok := presets[name]
	if !ok {
		return Settings{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidSettings, name)
	}
	out := base.Clone()
	out.AllowedValues = slices.Clone(p.allowed)
	out.SyncopationPercent = p.syncopation
	out.RestPercent = p.rest
	out.AccentPercent = p.accent
	out.Density = p.density
	return out, nil
}

// PresetValues returns the allowed note values of a preset.
func PresetValues(name string) ([]NoteValue, bool) {
	p, ok := presets[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(p.allowed), true
}
