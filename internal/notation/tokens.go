package notation

import (
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

// RenderToken is everything a drawing surface needs for one note or rest.
// Beam is the 0-based beam group within the measure, -1 when unbeamed.
type RenderToken struct {
	Measure       int               `json:"measure" yaml:"measure"`
	Index         int               `json:"index" yaml:"index"`
	Kind          pattern.EventKind `json:"kind" yaml:"kind"`
	Value         pattern.NoteValue `json:"value" yaml:"value"`
	DurationClass string            `json:"durationClass" yaml:"duration_class"`
	Dots          int               `json:"dots,omitempty" yaml:"dots,omitempty"`
	Tuplet        bool              `json:"tuplet,omitempty" yaml:"tuplet,omitempty"`
	Offset        timing.Frac       `json:"offset" yaml:"offset"`
	Beam          int               `json:"beam" yaml:"beam"`
	BeamStart     bool              `json:"beamStart,omitempty" yaml:"beam_start,omitempty"`
	BeamEnd       bool              `json:"beamEnd,omitempty" yaml:"beam_end,omitempty"`
	Syllable      string            `json:"syllable,omitempty" yaml:"syllable,omitempty"`
	Accent        bool              `json:"accent,omitempty" yaml:"accent,omitempty"`
}

// Beamed reports whether the token belongs to a beam group.
func (t RenderToken) Beamed() bool { return t.Beam >= 0 }

// ToRenderTokens converts p into drawing tokens with beam groups and the
// syllables of the pattern's counting system.
func ToRenderTokens(p *pattern.Pattern) ([]RenderToken, error) {
	return ToRenderTokensWith(p, p.Settings.CountingSystem)
}

// ToRenderTokensWith is ToRenderTokens with an explicit counting system.
func ToRenderTokensWith(p *pattern.Pattern, system pattern.CountingSystem) ([]RenderToken, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var out []RenderToken
	for _, m := range p.Measures {
		out = append(out, MeasureTokens(p.Signature, m, system)...)
	}
	return out, nil
}

// MeasureTokens tokenizes one measure. The measure need not be full.
func MeasureTokens(sig timing.TimeSignature, m pattern.Measure, system pattern.CountingSystem) []RenderToken {
	beams := BeamGroups(sig, m.Events)
	syllables := MeasureSyllables(sig, m.Events, system)
	tokens := make([]RenderToken, len(m.Events))
	pos := timing.Zero
	for i, e := range m.Events {
		tokens[i] = RenderToken{
			Measure:       m.Number,
			Index:         i,
			Kind:          e.Kind,
			Value:         e.Value,
			DurationClass: e.Value.Glyph(),
			Dots:          e.Value.Dots(),
			Tuplet:        e.Value.Tuplet(),
			Offset:        pos,
			Beam:          beams[i],
			Syllable:      syllables[i],
			Accent:        e.Accent && e.Kind == pattern.Note,
		}
		pos = pos.Add(e.Duration())
	}
	for i := range tokens {
		if !tokens[i].Beamed() {
			continue
		}
		tokens[i].BeamStart = i == 0 || tokens[i-1].Beam != tokens[i].Beam
		tokens[i].BeamEnd = i == len(tokens)-1 || tokens[i+1].Beam != tokens[i].Beam
	}
	return tokens
}

// BeamGroups assigns each event a beam group id, or -1. The measure is cut
// into main-beat cells (dotted cells in compound meter). Consecutive flagged
// notes starting in the same cell share a group; a rest or an unflagged note
// ends the group. A lone flagged note is not beamed.
func BeamGroups(sig timing.TimeSignature, events []pattern.Event) []int {
	out := make([]int, len(events))
	for i := range out {
		out[i] = -1
	}
	cell := sig.MainBeat()
	next := 0
	runStart := -1
	var runCell int64
	flush := func(end int) {
		if runStart >= 0 && end-runStart >= 2 {
			for j := runStart; j < end; j++ {
				out[j] = next
			}
			next++
		}
		runStart = -1
	}
	pos := timing.Zero
	for i, e := range events {
		c := pos.Div(cell).Floor()
		switch {
		case !beamable(e):
			flush(i)
		case runStart >= 0 && c == runCell:
		default:
			flush(i)
			runStart, runCell = i, c
		}
		pos = pos.Add(e.Duration())
	}
	flush(len(events))
	return out
}

// beamable notes carry a flag: eighths, sixteenths and their dotted or
// triplet forms.
func beamable(e pattern.Event) bool {
	if e.Kind != pattern.Note {
		return false
	}
	g := e.Value.Glyph()
	return g == "8" || g == "16"
}

// Annotate returns a copy of p with syllables and 1-based beam ids written
// into each event.
func Annotate(p *pattern.Pattern, system pattern.CountingSystem) *pattern.Pattern {
	out := *p
	out.Measures = make([]pattern.Measure, len(p.Measures))
	for mi, m := range p.Measures {
		events := make([]pattern.Event, len(m.Events))
		copy(events, m.Events)
		beams := BeamGroups(p.Signature, events)
		syllables := MeasureSyllables(p.Signature, events, system)
		for i := range events {
			events[i].Beam = beams[i] + 1
			events[i].Syllable = syllables[i]
		}
		out.Measures[mi] = pattern.Measure{Number: m.Number, Events: events}
	}
	return &out
}
