package notation

import (
	"strconv"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

var kodalyNotes = map[pattern.NoteValue]string{
	pattern.Whole:          "ta-a-a-a",
	pattern.DottedHalf:     "ta-a-a",
	pattern.Half:           "ta-a",
	pattern.DottedQuarter:  "tai",
	pattern.Quarter:        "ta",
	pattern.DottedEighth:   "tim",
	pattern.Eighth:         "ti",
	pattern.Sixteenth:      "ti-ka",
	pattern.TripletQuarter: "tri-o-la",
	pattern.TripletEighth:  "tri",
}

var (
	third     = timing.NewFrac(1, 3)
	twoThirds = timing.NewFrac(2, 3)
	quarterOf = timing.NewFrac(1, 4)
	halfOf    = timing.NewFrac(1, 2)
	threeQtrs = timing.NewFrac(3, 4)
)

// Syllables returns one syllable per event, measure by measure.
func Syllables(p *pattern.Pattern, system pattern.CountingSystem) [][]string {
	out := make([][]string, len(p.Measures))
	for i, m := range p.Measures {
		out[i] = MeasureSyllables(p.Signature, m.Events, system)
	}
	return out
}

// MeasureSyllables labels each event of a measure. Positional systems count
// within the felt beat, so 6/8 is counted in two dotted-quarter beats.
func MeasureSyllables(sig timing.TimeSignature, events []pattern.Event, system pattern.CountingSystem) []string {
	out := make([]string, len(events))
	if system == pattern.NoCount || system == "" {
		return out
	}
	beat := sig.MainBeat()
	pos := timing.Zero
	for i, e := range events {
		out[i] = syllable(e, pos, beat, system)
		pos = pos.Add(e.Duration())
	}
	return out
}

func syllable(e pattern.Event, pos, beat timing.Frac, system pattern.CountingSystem) string {
	if e.Kind == pattern.Rest {
		switch system {
		case pattern.Kodaly:
			if !e.Duration().Less(timing.Half) {
				return "(rest)"
			}
			return "sh"
		case pattern.Takadimi, pattern.Gordon:
			return "(rest)"
		case pattern.Numbers:
			return "—"
		}
		return ""
	}
	// where is the onset's place inside its beat, in [0, 1).
	where := pos.Mod(beat).Div(beat)
	switch system {
	case pattern.Kodaly:
		if s, ok := kodalyNotes[e.Value]; ok {
			return s
		}
		return "ta"
	case pattern.Takadimi:
		switch where {
		case halfOf:
			return "di"
		case quarterOf:
			return "ka"
		case threeQtrs:
			return "mi"
		case third:
			return "ki"
		case twoThirds:
			return "da"
		}
		return "ta"
	case pattern.Gordon:
		switch where {
		case halfOf:
			return "de"
		case quarterOf, threeQtrs:
			return "ta"
		case third:
			return "da"
		case twoThirds:
			return "di"
		}
		return "du"
	case pattern.Numbers:
		switch where {
		case quarterOf:
			return "e"
		case halfOf, third:
			return "&"
		case threeQtrs, twoThirds:
			return "a"
		}
		return strconv.FormatInt(pos.Div(beat).Floor()+1, 10)
	}
	return ""
}

func CountingSystemName(system pattern.CountingSystem) string {
	switch system {
	case pattern.Kodaly:
		return "Kodály"
	case pattern.Takadimi:
		return "Takadimi"
	case pattern.Gordon:
		return "Gordon"
	case pattern.Numbers:
		return "1 e & a"
	case pattern.NoCount:
		return "None"
	}
	return string(system)
}

func CountingSystemDescription(system pattern.CountingSystem) string {
	switch system {
	case pattern.Kodaly:
		return "ta, ti-ti, ta-a (Zoltán Kodály method)"
	case pattern.Takadimi:
		return "ta, di, ka, mi (beat-function based)"
	case pattern.Gordon:
		return "du, de, ta (Edwin Gordon method)"
	case pattern.Numbers:
		return "1, e, &, a (traditional counting)"
	case pattern.NoCount:
		return "No syllables displayed"
	}
	return ""
}
