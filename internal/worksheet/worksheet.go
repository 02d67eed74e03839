package worksheet

import (
	"math/rand/v2"
	"slices"

	"github.com/cbegin/rhythmkit-go/internal/notation"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

const (
	blankCount       = 2
	minQuizExercises = 4
)

var variantDensity = []pattern.Density{pattern.Sparse, pattern.Medium, pattern.Dense}

// Builder generates the patterns behind a worksheet and hands them to the
// notation layer for layout.
type Builder struct {
	patterns *pattern.Generator
	rng      pattern.Rand
}

func NewBuilder(patterns *pattern.Generator, rng pattern.Rand) *Builder {
	if patterns == nil {
		patterns = pattern.NewGenerator()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Builder{patterns: patterns, rng: rng}
}

// Build produces a printable document for rs in the format ws asks for.
func (b *Builder) Build(rs pattern.Settings, ws notation.WorksheetSettings) (notation.Document, error) {
	if err := ws.Validate(); err != nil {
		return notation.Document{}, err
	}
	if err := rs.Validate(); err != nil {
		return notation.Document{}, err
	}
	var inputs []notation.ExerciseInput
	switch ws.Format {
	case notation.Standard:
		for i := 0; i < ws.Variants; i++ {
			p, err := b.patterns.GenerateSettings(VariantSettings(rs, i))
			if err != nil {
				return notation.Document{}, err
			}
			inputs = append(inputs, notation.ExerciseInput{Pattern: p})
		}
	case notation.BlankCompletion:
		for i := 0; i < ws.Variants; i++ {
			p, err := b.patterns.GenerateSettings(rs)
			if err != nil {
				return notation.Document{}, err
			}
			inputs = append(inputs, notation.ExerciseInput{Pattern: p, Blank: b.pickBlanks(len(p.Measures))})
		}
	case notation.Quiz:
		for i := 0; i < max(minQuizExercises, ws.Variants); i++ {
			p, err := b.patterns.GenerateSettings(rs)
			if err != nil {
				return notation.Document{}, err
			}
			inputs = append(inputs, notation.ExerciseInput{Pattern: p})
		}
	}
	return notation.BuildDocument(ws, rs, inputs)
}

// VariantSettings makes exercise i harder than exercise i-1: more
// syncopation, fewer rests, denser values.
func VariantSettings(rs pattern.Settings, i int) pattern.Settings {
	s := rs.Clone()
	s.SyncopationPercent = min(100, rs.SyncopationPercent+i*15)
	s.RestPercent = max(0, rs.RestPercent-i*5)
	s.Density = variantDensity[min(i, len(variantDensity)-1)]
	return s
}

// pickBlanks chooses up to two interior measures. The first and last
// measures always stay visible.
func (b *Builder) pickBlanks(measures int) []int {
	interior := make([]int, 0, max(0, measures-2))
	for i := 1; i < measures-1; i++ {
		interior = append(interior, i)
	}
	var out []int
	for len(out) < min(blankCount, len(interior)) {
		j := b.rng.IntN(len(interior))
		out = append(out, interior[j])
		interior = slices.Delete(interior, j, j+1)
	}
	slices.Sort(out)
	return out
}
