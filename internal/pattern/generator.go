package pattern

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/cbegin/rhythmkit-go/internal/timing"
)

// Rand is the randomness a generator draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

type GeneratorOption func(*Generator)

func WithRand(r Rand) GeneratorOption {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func WithIDFunc(id func() string) GeneratorOption {
	return func(g *Generator) {
		if id != nil {
			g.newID = id
		}
	}
}

// Generator produces patterns. A Generator is not safe for concurrent use
// unless its Rand is.
type Generator struct {
	rng   Rand
	now   func() time.Time
	newID func() string
}

func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{
		rng:   globalRand{},
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

var defaultGenerator = NewGenerator()

// Generate builds a pattern with the package default generator.
func Generate(sig timing.TimeSignature, measureCount int, settings Settings) (*Pattern, error) {
	return defaultGenerator.Generate(sig, measureCount, settings)
}

// GenerateSettings uses the signature and measure count carried by settings.
func (g *Generator) GenerateSettings(settings Settings) (*Pattern, error) {
	return g.Generate(settings.TimeSignature, settings.MeasureCount, settings)
}

// Generate fills measureCount measures of sig. It returns an error and no
// pattern if the settings are out of range or the allowed values cannot fill
// a measure exactly.
func (g *Generator) Generate(sig timing.TimeSignature, measureCount int, settings Settings) (*Pattern, error) {
	s := settings.Clone()
	s.TimeSignature = sig
	s.MeasureCount = measureCount
	if err := s.Validate(); err != nil {
		return nil, err
	}
	plan, err := newMeasurePlan(sig, s.AllowedValues)
	if err != nil {
		return nil, err
	}
	p := &Pattern{
		ID:        g.newID(),
		Signature: sig,
		Settings:  s,
		Measures:  make([]Measure, 0, measureCount),
		CreatedAt: g.now(),
	}
	for i := 0; i < measureCount; i++ {
		events, err := g.fillMeasure(plan, s)
		if err != nil {
			return nil, err
		}
		p.Measures = append(p.Measures, Measure{Number: i + 1, Events: events})
	}
	return p, nil
}

// GenerateMeasure fills a single measure. Exposed for worksheet blanks and
// tests that exercise one measure at a time.
func (g *Generator) GenerateMeasure(sig timing.TimeSignature, settings Settings) ([]Event, error) {
	plan, err := newMeasurePlan(sig, settings.AllowedValues)
	if err != nil {
		return nil, err
	}
	return g.fillMeasure(plan, settings)
}

func (g *Generator) fillMeasure(plan *measurePlan, s Settings) ([]Event, error) {
	var events []Event
	pos := timing.Zero
	for pos != plan.capacity {
		slot := plan.slot(pos)
		e, err := DecideSlot(g.rng, slot, s)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
		pos = pos.Add(e.Duration())
	}
	return events, nil
}

// measurePlan holds the tiling table for one meter and value set. Durations
// are measured in grid units of 1/lcm of every denominator involved.
type measurePlan struct {
	sig      timing.TimeSignature
	capacity timing.Frac
	grid     int64
	values   []NoteValue
	units    []int64
	reach    []bool
}

func newMeasurePlan(sig timing.TimeSignature, allowed []NoteValue) (*measurePlan, error) {
	if err := timing.ValidateSignature(sig); err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, fmt.Errorf("%w: no allowed note values", ErrInvalidSettings)
	}
	values := slices.Clone(allowed)
	slices.SortFunc(values, func(a, b NoteValue) int {
		return b.Duration().Cmp(a.Duration())
	})
	values = slices.Compact(values)

	capacity := sig.Capacity()
	grid := capacity.Den
	for _, v := range values {
		grid = timing.LCM(grid, v.Duration().Den)
	}
	units := make([]int64, len(values))
	for i, v := range values {
		d := v.Duration()
		units[i] = d.Num * (grid / d.Den)
	}
	total := capacity.Num * (grid / capacity.Den)
	reach := make([]bool, total+1)
	reach[0] = true
	for r := int64(1); r <= total; r++ {
		for _, u := range units {
			if u <= r && reach[r-u] {
				reach[r] = true
				break
			}
		}
	}
	if !reach[total] {
		return nil, fmt.Errorf("%w: %v cannot be tiled by %v", ErrUnsatisfiableMeasure, sig, values)
	}
	return &measurePlan{
		sig:      sig,
		capacity: capacity,
		grid:     grid,
		values:   values,
		units:    units,
		reach:    reach,
	}, nil
}

func (p *measurePlan) toUnits(f timing.Frac) int64 {
	return f.Num * (p.grid / f.Den)
}

// slot describes the decision point at pos.
func (p *measurePlan) slot(pos timing.Frac) Slot {
	remaining := p.capacity.Sub(pos)
	r := p.toUnits(remaining)
	var candidates []NoteValue
	var largest NoteValue = -1
	for i, v := range p.values {
		if p.units[i] > r {
			continue
		}
		if largest < 0 {
			largest = v
		}
		if p.reach[r-p.units[i]] {
			candidates = append(candidates, v)
		}
	}
	return Slot{
		Position:   pos,
		Remaining:  remaining,
		MainBeat:   p.sig.MainBeat(),
		Candidates: candidates,
		Fallback:   largest,
	}
}
