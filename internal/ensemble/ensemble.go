package ensemble

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

var (
	ErrSingleMode  = errors.New("single mode has no ensemble parts")
	ErrPartIndex   = errors.New("part index out of range")
	ErrUnknownMode = errors.New("unknown ensemble mode")
	ErrPartCount   = errors.New("part count must be 2, 3 or 4")
)

type BodyPart string

const (
	Stomp BodyPart = "stomp"
	Clap  BodyPart = "clap"
	Snap  BodyPart = "snap"
	Pat   BodyPart = "pat"
)

// PartConfig shapes one part relative to the base settings.
type PartConfig struct {
	Label                 string
	BodyPart              BodyPart
	Sound                 pattern.SoundOption
	DensityMultiplier     float64
	SyncopationMultiplier float64
	RestMultiplier        float64
	Preferred             []pattern.NoteValue
}

var bodyOrder = []BodyPart{Stomp, Clap, Snap, Pat}

var bodyConfigs = map[BodyPart]PartConfig{
	Stomp: {
		Label: "Stomp (Feet)", BodyPart: Stomp, Sound: pattern.Drums,
		DensityMultiplier: 0.5, SyncopationMultiplier: 0.3, RestMultiplier: 1.5,
		Preferred: []pattern.NoteValue{pattern.Half, pattern.Quarter, pattern.Whole},
	},
	Clap: {
		Label: "Clap (Hands)", BodyPart: Clap, Sound: pattern.Claps,
		DensityMultiplier: 1.0, SyncopationMultiplier: 0.8, RestMultiplier: 1.0,
		Preferred: []pattern.NoteValue{pattern.Quarter, pattern.Eighth},
	},
	Snap: {
		Label: "Snap (Fingers)", BodyPart: Snap, Sound: pattern.Woodblock,
		DensityMultiplier: 1.2, SyncopationMultiplier: 1.2, RestMultiplier: 0.8,
		Preferred: []pattern.NoteValue{pattern.Eighth, pattern.Sixteenth, pattern.Quarter},
	},
	Pat: {
		Label: "Pat (Thighs)", BodyPart: Pat, Sound: pattern.Snare,
		DensityMultiplier: 0.8, SyncopationMultiplier: 0.6, RestMultiplier: 1.2,
		Preferred: []pattern.NoteValue{pattern.Quarter, pattern.Eighth, pattern.Half},
	},
}

var layeredConfigs = []PartConfig{
	{
		Label: "Part 1 (Foundation)", Sound: pattern.Drums,
		DensityMultiplier: 0.5, SyncopationMultiplier: 0.2, RestMultiplier: 1.3,
		Preferred: []pattern.NoteValue{pattern.Half, pattern.Quarter, pattern.Whole},
	},
	{
		Label: "Part 2 (Mid)", Sound: pattern.Snare,
		DensityMultiplier: 0.8, SyncopationMultiplier: 0.6, RestMultiplier: 1.0,
		Preferred: []pattern.NoteValue{pattern.Quarter, pattern.Eighth},
	},
	{
		Label: "Part 3 (Active)", Sound: pattern.Woodblock,
		DensityMultiplier: 1.2, SyncopationMultiplier: 1.0, RestMultiplier: 0.7,
		Preferred: []pattern.NoteValue{pattern.Eighth, pattern.Sixteenth, pattern.Quarter},
	},
	{
		Label: "Part 4 (Complex)", Sound: pattern.Claps,
		DensityMultiplier: 1.5, SyncopationMultiplier: 1.3, RestMultiplier: 0.5,
		Preferred: []pattern.NoteValue{pattern.Sixteenth, pattern.Eighth},
	},
}

const responseSyncopationBoost = 15

type Part struct {
	ID       string              `json:"id" yaml:"id"`
	Label    string              `json:"label" yaml:"label"`
	Pattern  *pattern.Pattern    `json:"pattern" yaml:"pattern"`
	BodyPart BodyPart            `json:"bodyPart,omitempty" yaml:"body_part,omitempty"`
	Sound    pattern.SoundOption `json:"sound" yaml:"sound"`
	Muted    bool                `json:"muted" yaml:"muted"`
	Soloed   bool                `json:"soloed" yaml:"soloed"`
}

type Ensemble struct {
	Mode     pattern.EnsembleMode `json:"mode" yaml:"mode"`
	Parts    []Part               `json:"parts" yaml:"parts"`
	Settings pattern.Settings     `json:"settings" yaml:"settings"`
}

type Option func(*Generator)

func WithIDFunc(id func() string) Option {
	return func(g *Generator) {
		if id != nil {
			g.newID = id
		}
	}
}

// Generator builds ensembles on top of a pattern generator.
type Generator struct {
	patterns *pattern.Generator
	newID    func() string
}

func NewGenerator(patterns *pattern.Generator, opts ...Option) *Generator {
	if patterns == nil {
		patterns = pattern.NewGenerator()
	}
	g := &Generator{patterns: patterns, newID: uuid.NewString}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds every part for mode. Single mode is not an ensemble and
// returns ErrSingleMode.
func (g *Generator) Generate(settings pattern.Settings, mode pattern.EnsembleMode, partCount int) (*Ensemble, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	var parts []Part
	var err error
	switch mode {
	case pattern.Single:
		return nil, ErrSingleMode
	case pattern.CallResponse:
		parts, err = g.callResponse(settings)
	case pattern.Layered:
		if err := checkPartCount(partCount); err != nil {
			return nil, err
		}
		parts, err = g.fromConfigs(settings, layeredConfigs[:partCount])
	case pattern.BodyPercussion:
		if err := checkPartCount(partCount); err != nil {
			return nil, err
		}
		configs := make([]PartConfig, partCount)
		for i, bp := range bodyOrder[:partCount] {
			configs[i] = bodyConfigs[bp]
		}
		parts, err = g.fromConfigs(settings, configs)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	if err != nil {
		return nil, err
	}
	base := settings.Clone()
	base.Ensemble = mode
	if mode != pattern.CallResponse {
		base.PartCount = partCount
	}
	return &Ensemble{Mode: mode, Parts: parts, Settings: base}, nil
}

func checkPartCount(n int) error {
	if n < 2 || n > 4 {
		return fmt.Errorf("%w: got %d", ErrPartCount, n)
	}
	return nil
}

// callResponse splits the measures in half; the response leans harder on
// syncopation than the call.
func (g *Generator) callResponse(settings pattern.Settings) ([]Part, error) {
	call := settings.Clone()
	call.MeasureCount = halfMeasureCount(settings.MeasureCount)
	response := call.Clone()
	response.SyncopationPercent = clampInt(call.SyncopationPercent+responseSyncopationBoost, 0, 100)

	callPattern, err := g.patterns.GenerateSettings(call)
	if err != nil {
		return nil, err
	}
	responsePattern, err := g.patterns.GenerateSettings(response)
	if err != nil {
		return nil, err
	}
	return []Part{
		{ID: g.newID(), Label: "Call", Pattern: callPattern, Sound: settings.Sound},
		{ID: g.newID(), Label: "Response", Pattern: responsePattern, Sound: settings.Sound},
	}, nil
}

// halfMeasureCount halves n and rounds down to a count the generator accepts.
func halfMeasureCount(n int) int {
	half := max(1, n/2)
	best := 1
	for _, c := range []int{1, 2, 4, 8, 12, 16} {
		if c <= half {
			best = c
		}
	}
	return best
}

func (g *Generator) fromConfigs(settings pattern.Settings, configs []PartConfig) ([]Part, error) {
	parts := make([]Part, 0, len(configs))
	for _, cfg := range configs {
		p, err := g.generatePart(settings, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Label, err)
		}
		parts = append(parts, Part{
			ID:       g.newID(),
			Label:    cfg.Label,
			Pattern:  p,
			BodyPart: cfg.BodyPart,
			Sound:    cfg.Sound,
		})
	}
	return parts, nil
}

// generatePart retries with the full user set when the part's preferred
// subset cannot fill the meter.
func (g *Generator) generatePart(settings pattern.Settings, cfg PartConfig) (*pattern.Pattern, error) {
	s := PartSettings(settings, cfg)
	p, err := g.patterns.GenerateSettings(s)
	if errors.Is(err, pattern.ErrUnsatisfiableMeasure) && !slices.Equal(s.AllowedValues, settings.AllowedValues) {
		s.AllowedValues = slices.Clone(settings.AllowedValues)
		p, err = g.patterns.GenerateSettings(s)
	}
	return p, err
}

// PartSettings derives one part's settings from the base record.
func PartSettings(base pattern.Settings, cfg PartConfig) pattern.Settings {
	s := base.Clone()
	s.AllowedValues = FilterValues(base.AllowedValues, cfg.Preferred)
	s.SyncopationPercent = clampInt(int(math.Round(float64(base.SyncopationPercent)*cfg.SyncopationMultiplier)), 0, 100)
	s.RestPercent = clampInt(int(math.Round(float64(base.RestPercent)*cfg.RestMultiplier)), 0, pattern.MaxRestPercent)
	switch {
	case cfg.DensityMultiplier < 0.7:
		s.Density = pattern.Sparse
	case cfg.DensityMultiplier > 1.2:
		s.Density = pattern.Dense
	default:
		s.Density = pattern.Medium
	}
	if cfg.Sound != "" {
		s.Sound = cfg.Sound
	}
	return s
}

// FilterValues keeps the user's values that the part prefers. With no
// overlap the user's full set wins; with no user set the preferences do.
func FilterValues(allowed, preferred []pattern.NoteValue) []pattern.NoteValue {
	if len(allowed) == 0 {
		return slices.Clone(preferred)
	}
	var out []pattern.NoteValue
	for _, v := range allowed {
		if slices.Contains(preferred, v) {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return slices.Clone(allowed)
	}
	return out
}

// RegeneratePart returns a copy of e with part i freshly generated from the
// settings that produced it.
func (g *Generator) RegeneratePart(e *Ensemble, i int) (*Ensemble, error) {
	if i < 0 || i >= len(e.Parts) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPartIndex, i, len(e.Parts))
	}
	p, err := g.patterns.GenerateSettings(e.Parts[i].Pattern.Settings)
	if err != nil {
		return nil, err
	}
	out := e.clone()
	out.Parts[i].Pattern = p
	return out, nil
}

func (e *Ensemble) clone() *Ensemble {
	out := *e
	out.Parts = slices.Clone(e.Parts)
	out.Settings = e.Settings.Clone()
	return &out
}

func (e *Ensemble) ToggleMute(i int) (*Ensemble, error) {
	if i < 0 || i >= len(e.Parts) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPartIndex, i, len(e.Parts))
	}
	out := e.clone()
	out.Parts[i].Muted = !out.Parts[i].Muted
	return out, nil
}

func (e *Ensemble) ToggleSolo(i int) (*Ensemble, error) {
	if i < 0 || i >= len(e.Parts) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPartIndex, i, len(e.Parts))
	}
	out := e.clone()
	out.Parts[i].Soloed = !out.Parts[i].Soloed
	return out, nil
}

// Audible returns the indices of parts that should sound. Any solo
// overrides mute state.
func (e *Ensemble) Audible() []int {
	var soloed, unmuted []int
	for i, p := range e.Parts {
		if p.Soloed {
			soloed = append(soloed, i)
		}
		if !p.Muted {
			unmuted = append(unmuted, i)
		}
	}
	if len(soloed) > 0 {
		return soloed
	}
	return unmuted
}

// Sequential reports whether parts play one after another.
func (e *Ensemble) Sequential() bool { return e.Mode == pattern.CallResponse }

// Duration is the ensemble length in whole notes: the sum of the parts for
// call and response, the longest part otherwise.
func (e *Ensemble) Duration() timing.Frac {
	total := timing.Zero
	for _, p := range e.Parts {
		d := p.Pattern.TotalDuration()
		if e.Sequential() {
			total = total.Add(d)
		} else if total.Less(d) {
			total = d
		}
	}
	return total
}

// Offset is where part i starts, in whole notes from the ensemble start.
func (e *Ensemble) Offset(i int) timing.Frac {
	if !e.Sequential() {
		return timing.Zero
	}
	off := timing.Zero
	for j := 0; j < i && j < len(e.Parts); j++ {
		off = off.Add(e.Parts[j].Pattern.TotalDuration())
	}
	return off
}

func ModeDisplayName(mode pattern.EnsembleMode) string {
	switch mode {
	case pattern.Single:
		return "Single Part"
	case pattern.CallResponse:
		return "Call & Response"
	case pattern.Layered:
		return "Layered Parts"
	case pattern.BodyPercussion:
		return "Body Percussion"
	}
	return string(mode)
}

func BodyPartName(bp BodyPart) string {
	if cfg, ok := bodyConfigs[bp]; ok {
		return cfg.Label
	}
	return string(bp)
}

func clampInt(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
