package commands

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/share"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

// rhythmFlags are the settings flags shared by every command that generates.
type rhythmFlags struct {
	signature   string
	measures    int
	tempo       int
	sound       string
	density     string
	syncopation int
	rest        int
	accent      int
	counting    string
	values      string
	countIn     int
	metronome   bool
	swing       int
	loop        bool
	ensemble    string
	parts       int
	preset      string
	shared      string
	seed        uint64
}

func addRhythmFlags(cmd *cobra.Command) *rhythmFlags {
	f := &rhythmFlags{}
	fs := cmd.Flags()
	fs.StringVarP(&f.signature, "time-signature", "t", "", "time signature, e.g. 6/8 or 7/8:2+2+3")
	fs.IntVarP(&f.measures, "measures", "m", 0, "measure count: 1, 2, 4, 8, 12 or 16")
	fs.IntVar(&f.tempo, "tempo", 0, "tempo in quarter-note BPM")
	fs.StringVar(&f.sound, "sound", "", "sound: "+joinSounds())
	fs.StringVar(&f.density, "density", "", "note density: sparse|medium|dense")
	fs.IntVar(&f.syncopation, "syncopation", 0, "syncopation percent")
	fs.IntVar(&f.rest, "rest", 0, "rest probability percent")
	fs.IntVar(&f.accent, "accent", 0, "accent percent")
	fs.StringVar(&f.counting, "counting", "", "counting system: kodaly|takadimi|gordon|numbers|none")
	fs.StringVar(&f.values, "values", "", "allowed note values as codes or names, e.g. q,e,h")
	fs.IntVar(&f.countIn, "count-in", 0, "count-in measures (0-2)")
	fs.BoolVar(&f.metronome, "metronome", false, "click on every beat")
	fs.IntVar(&f.swing, "swing", 0, "swing percent for off-beat eighths")
	fs.BoolVar(&f.loop, "loop", false, "loop playback")
	fs.StringVar(&f.ensemble, "ensemble", "", "ensemble mode: single|callResponse|layered|bodyPercussion")
	fs.IntVar(&f.parts, "parts", 0, "ensemble part count (2-4)")
	fs.StringVar(&f.preset, "preset", "", "difficulty preset: "+strings.Join(pattern.PresetNames(), "|"))
	fs.StringVar(&f.shared, "share", "", "start from a share query string or token")
	fs.Uint64Var(&f.seed, "seed", 0, "random seed (0 picks one)")
	return f
}

func joinSounds() string {
	opts := pattern.SoundOptions()
	names := make([]string, len(opts))
	for i, s := range opts {
		names[i] = string(s)
	}
	return strings.Join(names, "|")
}

// settings resolves the flags over base: share data first, then the preset,
// then every flag the user set explicitly.
func (f *rhythmFlags) settings(cmd *cobra.Command, base pattern.Settings) (pattern.Settings, error) {
	fs := cmd.Flags()
	s := base.Clone()
	if f.shared != "" {
		decoded, err := decodeShared(f.shared)
		if err != nil {
			return pattern.Settings{}, err
		}
		s = decoded
	}
	if f.preset != "" {
		var err error
		if s, err = pattern.ApplyPreset(s, f.preset); err != nil {
			return pattern.Settings{}, err
		}
	}
	if fs.Changed("time-signature") {
		sig, err := timing.ParseTimeSignature(f.signature)
		if err != nil {
			return pattern.Settings{}, err
		}
		s.TimeSignature = sig
	}
	if fs.Changed("values") {
		values, err := share.DecodeNoteValues(f.values)
		if err != nil {
			return pattern.Settings{}, fmt.Errorf("%w: %v", pattern.ErrInvalidSettings, err)
		}
		s.AllowedValues = values
	}
	ints := []struct {
		flag string
		dst  *int
		val  int
	}{
		{"measures", &s.MeasureCount, f.measures},
		{"tempo", &s.Tempo, f.tempo},
		{"syncopation", &s.SyncopationPercent, f.syncopation},
		{"rest", &s.RestPercent, f.rest},
		{"accent", &s.AccentPercent, f.accent},
		{"count-in", &s.CountInMeasures, f.countIn},
		{"swing", &s.SwingPercent, f.swing},
		{"parts", &s.PartCount, f.parts},
	}
	for _, v := range ints {
		if fs.Changed(v.flag) {
			*v.dst = v.val
		}
	}
	if fs.Changed("sound") {
		s.Sound = pattern.SoundOption(f.sound)
	}
	if fs.Changed("density") {
		s.Density = pattern.Density(f.density)
	}
	if fs.Changed("counting") {
		s.CountingSystem = pattern.CountingSystem(f.counting)
	}
	if fs.Changed("metronome") {
		s.Metronome = f.metronome
	}
	if fs.Changed("loop") {
		s.Loop = f.loop
	}
	if fs.Changed("ensemble") {
		s.Ensemble = pattern.EnsembleMode(f.ensemble)
	}
	if err := s.ValidateWithin(cfg.Tempo.Bounds()); err != nil {
		return pattern.Settings{}, err
	}
	return s, nil
}

// decodeShared accepts a full share URL, a bare query string or a token.
func decodeShared(v string) (pattern.Settings, error) {
	if _, query, ok := strings.Cut(v, "?"); ok {
		return share.Decode(query)
	}
	if strings.Contains(v, "=") {
		return share.Decode(v)
	}
	return share.DecodeToken(v)
}

func (f *rhythmFlags) generator() *pattern.Generator {
	if f.seed == 0 {
		return pattern.NewGenerator()
	}
	return pattern.NewGenerator(pattern.WithRand(rand.New(rand.NewPCG(f.seed, f.seed^0x9e3779b97f4a7c15))))
}

// generated is either a single pattern or an ensemble.
type generated struct {
	settings pattern.Settings
	pattern  *pattern.Pattern
	ensemble *ensemble.Ensemble
}

func (f *rhythmFlags) generate(cmd *cobra.Command) (generated, error) {
	s, err := f.settings(cmd, cfg.Rhythm)
	if err != nil {
		return generated{}, err
	}
	g := f.generator()
	if s.Ensemble == pattern.Single || s.Ensemble == "" {
		p, err := g.GenerateSettings(s)
		if err != nil {
			return generated{}, err
		}
		return generated{settings: s, pattern: p}, nil
	}
	e, err := ensemble.NewGenerator(g).Generate(s, s.Ensemble, s.PartCount)
	if err != nil {
		return generated{}, err
	}
	return generated{settings: s, ensemble: e}, nil
}

func (g generated) signature() timing.TimeSignature {
	if g.pattern != nil {
		return g.pattern.Signature
	}
	return g.ensemble.Parts[0].Pattern.Signature
}
