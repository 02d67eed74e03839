package scheduler

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

// Source tells what produced a scheduled sound.
type Source int

const (
	SourceNote Source = iota
	SourceMetronome
	SourceCountIn
)

func (s Source) String() string {
	switch s {
	case SourceNote:
		return "note"
	case SourceMetronome:
		return "metronome"
	case SourceCountIn:
		return "countIn"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

const (
	accentEmphasis     = 1.0
	noteEmphasis       = 0.7
	downbeatEmphasis   = 1.0
	groupEmphasis      = 0.75
	clickEmphasis      = 0.5
	swingScale         = 0.33
	maxCountInMeasures = 2
)

var ErrEmptyPattern = errors.New("pattern has no measures")

// ScheduledSound is one sound handed to the sink. At is in audio-clock
// seconds once a session has anchored it, and relative to the start of the
// schedule before that.
type ScheduledSound struct {
	At       float64
	Kind     pattern.SoundOption
	Emphasis float64
	Source   Source
	Measure  int
	Index    int
	Missed   bool

	// Length is the written note length in seconds, zero for clicks.
	Length float64
}

// PlaybackOptions shape how a pattern becomes sounds. Zero Tempo and empty
// Sound fall back to the pattern's own settings.
type PlaybackOptions struct {
	Tempo           int
	Sound           pattern.SoundOption
	ClickSound      pattern.SoundOption
	CountInMeasures int
	Metronome       bool
	SwingPercent    int
	Loop            bool
	// Passes limits a looping schedule to that many passes; 0 loops until
	// stopped.
	Passes          int
}

// OptionsFromSettings copies the playback fields of s.
func OptionsFromSettings(s pattern.Settings) PlaybackOptions {
	return PlaybackOptions{
		Tempo:           s.Tempo,
		Sound:           s.Sound,
		ClickSound:      pattern.Metronome,
		CountInMeasures: s.CountInMeasures,
		Metronome:       s.Metronome,
		SwingPercent:    s.SwingPercent,
		Loop:            s.Loop,
	}
}

// Schedule is a pattern resolved to relative times. Sounds holds the first
// pass including any count-in; later loop passes repeat Body every Cycle
// seconds.
type Schedule struct {
	Sounds  []ScheduledSound
	CountIn float64
	Cycle   float64
	Loop    bool
	Passes  int
	Tempo   int
}

// Body returns the sounds of one pass without the count-in, relative to the
// start of the pass.
func (s Schedule) Body() []ScheduledSound {
	out := make([]ScheduledSound, 0, len(s.Sounds))
	for _, snd := range s.Sounds {
		if snd.Source == SourceCountIn {
			continue
		}
		snd.At -= s.CountIn
		out = append(out, snd)
	}
	return out
}

// Length is the time from the first count-in click to the end of the first
// pass.
func (s Schedule) Length() float64 { return s.CountIn + s.Cycle }

type track struct {
	pattern *pattern.Pattern
	offset  timing.Frac
	sound   pattern.SoundOption
}

// Build resolves p into a relative schedule, checking the tempo against the
// default bounds.
func Build(p *pattern.Pattern, opts PlaybackOptions) (Schedule, error) {
	return buildPattern(p, opts, timing.DefaultTempoBounds())
}

// BuildEnsemble resolves the audible parts of e into one schedule. Parts
// sharing a time keep part order.
func BuildEnsemble(e *ensemble.Ensemble, opts PlaybackOptions) (Schedule, error) {
	return buildEnsemble(e, opts, timing.DefaultTempoBounds())
}

func buildPattern(p *pattern.Pattern, opts PlaybackOptions, bounds timing.TempoBounds) (Schedule, error) {
	if p == nil || len(p.Measures) == 0 {
		return Schedule{}, ErrEmptyPattern
	}
	if err := p.Validate(); err != nil {
		return Schedule{}, err
	}
	if opts.Tempo == 0 {
		opts.Tempo = p.Tempo()
	}
	if opts.Sound == "" {
		opts.Sound = p.Settings.Sound
	}
	tracks := []track{{pattern: p, offset: timing.Zero, sound: opts.Sound}}
	return build(p.Signature, tracks, p.TotalDuration(), opts, bounds)
}

func buildEnsemble(e *ensemble.Ensemble, opts PlaybackOptions, bounds timing.TempoBounds) (Schedule, error) {
	if e == nil || len(e.Parts) == 0 || e.Parts[0].Pattern == nil {
		return Schedule{}, ErrEmptyPattern
	}
	sig := e.Parts[0].Pattern.Signature
	if opts.Tempo == 0 {
		opts.Tempo = e.Settings.Tempo
	}
	var tracks []track
	for _, i := range e.Audible() {
		part := e.Parts[i]
		if part.Pattern == nil {
			continue
		}
		if err := part.Pattern.Validate(); err != nil {
			return Schedule{}, fmt.Errorf("part %d: %w", i+1, err)
		}
		if !part.Pattern.Signature.Equal(sig) {
			return Schedule{}, fmt.Errorf("%w: part %d is in %v, ensemble is in %v",
				timing.ErrInvalidTimeSignature, i+1, part.Pattern.Signature, sig)
		}
		sound := part.Sound
		if sound == "" {
			sound = opts.Sound
		}
		tracks = append(tracks, track{pattern: part.Pattern, offset: e.Offset(i), sound: sound})
	}
	return build(sig, tracks, e.Duration(), opts, bounds)
}

func build(sig timing.TimeSignature, tracks []track, length timing.Frac, opts PlaybackOptions, bounds timing.TempoBounds) (Schedule, error) {
	if err := timing.ValidateSignature(sig); err != nil {
		return Schedule{}, err
	}
	if err := bounds.Validate(opts.Tempo); err != nil {
		return Schedule{}, err
	}
	if opts.CountInMeasures < 0 || opts.CountInMeasures > maxCountInMeasures {
		return Schedule{}, fmt.Errorf("%w: count-in %d not in [0, %d]", pattern.ErrInvalidSettings, opts.CountInMeasures, maxCountInMeasures)
	}
	if opts.SwingPercent < 0 || opts.SwingPercent > 100 {
		return Schedule{}, fmt.Errorf("%w: swing %d not in [0, 100]", pattern.ErrInvalidSettings, opts.SwingPercent)
	}
	click := opts.ClickSound
	if click == "" {
		click = pattern.Metronome
	}
	for _, t := range tracks {
		if !t.sound.Valid() {
			return Schedule{}, fmt.Errorf("%w: unknown sound %q", pattern.ErrInvalidSettings, t.sound)
		}
	}

	seconds := func(f timing.Frac) float64 {
		return timing.NoteValueToSeconds(f, opts.Tempo, sig.Denominator)
	}
	capacity := sig.Capacity()
	beat := sig.MainBeat()
	countInLen := capacity.MulInt(int64(opts.CountInMeasures))
	countIn := seconds(countInLen)

	var sounds []ScheduledSound
	for m := 0; m < opts.CountInMeasures; m++ {
		for b := 0; b < sig.BeatCount(); b++ {
			emphasis := clickEmphasis
			if b == 0 {
				emphasis = downbeatEmphasis
			}
			at := capacity.MulInt(int64(m)).Add(beat.MulInt(int64(b)))
			sounds = append(sounds, ScheduledSound{
				At:       seconds(at),
				Kind:     click,
				Emphasis: emphasis,
				Source:   SourceCountIn,
				Measure:  m + 1,
				Index:    b,
			})
		}
	}

	var body []ScheduledSound
	if opts.Metronome {
		body = append(body, clicks(sig, length, click, seconds)...)
	}
	swingDelay := 0.0
	// Only quarter-beat meters have off-beat eighths to swing.
	if opts.SwingPercent > 0 && !sig.Compound() && sig.MainBeat().Cmp(timing.Quarter) == 0 {
		swingDelay = timing.SecondsPerBeat(opts.Tempo, 4) * 0.5 * float64(opts.SwingPercent) / 100 * swingScale
	}
	for _, t := range tracks {
		pos := t.offset
		for _, m := range t.pattern.Measures {
			for i, ev := range m.Events {
				at := pos
				pos = pos.Add(ev.Duration())
				if ev.IsRest() {
					continue
				}
				sec := seconds(at)
				if swingDelay > 0 && at.Mod(timing.Quarter) == timing.Eighth {
					sec += swingDelay
				}
				emphasis := noteEmphasis
				if ev.Accent {
					emphasis = accentEmphasis
				}
				body = append(body, ScheduledSound{
					At:       sec,
					Kind:     t.sound,
					Emphasis: emphasis,
					Source:   SourceNote,
					Measure:  m.Number,
					Index:    i,
					Length:   seconds(ev.Duration()),
				})
			}
		}
	}
	slices.SortStableFunc(body, func(a, b ScheduledSound) int { return cmp.Compare(a.At, b.At) })
	for i := range body {
		body[i].At += countIn
	}

	return Schedule{
		Sounds:  append(sounds, body...),
		CountIn: countIn,
		Cycle:   seconds(length),
		Loop:    opts.Loop,
		Passes:  max(opts.Passes, 0),
		Tempo:   opts.Tempo,
	}, nil
}

// clicks places a metronome click on every main beat of length. Measure
// downbeats and the starts of irregular beat groups are stressed.
func clicks(sig timing.TimeSignature, length timing.Frac, kind pattern.SoundOption, seconds func(timing.Frac) float64) []ScheduledSound {
	capacity := sig.Capacity()
	starts := sig.GroupStarts()
	var out []ScheduledSound
	index := 0
	for pos := timing.Zero; pos.Less(length); pos = pos.Add(sig.MainBeat()) {
		inMeasure := pos.Mod(capacity)
		if inMeasure.IsZero() {
			index = 0
		}
		emphasis := clickEmphasis
		switch {
		case inMeasure.IsZero():
			emphasis = downbeatEmphasis
		case slices.Contains(starts, inMeasure):
			emphasis = groupEmphasis
		}
		out = append(out, ScheduledSound{
			At:       seconds(pos),
			Kind:     kind,
			Emphasis: emphasis,
			Source:   SourceMetronome,
			Measure:  int(pos.Div(capacity).Floor()) + 1,
			Index:    index,
		})
		index++
	}
	return out
}
