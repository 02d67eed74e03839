package pattern

import (
	"fmt"
	"slices"
	"strings"

	"github.com/cbegin/rhythmkit-go/internal/timing"
)

type Density string

const (
	Sparse Density = "sparse"
	Medium Density = "medium"
	Dense  Density = "dense"
)

type CountingSystem string

const (
	Kodaly   CountingSystem = "kodaly"
	Takadimi CountingSystem = "takadimi"
	Gordon   CountingSystem = "gordon"
	Numbers  CountingSystem = "numbers"
	NoCount  CountingSystem = "none"
)

// SoundOption names a voice the output side knows how to play.
type SoundOption string

const (
	Drums     SoundOption = "drums"
	Woodblock SoundOption = "woodblock"
	Claps     SoundOption = "claps"
	Piano     SoundOption = "piano"
	Metronome SoundOption = "metronome"
	Snare     SoundOption = "snare"
	Clarinet  SoundOption = "clarinet"
)

var soundOptions = []SoundOption{Drums, Woodblock, Claps, Piano, Metronome, Snare, Clarinet}

func SoundOptions() []SoundOption { return slices.Clone(soundOptions) }

func (s SoundOption) Valid() bool { return slices.Contains(soundOptions, s) }

type EnsembleMode string

const (
	Single         EnsembleMode = "single"
	CallResponse   EnsembleMode = "callResponse"
	Layered        EnsembleMode = "layered"
	BodyPercussion EnsembleMode = "bodyPercussion"
)

var (
	validMeasureCounts = []int{1, 2, 4, 8, 12, 16}
	validPartCounts    = []int{2, 3, 4}
)

const MaxRestPercent = 50

// Settings is the flat configuration record behind one generate action.
type Settings struct {
	TimeSignature      timing.TimeSignature `json:"timeSignature" yaml:"time_signature"`
	MeasureCount       int                  `json:"measureCount" yaml:"measure_count"`
	Tempo              int                  `json:"tempo" yaml:"tempo"`
	Sound              SoundOption          `json:"sound" yaml:"sound"`
	Density            Density              `json:"density" yaml:"density"`
	SyncopationPercent int                  `json:"syncopationPercent" yaml:"syncopation_percent"`
	RestPercent        int                  `json:"restPercent" yaml:"rest_percent"`
	AccentPercent      int                  `json:"accentPercent" yaml:"accent_percent"`
	CountingSystem     CountingSystem       `json:"countingSystem" yaml:"counting_system"`
	AllowedValues      []NoteValue          `json:"allowedValues" yaml:"allowed_values"`
	CountInMeasures    int                  `json:"countInMeasures" yaml:"count_in_measures"`
	Metronome          bool                 `json:"metronome" yaml:"metronome"`
	SwingPercent       int                  `json:"swingPercent" yaml:"swing_percent"`
	Loop               bool                 `json:"loop" yaml:"loop"`
	Ensemble           EnsembleMode         `json:"ensemble" yaml:"ensemble"`
	PartCount          int                  `json:"partCount" yaml:"part_count"`
}

func DefaultSettings() Settings {
	return Settings{
		TimeSignature:      timing.TimeSignature{Numerator: 4, Denominator: 4},
		MeasureCount:       4,
		Tempo:              80,
		Sound:              Snare,
		Density:            Medium,
		SyncopationPercent: 20,
		RestPercent:        15,
		AccentPercent:      0,
		CountingSystem:     Takadimi,
		AllowedValues:      []NoteValue{Quarter, Eighth},
		CountInMeasures:    1,
		Metronome:          true,
		SwingPercent:       0,
		Loop:               false,
		Ensemble:           Single,
		PartCount:          2,
	}
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	s.AllowedValues = slices.Clone(s.AllowedValues)
	s.TimeSignature.Grouping = slices.Clone(s.TimeSignature.Grouping)
	return s
}

// Equal compares two settings records field by field.
func (s Settings) Equal(o Settings) bool {
	return s.TimeSignature.Equal(o.TimeSignature) &&
		slices.Equal(s.AllowedValues, o.AllowedValues) &&
		s.MeasureCount == o.MeasureCount &&
		s.Tempo == o.Tempo &&
		s.Sound == o.Sound &&
		s.Density == o.Density &&
		s.SyncopationPercent == o.SyncopationPercent &&
		s.RestPercent == o.RestPercent &&
		s.AccentPercent == o.AccentPercent &&
		s.CountingSystem == o.CountingSystem &&
		s.CountInMeasures == o.CountInMeasures &&
		s.Metronome == o.Metronome &&
		s.SwingPercent == o.SwingPercent &&
		s.Loop == o.Loop &&
		s.Ensemble == o.Ensemble &&
		s.PartCount == o.PartCount
}

// Validate checks every range against the default tempo bounds.
func (s Settings) Validate() error {
	return s.ValidateWithin(timing.DefaultTempoBounds())
}

// ValidateWithin checks every range before any generation starts. Time
// signature and tempo problems keep their own sentinel errors.
func (s Settings) ValidateWithin(bounds timing.TempoBounds) error {
	if err := timing.ValidateSignature(s.TimeSignature); err != nil {
		return err
	}
	if err := bounds.Validate(s.Tempo); err != nil {
		return err
	}
	var problems []string
	if !slices.Contains(validMeasureCounts, s.MeasureCount) {
		problems = append(problems, fmt.Sprintf("measure count %d not in %v", s.MeasureCount, validMeasureCounts))
	}
	if !s.Sound.Valid() {
		problems = append(problems, fmt.Sprintf("unknown sound %q", s.Sound))
	}
	switch s.Density {
	case Sparse, Medium, Dense:
	default:
		problems = append(problems, fmt.Sprintf("unknown density %q", s.Density))
	}
	switch s.CountingSystem {
	case Kodaly, Takadimi, Gordon, Numbers, NoCount:
	default:
		problems = append(problems, fmt.Sprintf("unknown counting system %q", s.CountingSystem))
	}
	switch s.Ensemble {
	case Single, CallResponse, Layered, BodyPercussion:
	default:
		problems = append(problems, fmt.Sprintf("unknown ensemble mode %q", s.Ensemble))
	}
	if s.SyncopationPercent < 0 || s.SyncopationPercent > 100 {
		problems = append(problems, fmt.Sprintf("syncopation %d%% outside 0-100", s.SyncopationPercent))
	}
	if s.RestPercent < 0 || s.RestPercent > MaxRestPercent {
		problems = append(problems, fmt.Sprintf("rest probability %d%% outside 0-%d", s.RestPercent, MaxRestPercent))
	}
	if s.AccentPercent < 0 || s.AccentPercent > 100 {
		problems = append(problems, fmt.Sprintf("accent %d%% outside 0-100", s.AccentPercent))
	}
	if s.SwingPercent < 0 || s.SwingPercent > 100 {
		problems = append(problems, fmt.Sprintf("swing %d%% outside 0-100", s.SwingPercent))
	}
	if s.CountInMeasures < 0 || s.CountInMeasures > 2 {
		problems = append(problems, fmt.Sprintf("count-in %d not in 0-2", s.CountInMeasures))
	}
	if !slices.Contains(validPartCounts, s.PartCount) {
		problems = append(problems, fmt.Sprintf("part count %d not in %v", s.PartCount, validPartCounts))
	}
	if len(s.AllowedValues) == 0 {
		problems = append(problems, "no allowed note values")
	}
	for _, v := range s.AllowedValues {
		if !v.Valid() {
			problems = append(problems, fmt.Sprintf("invalid note value %d", int(v)))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(problems, "; "))
	}
	return nil
}
