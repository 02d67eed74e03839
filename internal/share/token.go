package share

import (
	"encoding/base64"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

const tokenVersion = 1

// wireSettings is the positional msgpack form behind a share token. Field
// order is part of the format; append new fields at the end.
type wireSettings struct {
	_msgpack struct{} `msgpack:",as_array"`

	Version      int
	Signature    string
	Tempo        int
	MeasureCount int
	NoteValues   string
	Syncopation  int
	Rest         int
	Density      string
	Counting     string
	Sound        string
	Ensemble     string
	PartCount    int
	Accent       int
	CountIn      int
	Metronome    bool
	Swing        int
	Loop         bool
}

// EncodeToken packs s into a URL-safe token short enough for a QR code.
func EncodeToken(s pattern.Settings) (string, error) {
	sig, err := s.TimeSignature.MarshalText()
	if err != nil {
		return "", err
	}
	w := wireSettings{
		Version:      tokenVersion,
		Signature:    string(sig),
		Tempo:        s.Tempo,
		MeasureCount: s.MeasureCount,
		NoteValues:   EncodeNoteValues(s.AllowedValues),
		Syncopation:  s.SyncopationPercent,
		Rest:         s.RestPercent,
		Density:      string(s.Density),
		Counting:     string(s.CountingSystem),
		Sound:        string(s.Sound),
		Ensemble:     string(s.Ensemble),
		PartCount:    s.PartCount,
		Accent:       s.AccentPercent,
		CountIn:      s.CountInMeasures,
		Metronome:    s.Metronome,
		Swing:        s.SwingPercent,
		Loop:         s.Loop,
	}
	b, err := msgpack.Marshal(&w)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeToken reverses EncodeToken and validates the result.
func DecodeToken(token string) (pattern.Settings, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return pattern.Settings{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var w wireSettings
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return pattern.Settings{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if w.Version != tokenVersion {
		return pattern.Settings{}, fmt.Errorf("%w: token version %d", ErrMalformed, w.Version)
	}
	s := pattern.Settings{
		MeasureCount:       w.MeasureCount,
		Tempo:              w.Tempo,
		Sound:              pattern.SoundOption(w.Sound),
		Density:            pattern.Density(w.Density),
		SyncopationPercent: w.Syncopation,
		RestPercent:        w.Rest,
		AccentPercent:      w.Accent,
		CountingSystem:     pattern.CountingSystem(w.Counting),
		CountInMeasures:    w.CountIn,
		Metronome:          w.Metronome,
		SwingPercent:       w.Swing,
		Loop:               w.Loop,
		Ensemble:           pattern.EnsembleMode(w.Ensemble),
		PartCount:          w.PartCount,
	}
	if err := s.TimeSignature.UnmarshalText([]byte(w.Signature)); err != nil {
		return pattern.Settings{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	values, err := DecodeNoteValues(w.NoteValues)
	if err != nil {
		return pattern.Settings{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	s.AllowedValues = values
	if err := s.Validate(); err != nil {
		return pattern.Settings{}, err
	}
	return s, nil
}
