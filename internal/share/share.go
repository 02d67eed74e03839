package share

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

var ErrMalformed = errors.New("malformed share data")

// Query keys, in the order Encode writes them.
const (
	keyTimeSignature = "ts"
	keyTempo         = "bpm"
	keyMeasureCount  = "mc"
	keyNoteValues    = "nv"
	keySyncopation   = "syn"
	keyRest          = "rp"
	keyDensity       = "nd"
	keyCounting      = "cs"
	keySound         = "snd"
	keyEnsemble      = "em"
	keyPartCount     = "pc"
	keyAccent        = "ac"
	keyCountIn       = "ci"
	keyMetronome     = "met"
	keySwing         = "sw"
	keyLoop          = "lp"
)

type field struct {
	key    string
	encode func(pattern.Settings) string
	decode func(*pattern.Settings, string) error
}

var fields = []field{
	{keyTimeSignature,
		func(s pattern.Settings) string {
			b, err := s.TimeSignature.MarshalText()
			if err != nil {
				return s.TimeSignature.String()
			}
			return string(b)
		},
		func(s *pattern.Settings, v string) error { return s.TimeSignature.UnmarshalText([]byte(v)) }},
	intField(keyTempo, func(s *pattern.Settings) *int { return &s.Tempo }),
	intField(keyMeasureCount, func(s *pattern.Settings) *int { return &s.MeasureCount }),
	{keyNoteValues, func(s pattern.Settings) string { return EncodeNoteValues(s.AllowedValues) },
		func(s *pattern.Settings, v string) error {
			values, err := DecodeNoteValues(v)
			s.AllowedValues = values
			return err
		}},
	intField(keySyncopation, func(s *pattern.Settings) *int { return &s.SyncopationPercent }),
	intField(keyRest, func(s *pattern.Settings) *int { return &s.RestPercent }),
	{keyDensity, func(s pattern.Settings) string { return string(s.Density) },
		func(s *pattern.Settings, v string) error { s.Density = pattern.Density(v); return nil }},
	{keyCounting, func(s pattern.Settings) string { return string(s.CountingSystem) },
		func(s *pattern.Settings, v string) error { s.CountingSystem = pattern.CountingSystem(v); return nil }},
	{keySound, func(s pattern.Settings) string { return string(s.Sound) },
		func(s *pattern.Settings, v string) error { s.Sound = pattern.SoundOption(v); return nil }},
	{keyEnsemble, func(s pattern.Settings) string { return string(s.Ensemble) },
		func(s *pattern.Settings, v string) error { s.Ensemble = pattern.EnsembleMode(v); return nil }},
	intField(keyPartCount, func(s *pattern.Settings) *int { return &s.PartCount }),
	intField(keyAccent, func(s *pattern.Settings) *int { return &s.AccentPercent }),
	intField(keyCountIn, func(s *pattern.Settings) *int { return &s.CountInMeasures }),
	boolField(keyMetronome, func(s *pattern.Settings) *bool { return &s.Metronome }),
	intField(keySwing, func(s *pattern.Settings) *int { return &s.SwingPercent }),
	boolField(keyLoop, func(s *pattern.Settings) *bool { return &s.Loop }),
}

func intField(key string, ref func(*pattern.Settings) *int) field {
	return field{
		key: key,
		encode: func(s pattern.Settings) string {
			return strconv.Itoa(*ref(&s))
		},
		decode: func(s *pattern.Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("not an integer: %q", v)
			}
			*ref(s) = n
			return nil
		},
	}
}

func boolField(key string, ref func(*pattern.Settings) *bool) field {
	return field{
		key: key,
		encode: func(s pattern.Settings) string {
			if *ref(&s) {
				return "1"
			}
			return "0"
		},
		decode: func(s *pattern.Settings, v string) error {
			switch v {
			case "1", "true":
				*ref(s) = true
			case "0", "false":
				*ref(s) = false
			default:
				return fmt.Errorf("not a flag: %q", v)
			}
			return nil
		},
	}
}

// Encode writes the fields of s that differ from the defaults as a query
// string, always in the same key order. Default settings encode to "".
func Encode(s pattern.Settings) string {
	defaults := pattern.DefaultSettings()
	var parts []string
	for _, f := range fields {
		v := f.encode(s)
		if v == f.encode(defaults) {
			continue
		}
		parts = append(parts, f.key+"="+url.QueryEscape(v))
	}
	return strings.Join(parts, "&")
}

// Decode overlays a query string onto the defaults and validates the result.
// A leading "?" is accepted; unknown keys are ignored.
func Decode(query string) (pattern.Settings, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(query, "?"))
	if err != nil {
		return pattern.Settings{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return DecodeValues(values)
}

func DecodeValues(values url.Values) (pattern.Settings, error) {
	s := pattern.DefaultSettings()
	for _, f := range fields {
		v := values.Get(f.key)
		if v == "" {
			continue
		}
		if err := f.decode(&s, v); err != nil {
			return pattern.Settings{}, fmt.Errorf("%w: %s: %w", ErrMalformed, f.key, err)
		}
	}
	if err := s.Validate(); err != nil {
		return pattern.Settings{}, err
	}
	return s, nil
}

// ShareURL appends the encoded settings to base.
func ShareURL(base string, s pattern.Settings) string {
	q := Encode(s)
	if q == "" {
		return base
	}
	if strings.Contains(base, "?") {
		return base + "&" + q
	}
	return base + "?" + q
}

// EncodeNoteValues writes short codes joined by commas: "q,e,te".
func EncodeNoteValues(values []pattern.NoteValue) string {
	codes := make([]string, len(values))
	for i, v := range values {
		codes[i] = v.Code()
	}
	return strings.Join(codes, ",")
}

func DecodeNoteValues(s string) ([]pattern.NoteValue, error) {
	var out []pattern.NoteValue
	for _, code := range strings.Split(s, ",") {
		v, err := pattern.ParseNoteValue(code)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
