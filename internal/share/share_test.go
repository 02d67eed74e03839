package share

import (
	"encoding/base64"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

func sampleSettings() pattern.Settings {
	s := pattern.DefaultSettings()
	s.TimeSignature = timing.MustParseTimeSignature("3/4")
	s.Tempo = 90
	s.Density = pattern.Dense
	s.SyncopationPercent = 40
	s.RestPercent = 10
	s.CountingSystem = pattern.Kodaly
	return s
}

func TestShareRoundTrip(t *testing.T) {
	s := sampleSettings()
	q := Encode(s)
	assert.Equal(t, "ts=3%2F4&bpm=90&syn=40&rp=10&nd=dense&cs=kodaly", q)

	back, err := Decode(q)
	require.NoError(t, err)
	assert.Equal(t, s, back)
	assert.True(t, back.Equal(s))
}

func TestDefaultsEncodeToNothing(t *testing.T) {
	assert.Equal(t, "", Encode(pattern.DefaultSettings()))
	assert.Equal(t, "https://example.test/rhythm", ShareURL("https://example.test/rhythm", pattern.DefaultSettings()))

	s := pattern.DefaultSettings()
	s.SyncopationPercent = 0
	s.Metronome = false
	assert.Equal(t, "https://example.test/r?x=1&syn=0&met=0", ShareURL("https://example.test/r?x=1", s))
}

func TestDecodeOverlaysDefaultsAndValidates(t *testing.T) {
	s, err := Decode("?bpm=120&nv=h,q,te&zz=ignored")
	require.NoError(t, err)
	assert.Equal(t, 120, s.Tempo)
	assert.Equal(t, []pattern.NoteValue{pattern.Half, pattern.Quarter, pattern.TripletEighth}, s.AllowedValues)
	assert.Equal(t, pattern.Takadimi, s.CountingSystem)

	_, err = Decode("bpm=fast")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode("nv=q,x")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Decode("bpm=400")
	assert.ErrorIs(t, err, timing.ErrInvalidTempo)

	for _, q := range []string{"ts=4/5", "ts=0/4", "?ts=seven"} {
		_, err = Decode(q)
		assert.ErrorIs(t, err, timing.ErrInvalidTimeSignature, q)
		assert.ErrorIs(t, err, ErrMalformed, q)
	}

	_, err = Decode("rp=70")
	assert.ErrorIs(t, err, pattern.ErrInvalidSettings)
}

func TestIrregularGroupingSurvivesTheQuery(t *testing.T) {
	s := pattern.DefaultSettings()
	s.TimeSignature = timing.TimeSignature{Numerator: 5, Denominator: 4, Grouping: []int{2, 3}}
	back, err := Decode(Encode(s))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, back.TimeSignature.Grouping)
}

func TestTokenRoundTrip(t *testing.T) {
	s := sampleSettings()
	s.Loop = true
	s.SwingPercent = 60
	s.AllowedValues = []pattern.NoteValue{pattern.Quarter, pattern.DottedEighth, pattern.Sixteenth}
	tok, err := EncodeToken(s)
	require.NoError(t, err)
	assert.NotContains(t, tok, "=")
	back, err := DecodeToken(tok)
	require.NoError(t, err)
	assert.True(t, back.Equal(s), "got %+v", back)

	_, err = DecodeToken("not*base64")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTokenWithBadSignatureKeepsTheCause(t *testing.T) {
	w := wireSettings{Version: tokenVersion, Signature: "4/5", Tempo: 90, MeasureCount: 4, NoteValues: "q"}
	b, err := msgpack.Marshal(&w)
	require.NoError(t, err)
	_, err = DecodeToken(base64.RawURLEncoding.EncodeToString(b))
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, timing.ErrInvalidTimeSignature)
}

func TestQueryRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	meters := timing.KnownSignatures()
	densities := []pattern.Density{pattern.Sparse, pattern.Medium, pattern.Dense}
	systems := []pattern.CountingSystem{pattern.Kodaly, pattern.Takadimi, pattern.Gordon, pattern.Numbers, pattern.NoCount}

	properties.Property("decode(encode(s)) == s", prop.ForAll(
		func(meter, tempo, syn, rest, density, system int, metronome bool) bool {
			s := pattern.DefaultSettings()
			s.TimeSignature = meters[meter]
			s.Tempo = tempo
			s.SyncopationPercent = syn
			s.RestPercent = rest
			s.Density = densities[density]
			s.CountingSystem = systems[system]
			s.Metronome = metronome
			back, err := Decode(Encode(s))
			return err == nil && back.Equal(s)
		},
		gen.IntRange(0, len(meters)-1),
		gen.IntRange(timing.DefaultMinBPM, timing.DefaultMaxBPM),
		gen.IntRange(0, 100),
		gen.IntRange(0, pattern.MaxRestPercent),
		gen.IntRange(0, len(densities)-1),
		gen.IntRange(0, len(systems)-1),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
