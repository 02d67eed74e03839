package ensemble

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

func newTestGenerator() *Generator {
	n := 0
	return NewGenerator(
		pattern.NewGenerator(pattern.WithRand(rand.New(rand.NewPCG(21, 42)))),
		WithIDFunc(func() string {
			n++
			return fmt.Sprintf("part-%d", n)
		}),
	)
}

func TestLayeredPartsScaleFromFoundationToActive(t *testing.T) {
	s := pattern.DefaultSettings()
	s.AllowedValues = []pattern.NoteValue{pattern.Whole, pattern.Half, pattern.Quarter, pattern.Eighth, pattern.Sixteenth}
	s.SyncopationPercent = 40
	e, err := newTestGenerator().Generate(s, pattern.Layered, 3)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if len(e.Parts) != 3 {
		t.Fatalf("expected 3 parts, got %d", len(e.Parts))
	}
	wantDensity := []pattern.Density{pattern.Sparse, pattern.Medium, pattern.Medium}
	wantSound := []pattern.SoundOption{pattern.Drums, pattern.Snare, pattern.Woodblock}
	for i, p := range e.Parts {
		if p.Pattern.Settings.Density != wantDensity[i] {
			t.Fatalf("part %d density = %s", i, p.Pattern.Settings.Density)
		}
		if p.Sound != wantSound[i] {
			t.Fatalf("part %d sound = %s", i, p.Sound)
		}
		if err := p.Pattern.Validate(); err != nil {
			t.Fatalf("part %d invalid: %v", i, err)
		}
	}
	if got := e.Parts[0].Pattern.Settings.SyncopationPercent; got != 8 {
		t.Fatalf("foundation syncopation = %d, want 8", got)
	}
	if !slices.Equal(e.Parts[1].Pattern.Settings.AllowedValues, []pattern.NoteValue{pattern.Quarter, pattern.Eighth}) {
		t.Fatalf("mid part values = %v", e.Parts[1].Pattern.Settings.AllowedValues)
	}
	if e.Duration() != timing.NewFrac(4, 1) {
		t.Fatalf("parallel duration = %v", e.Duration())
	}
}

func TestCallResponseHalvesMeasuresAndPlaysInSequence(t *testing.T) {
	s := pattern.DefaultSettings()
	s.MeasureCount = 12
	s.SyncopationPercent = 90
	e, err := newTestGenerator().Generate(s, pattern.CallResponse, 2)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	call, response := e.Parts[0].Pattern, e.Parts[1].Pattern
	if len(call.Measures) != 4 || len(response.Measures) != 4 {
		t.Fatalf("12 measures should split into 4+4, got %d+%d", len(call.Measures), len(response.Measures))
	}
	if response.Settings.SyncopationPercent != 100 {
		t.Fatalf("response syncopation = %d", response.Settings.SyncopationPercent)
	}
	if !e.Sequential() || e.Duration() != timing.NewFrac(8, 1) {
		t.Fatalf("sequential duration = %v", e.Duration())
	}
	if e.Offset(1) != timing.NewFrac(4, 1) {
		t.Fatalf("response offset = %v", e.Offset(1))
	}
}

func TestBodyPercussionFallsBackToUserValuesWhenPreferencesCannotFill(t *testing.T) {
	s := pattern.DefaultSettings()
	s.TimeSignature = timing.MustParseTimeSignature("7/8")
	s.AllowedValues = []pattern.NoteValue{pattern.Quarter, pattern.Eighth}
	e, err := newTestGenerator().Generate(s, pattern.BodyPercussion, 4)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	stomp := e.Parts[0]
	if stomp.BodyPart != Stomp || stomp.Sound != pattern.Drums {
		t.Fatalf("first part = %+v", stomp)
	}
	if !slices.Equal(stomp.Pattern.Settings.AllowedValues, s.AllowedValues) {
		t.Fatalf("stomp should fall back to the user's values, got %v", stomp.Pattern.Settings.AllowedValues)
	}
	if BodyPartName(Snap) != "Snap (Fingers)" {
		t.Fatalf("name = %q", BodyPartName(Snap))
	}
}

func TestPartSettingsClampRest(t *testing.T) {
	base := pattern.DefaultSettings()
	base.RestPercent = 40
	s := PartSettings(base, bodyConfigs[Stomp])
	if s.RestPercent != pattern.MaxRestPercent {
		t.Fatalf("rest = %d, want cap %d", s.RestPercent, pattern.MaxRestPercent)
	}
	if s.Density != pattern.Sparse {
		t.Fatalf("density = %s", s.Density)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("derived settings invalid: %v", err)
	}
}

func TestFilterValues(t *testing.T) {
	pref := []pattern.NoteValue{pattern.Half, pattern.Quarter}
	if got := FilterValues(nil, pref); !slices.Equal(got, pref) {
		t.Fatalf("empty user set: %v", got)
	}
	user := []pattern.NoteValue{pattern.Eighth, pattern.Quarter}
	if got := FilterValues(user, pref); !slices.Equal(got, []pattern.NoteValue{pattern.Quarter}) {
		t.Fatalf("overlap: %v", got)
	}
	user = []pattern.NoteValue{pattern.Sixteenth}
	if got := FilterValues(user, pref); !slices.Equal(got, user) {
		t.Fatalf("no overlap: %v", got)
	}
}

func TestMuteSoloAndRegenerate(t *testing.T) {
	g := newTestGenerator()
	e, err := g.Generate(pattern.DefaultSettings(), pattern.Layered, 4)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	muted, err := e.ToggleMute(1)
	if err != nil {
		t.Fatalf("mute: %v", err)
	}
	if e.Parts[1].Muted {
		t.Fatalf("toggle should not modify the original")
	}
	if got := muted.Audible(); !slices.Equal(got, []int{0, 2, 3}) {
		t.Fatalf("audible after mute = %v", got)
	}
	soloed, _ := muted.ToggleSolo(1)
	if got := soloed.Audible(); !slices.Equal(got, []int{1}) {
		t.Fatalf("solo should override mute, got %v", got)
	}
	if _, err := e.ToggleSolo(9); !errors.Is(err, ErrPartIndex) {
		t.Fatalf("expected ErrPartIndex, got %v", err)
	}

	again, err := g.RegeneratePart(e, 2)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if again.Parts[2].Pattern == e.Parts[2].Pattern {
		t.Fatalf("part 2 should have a new pattern")
	}
	if again.Parts[0].Pattern != e.Parts[0].Pattern {
		t.Fatalf("other parts should be shared untouched")
	}
	if again.Parts[2].Pattern.Settings.Density != pattern.Medium {
		t.Fatalf("regenerated part should keep its derived settings")
	}
}

func TestSingleModeIsNotAnEnsemble(t *testing.T) {
	if _, err := newTestGenerator().Generate(pattern.DefaultSettings(), pattern.Single, 2); !errors.Is(err, ErrSingleMode) {
		t.Fatalf("expected ErrSingleMode, got %v", err)
	}
	if _, err := newTestGenerator().Generate(pattern.DefaultSettings(), pattern.Layered, 5); !errors.Is(err, ErrPartCount) {
		t.Fatalf("expected ErrPartCount, got %v", err)
	}
	if ModeDisplayName(pattern.CallResponse) != "Call & Response" {
		t.Fatalf("display name = %q", ModeDisplayName(pattern.CallResponse))
	}
}
