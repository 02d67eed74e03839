package voicing

import (
	"testing"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

func TestEverySoundOptionHasAVoicing(t *testing.T) {
	if got, want := len(Known()), len(pattern.SoundOptions()); got != want {
		t.Fatalf("voiced %d of %d sound options", got, want)
	}
}

func TestAccentPicksAccentPitch(t *testing.T) {
	plain, ok := For(pattern.Woodblock, 0.7, 0)
	if !ok {
		t.Fatalf("woodblock missing")
	}
	accent, _ := For(pattern.Woodblock, 1.0, 0)
	if plain.Frequency != 800 || accent.Frequency != 1000 {
		t.Fatalf("woodblock pitches %v/%v", plain.Frequency, accent.Frequency)
	}
	if plain.Duration != 0.08 || plain.Velocity != 0.7 {
		t.Fatalf("unexpected tone %+v", plain)
	}
}

func TestTonalVoicesFollowNoteLength(t *testing.T) {
	short, _ := For(pattern.Piano, 0.7, 0.1)
	long, _ := For(pattern.Piano, 0.7, 2.0)
	if short.Duration != 0.3 {
		t.Fatalf("short piano note should keep the minimum, got %v", short.Duration)
	}
	if long.Duration != 1.8 {
		t.Fatalf("long piano note should hold 90%%, got %v", long.Duration)
	}
	drum, _ := For(pattern.Drums, 0.7, 2.0)
	if drum.Duration != 0.15 {
		t.Fatalf("percussion ignores note length, got %v", drum.Duration)
	}
}

func TestUnknownSound(t *testing.T) {
	if _, ok := For("kazoo", 1, 0); ok {
		t.Fatalf("kazoo should not resolve")
	}
}

func TestMIDIVelocityRange(t *testing.T) {
	if MIDIVelocity(-1) != 1 || MIDIVelocity(0) != 1 || MIDIVelocity(1) != 127 || MIDIVelocity(4) != 127 {
		t.Fatalf("velocity out of range")
	}
}
