package mixer

import (
	"errors"
	"testing"

	"github.com/cbegin/rhythmkit-go/internal/effects"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

type noteOn struct {
	frame int
	sound pattern.SoundOption
	id    int
}

// countingEngine records the frame each note starts and stops on.
type countingEngine struct {
	rendered int
	ons      []noteOn
	offs     map[int]int
	active   map[int]bool
	gain     float64
	level    float32
}

func newCountingEngine() *countingEngine {
	return &countingEngine{offs: map[int]int{}, active: map[int]bool{}, level: 0.25}
}

func (e *countingEngine) NoteOn(t voicing.Tone) int {
	id := len(e.ons)
	e.ons = append(e.ons, noteOn{frame: e.rendered, sound: t.Sound, id: id})
	e.active[id] = true
	return id
}

func (e *countingEngine) NoteOff(id int) {
	e.offs[id] = e.rendered
	delete(e.active, id)
}

func (e *countingEngine) RenderFrame() (float32, float32) {
	e.rendered++
	if len(e.active) > 0 {
		return e.level, -e.level
	}
	return 0, 0
}

func (e *countingEngine) SetMasterGain(g float64) { e.gain = g }
func (e *countingEngine) ActiveVoiceCount() int  { return len(e.active) }

func TestSoundsStartOnTheirFrame(t *testing.T) {
	eng := newCountingEngine()
	m := New(1000, eng)
	if err := m.PlaySound(pattern.Woodblock, 0.010, 0.7); err != nil {
		t.Fatal(err)
	}
	if err := m.PlaySound(pattern.Drums, 0.003, 0.7); err != nil {
		t.Fatal(err)
	}
	buf := make([]float32, 2*64)
	m.Process(buf)
	if len(eng.ons) != 2 {
		t.Fatalf("expected 2 note-ons, got %d", len(eng.ons))
	}
	if eng.ons[0].sound != pattern.Drums || eng.ons[0].frame != 3 {
		t.Fatalf("first note %+v, want drums at frame 3", eng.ons[0])
	}
	if eng.ons[1].sound != pattern.Woodblock || eng.ons[1].frame != 10 {
		t.Fatalf("second note %+v, want woodblock at frame 10", eng.ons[1])
	}
	// woodblock holds 0.08 s = 80 frames, drums 0.15 s
	if got := eng.offs[0]; got != 0 {
		t.Fatalf("drums released too early at %d", got)
	}
	m.Process(make([]float32, 2*200))
	if eng.offs[0] != 3+150 || eng.offs[1] != 10+80 {
		t.Fatalf("release frames %v", eng.offs)
	}
	if !m.Idle() {
		t.Fatalf("mixer should be idle after releases")
	}
}

func TestEqualFramesKeepArrivalOrder(t *testing.T) {
	eng := newCountingEngine()
	m := New(1000, eng)
	_ = m.PlaySound(pattern.Metronome, 0.005, 1)
	_ = m.PlaySound(pattern.Snare, 0.005, 0.7)
	_ = m.PlaySound(pattern.Claps, 0.005, 0.7)
	m.Process(make([]float32, 2*16))
	want := []pattern.SoundOption{pattern.Metronome, pattern.Snare, pattern.Claps}
	for i, w := range want {
		if eng.ons[i].sound != w || eng.ons[i].frame != 5 {
			t.Fatalf("note %d = %+v, want %s at 5", i, eng.ons[i], w)
		}
	}
}

func TestLateSoundFiresOnNextFrame(t *testing.T) {
	eng := newCountingEngine()
	m := New(1000, eng)
	m.Process(make([]float32, 2*20))
	if m.Now() != 0.02 {
		t.Fatalf("clock = %v, want 0.02", m.Now())
	}
	_ = m.PlaySound(pattern.Drums, 0.001, 0.7)
	m.Process(make([]float32, 2*4))
	if len(eng.ons) != 1 || eng.ons[0].frame != 20 {
		t.Fatalf("late sound should fire at frame 20, got %+v", eng.ons)
	}
}

func TestUnknownSoundIsRejected(t *testing.T) {
	m := New(1000, newCountingEngine())
	err := m.PlaySound("kazoo", 0, 1)
	if !errors.Is(err, ErrUnknownSound) {
		t.Fatalf("expected ErrUnknownSound, got %v", err)
	}
	if m.Pending() != 0 {
		t.Fatalf("unknown sound should not be queued")
	}
}

func TestTonalNoteHoldsForWrittenLength(t *testing.T) {
	eng := newCountingEngine()
	m := New(1000, eng)
	_ = m.PlayNote(pattern.Piano, 0, 0.7, 1.0)
	m.Process(make([]float32, 2*1000))
	if eng.offs[0] != 900 {
		t.Fatalf("piano released at %d, want 900", eng.offs[0])
	}
}

func TestVolumeTapAndReset(t *testing.T) {
	eng := newCountingEngine()
	var tapped int
	m := New(1000, eng, WithSampleTap(func(buf []float32) { tapped += len(buf) }))
	m.SetVolume(2)
	_ = m.PlaySound(pattern.Snare, 0, 0.7)
	buf := make([]float32, 2*8)
	m.Process(buf)
	if buf[0] != 0.5 || buf[1] != -0.5 {
		t.Fatalf("volume not applied: %v %v", buf[0], buf[1])
	}
	if tapped != len(buf) {
		t.Fatalf("tap saw %d samples", tapped)
	}
	_ = m.PlaySound(pattern.Snare, 1, 0.7)
	m.Reset()
	if m.Pending() != 0 || eng.ActiveVoiceCount() != 0 {
		t.Fatalf("reset should clear queue and release voices")
	}
	m.SetVolume(-1)
	if m.Volume() != 0 {
		t.Fatalf("volume should clamp at 0")
	}
}

func TestEffectsAndEQRunOnOutput(t *testing.T) {
	eng := newCountingEngine()
	eq := effects.NewEQ5Band(1000)
	for b := 0; b < 5; b++ {
		eq.SetGain(b, 0)
	}
	m := New(1000, eng, WithEQ(eq), WithEffects(effects.NewChain()))
	_ = m.PlaySound(pattern.Snare, 0, 0.7)
	buf := make([]float32, 2*8)
	m.Process(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("muted EQ let sample %d through: %v", i, v)
		}
	}
}

func TestRouterSendsSoundsToTheirEngine(t *testing.T) {
	fallback := newCountingEngine()
	drums := newCountingEngine()
	r := NewRouter(fallback)
	r.Route(drums, pattern.Drums, pattern.Snare)
	m := New(1000, r)
	_ = m.PlaySound(pattern.Drums, 0, 0.7)
	_ = m.PlaySound(pattern.Piano, 0, 0.7)
	_ = m.PlaySound(pattern.Snare, 0.001, 0.7)
	m.Process(make([]float32, 2*4))
	if len(drums.ons) != 2 || len(fallback.ons) != 1 {
		t.Fatalf("routing: drums=%d fallback=%d", len(drums.ons), len(fallback.ons))
	}
	if r.ActiveVoiceCount() != 3 {
		t.Fatalf("router active voices = %d", r.ActiveVoiceCount())
	}
	m.Process(make([]float32, 2*400))
	if len(drums.offs) != 2 || len(fallback.offs) != 1 {
		t.Fatalf("releases did not reach the owning engine: %v %v", drums.offs, fallback.offs)
	}
	r.SetMasterGain(0.5)
	if drums.gain != 0.5 || fallback.gain != 0.5 {
		t.Fatalf("gain not forwarded")
	}
}

func TestVoiceIDRoundTrip(t *testing.T) {
	idx, local := decodeVoiceID(encodeVoiceID(3, 1234))
	if idx != 3 || local != 1234 {
		t.Fatalf("decoded %d/%d", idx, local)
	}
}
