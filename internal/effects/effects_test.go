package effects

import (
	"errors"
	"math"
	"testing"
)

func TestReverbProducesTail(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 0.5)
	r.Process(1.0, 1.0)
	var maxL, maxR float32
	for i := 0; i < 10000; i++ {
		l, rr := r.Process(0, 0)
		maxL = max(maxL, l)
		maxR = max(maxR, rr)
	}
	if maxL < 0.001 || maxR < 0.001 {
		t.Fatalf("expected reverb tail on both channels, got %f %f", maxL, maxR)
	}
	r.Reset()
	if l, rr := r.Process(0, 0); l != 0 || rr != 0 {
		t.Fatalf("reset reverb should be silent, got %f %f", l, rr)
	}
}

func TestCompressorReducesLoud(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	var out float32
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(1.0, 1.0)
	}
	if out >= 1.0 {
		t.Fatalf("compressor should reduce loud signals, got %f", out)
	}
}

func TestCompressorIsStereoLinked(t *testing.T) {
	c := NewCompressor(44100, -20, 8, 1, 50, 0)
	var l, r float32
	for i := 0; i < 1000; i++ {
		l, r = c.Process(1.0, 0.1)
	}
	if math.Abs(float64(l/r)-10) > 1e-3 {
		t.Fatalf("channel balance changed: %f / %f", l, r)
	}
}

func TestEQ5BandUnityPassesSignal(t *testing.T) {
	eq := NewEQ5Band(44100)
	var l, r float32
	for i := 0; i < 1000; i++ {
		l, r = eq.Process(0.5, 0.5)
	}
	if math.Abs(float64(l)-0.5) > 1e-4 || math.Abs(float64(r)-0.5) > 1e-4 {
		t.Fatalf("expected ~0.5 with unity gains, got l=%f r=%f", l, r)
	}
}

func TestEQ5BandGainBounds(t *testing.T) {
	eq := NewEQ5Band(44100)
	eq.SetGain(2, 10)
	if eq.Gain(2) != maxBandGain {
		t.Fatalf("gain should clamp to %v, got %v", maxBandGain, eq.Gain(2))
	}
	eq.SetGain(7, 0)
	if eq.Gain(7) != 1 {
		t.Fatalf("out-of-range band should read unity")
	}
}

func TestParseChain(t *testing.T) {
	chain, err := ParseChain([]string{"reverb 0.4,0.6,0.2", " ", "comp -18, 3", "eq 1,1,0.5,1,1"}, 44100)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if chain.Len() != 3 {
		t.Fatalf("expected 3 effects, got %d", chain.Len())
	}
	if l, r := chain.Process(0.25, 0.25); l == 0 || r == 0 {
		t.Fatal("chain should produce output")
	}

	empty, err := ParseChain(nil, 44100)
	if err != nil || empty != nil {
		t.Fatalf("empty specs should give a nil chain, got %v %v", empty, err)
	}
	if _, err := ParseChain([]string{"flanger"}, 44100); !errors.Is(err, ErrUnknownEffect) {
		t.Fatalf("expected ErrUnknownEffect, got %v", err)
	}
	if _, err := ParseChain([]string{"reverb 0.5,x"}, 44100); err == nil {
		t.Fatal("expected a parameter error")
	}
}
