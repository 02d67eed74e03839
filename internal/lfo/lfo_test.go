package lfo

import (
	"math"
	"testing"
)

func TestSineStartsAtZeroAndPeaksAtQuarter(t *testing.T) {
	var l LFO
	l.Set(0.5, 1, Sine)
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = l.Sample(100)
	}
	if samples[0] != 0 {
		t.Fatalf("sine should start at 0, got %f", samples[0])
	}
	if math.Abs(samples[25]-0.5) > 1e-9 {
		t.Fatalf("sine at a quarter cycle = %f, want 0.5", samples[25])
	}
	if math.Abs(samples[75]+0.5) > 1e-9 {
		t.Fatalf("sine at three quarters = %f, want -0.5", samples[75])
	}
}

func TestTriangleAndSquareShapes(t *testing.T) {
	var tri LFO
	tri.Set(1, 1, Triangle)
	var sq LFO
	sq.Set(2, 1, Square)
	var triOut, sqOut []float64
	for i := 0; i < 100; i++ {
		triOut = append(triOut, tri.Sample(100))
		sqOut = append(sqOut, sq.Sample(100))
	}
	if math.Abs(triOut[0]+1) > 0.05 || math.Abs(triOut[50]-1) > 0.05 {
		t.Fatalf("triangle endpoints %f %f", triOut[0], triOut[50])
	}
	if sqOut[10] != 2 || sqOut[60] != -2 {
		t.Fatalf("square halves %f %f", sqOut[10], sqOut[60])
	}
}

func TestInactiveLFOIsSilent(t *testing.T) {
	var l LFO
	if l.Active() || l.Sample(44100) != 0 {
		t.Fatalf("zero LFO should be inactive")
	}
	l.Set(1, 0, Sine)
	if l.Active() {
		t.Fatalf("zero rate should be inactive")
	}
	l.Set(1, 5, Waveform(42))
	if !l.Active() || l.wave != Sine {
		t.Fatalf("bad waveform should fall back to sine")
	}
}

func TestDelayHoldsOffModulation(t *testing.T) {
	var l LFO
	l.Set(1, 10, Square)
	l.SetDelay(3)
	for i := 0; i < 3; i++ {
		if v := l.Sample(100); v != 0 {
			t.Fatalf("sample %d inside the delay = %f", i, v)
		}
	}
	if v := l.Sample(100); v != 1 {
		t.Fatalf("first sample after the delay = %f", v)
	}
	l.Reset()
	if v := l.Sample(100); v != 0 {
		t.Fatalf("reset should restart the delay, got %f", v)
	}
}
