package effects

import (
	"math"
	"sync/atomic"
)

// Bands is the number of master EQ bands.
const Bands = 5

// maxBandGain caps a band at roughly +12 dB.
const maxBandGain = 4

// EQ5Band is a crossover equaliser with runtime-adjustable gains. Bands split
// at 200 Hz, 800 Hz, 2.5 kHz and 8 kHz: kick and body, woodblock and piano
// fundamentals, click attack, snare and clap noise, air.
// Gains are float32 bit patterns so the audio thread reads them lock-free.
type EQ5Band struct {
	gains  [Bands]atomic.Uint32
	alphas [Bands - 1]float32
	lpL    [Bands - 1]float32
	lpR    [Bands - 1]float32
}

var crossovers = [Bands - 1]float64{200, 800, 2500, 8000}

// NewEQ5Band creates an EQ with all gains at unity.
func NewEQ5Band(sampleRate int) *EQ5Band {
	eq := &EQ5Band{}
	dt := 1.0 / float64(sampleRate)
	for i, freq := range crossovers {
		rc := 1.0 / (2.0 * math.Pi * freq)
		eq.alphas[i] = float32(dt / (rc + dt))
	}
	for i := range eq.gains {
		eq.gains[i].Store(math.Float32bits(1.0))
	}
	return eq
}

// SetGain sets the gain for band 0..4. 1.0 is unity, 0 silences the band.
// Out-of-range bands are ignored.
func (eq *EQ5Band) SetGain(band int, gain float32) {
	if band < 0 || band >= Bands {
		return
	}
	eq.gains[band].Store(math.Float32bits(clamp(gain, 0, maxBandGain)))
}

func (eq *EQ5Band) Gain(band int) float32 {
	if band < 0 || band >= Bands {
		return 1.0
	}
	return math.Float32frombits(eq.gains[band].Load())
}

func (eq *EQ5Band) Process(l, r float32) (float32, float32) {
	// Each crossover peels its low band off the remainder; what is left
	// after the last one is the top band.
	var outL, outR float32
	remL, remR := l, r
	for i := range crossovers {
		eq.lpL[i] += eq.alphas[i] * (remL - eq.lpL[i])
		eq.lpR[i] += eq.alphas[i] * (remR - eq.lpR[i])
		g := math.Float32frombits(eq.gains[i].Load())
		outL += eq.lpL[i] * g
		outR += eq.lpR[i] * g
		remL -= eq.lpL[i]
		remR -= eq.lpR[i]
	}
	top := math.Float32frombits(eq.gains[Bands-1].Load())
	return outL + remL*top, outR + remR*top
}

func (eq *EQ5Band) Reset() {
	clear(eq.lpL[:])
	clear(eq.lpR[:])
}
