package chiptune

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/rhythmkit-go/internal/lfo"
	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

const twoPi = math.Pi * 2

type Params struct {
	Voices      int
	MasterGain  float64
	AttackSec   float64
	DecaySec    float64
	SustainLvl  float64
	ReleaseSec  float64
	StepLevels  int
	PulseDuty   float64
	VelocityAmp float64
	LPFCutoff   float64 // lowpass filter cutoff in Hz (0 = disabled)
}

func DefaultParams() Params {
	return Params{
		Voices:      16,
		MasterGain:  0.35,
		AttackSec:   0.002,
		DecaySec:    0.06,
		SustainLvl:  0.55,
		ReleaseSec:  0.05,
		StepLevels:  16,
		PulseDuty:   0.125,
		VelocityAmp: 0.85,
		LPFCutoff:   12000,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type voice struct {
	active    bool
	id        int
	age       int
	wave      voicing.Wave
	freq      float64
	phase     float64
	velocity  float64
	env       float64
	envState  envState
	noiseLFSR uint16
	vibrato   lfo.LFO
}

// Engine is a small polyphonic oscillator bank: pulse, square, triangle and
// LFSR noise voices through an ADSR, a DC blocker and a one-pole lowpass.
// NoteOn, NoteOff and RenderFrame must be called from one goroutine;
// SetMasterGain may be called from any.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	dcPrevIn   float64
	dcPrevOut  float64
	lpf        float64
	lpfAlpha   float64
}

func New(sampleRate int, p Params) *Engine {
	if p.Voices <= 0 {
		p.Voices = 16
	}
	if p.StepLevels <= 1 {
		p.StepLevels = 16
	}
	if p.PulseDuty <= 0 || p.PulseDuty >= 1 {
		p.PulseDuty = 0.125
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     p,
		voices:     make([]voice, p.Voices),
		masterGain: math.Float64bits(p.MasterGain),
	}
	for i := range e.voices {
		e.voices[i].noiseLFSR = uint16(0xACE1 + i*97)
	}
	if p.LPFCutoff > 0 && p.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * p.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	return e
}

// NoteOn starts a voice for t and returns its id. The caller releases it
// with NoteOff once t.Duration has elapsed.
func (e *Engine) NoteOn(t voicing.Tone) int {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID = (e.nextID + 1) & 0xFFFF
	v := &e.voices[slot]
	v.active = true
	v.id = id
	v.age = 0
	v.wave = t.Wave
	v.freq = t.Frequency
	v.phase = 0
	v.velocity = clamp(t.Velocity, 0, 1)
	v.env = 0
	v.envState = envAttack
	if v.noiseLFSR == 0 {
		v.noiseLFSR = 0xACE1
	}
	v.vibrato.Set(t.Vibrato, t.VibratoHz, lfo.Sine)
	// Let the attack settle before the pitch starts to move.
	v.vibrato.SetDelay(int(0.08 * e.sampleRate))
	v.vibrato.Reset()
	return id
}

func (e *Engine) NoteOff(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id && v.envState != envRelease {
			v.envState = envRelease
		}
	}
}

func (e *Engine) RenderFrame() (float32, float32) {
	gain := e.masterGainValue()
	var mix float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		v.age++
		env := e.advanceEnv(v)
		if !v.active {
			continue
		}
		freq := v.freq
		if semis := v.vibrato.Sample(e.sampleRate); semis != 0 {
			freq *= math.Pow(2, semis/12.0)
		}
		sample := e.renderWave(v, freq)
		level := quantize(env*(0.15+v.velocity*e.params.VelocityAmp), e.params.StepLevels)
		mix += sample * level * gain
	}
	mix = e.dcBlock(mix)
	if e.lpfAlpha > 0 {
		e.lpf += e.lpfAlpha * (mix - e.lpf)
		mix = e.lpf
	}
	// Centre pan, equal power.
	out := float32(clamp(mix*math.Sqrt2/2, -1, 1))
	return out, out
}

func (e *Engine) dcBlock(x float64) float64 {
	const r = 0.995
	y := x - e.dcPrevIn + r*e.dcPrevOut
	e.dcPrevIn = x
	e.dcPrevOut = y
	return y
}

// polyBLEP reduces aliasing at waveform discontinuities.
// t is the phase position [0,1), dt is the phase increment per sample.
func polyBLEP(t, dt float64) float64 {
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}

func pulse(phase, duty, dt float64) float64 {
	out := -1.0
	if phase < duty {
		out = 1
	}
	out += polyBLEP(phase, dt)
	out -= polyBLEP(math.Mod(phase-duty+1, 1), dt)
	return out
}

func (e *Engine) renderWave(v *voice, freq float64) float64 {
	dt := freq / e.sampleRate
	v.phase += dt
	if v.phase >= 1 {
		v.phase -= math.Floor(v.phase)
	}
	switch v.wave {
	case voicing.Pulse:
		return pulse(v.phase, e.params.PulseDuty, dt)
	case voicing.Square:
		return pulse(v.phase, 0.5, dt)
	case voicing.Triangle:
		return 2*math.Abs(2*v.phase-1) - 1
	case voicing.Noise:
		// The shift register is clocked once per cycle, so Frequency sets
		// the brightness of the noise.
		if v.phase < dt {
			bit := (v.noiseLFSR ^ (v.noiseLFSR >> 1)) & 1
			v.noiseLFSR = (v.noiseLFSR >> 1) | (bit << 15)
		}
		if v.noiseLFSR&1 == 1 {
			return 1
		}
		return -1
	default:
		return 0
	}
}

func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	// Steal the oldest releasing voice, or failing that the oldest active voice.
	oldestRelease := -1
	oldestReleaseAge := -1
	oldestActive := 0
	oldestActiveAge := -1
	for i := range e.voices {
		v := &e.voices[i]
		if v.envState == envRelease && v.age > oldestReleaseAge {
			oldestRelease = i
			oldestReleaseAge = v.age
		}
		if v.age > oldestActiveAge {
			oldestActive = i
			oldestActiveAge = v.age
		}
	}
	if oldestRelease >= 0 {
		return oldestRelease
	}
	return oldestActive
}

func (e *Engine) advanceEnv(v *voice) float64 {
	switch v.envState {
	case envAttack:
		step := 1.0
		if e.params.AttackSec > 0 {
			step = 1.0 / (e.params.AttackSec * e.sampleRate)
		}
		v.env += step
		if v.env >= 1 {
			v.env = 1
			v.envState = envDecay
		}
	case envDecay:
		step := 1.0
		if e.params.DecaySec > 0 {
			step = (1 - e.params.SustainLvl) / (e.params.DecaySec * e.sampleRate)
		}
		v.env -= step
		if v.env <= e.params.SustainLvl {
			v.env = e.params.SustainLvl
			v.envState = envSustain
		}
	case envSustain:
	case envRelease:
		step := 1.0
		if e.params.ReleaseSec > 0 {
			step = max(e.params.SustainLvl, 0.01) / (e.params.ReleaseSec * e.sampleRate)
		}
		v.env -= step
		if v.env <= 0.0001 {
			v.env = 0
			v.envState = envOff
			v.active = false
		}
	case envOff:
		v.active = false
		v.env = 0
	}
	return v.env
}

func quantize(v float64, steps int) float64 {
	if steps <= 1 {
		return v
	}
	n := math.Round(v*float64(steps-1)) / float64(steps-1)
	return clamp(n, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}
