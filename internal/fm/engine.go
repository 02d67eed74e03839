// Package fm is a two-operator FM voice engine for the tonal sounds. A sine
// modulator with optional self-feedback drives the phase of a sine carrier;
// each operator has its own envelope so the brightness can fall away faster
// than the loudness, as it does on a struck string.
package fm

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/rhythmkit-go/internal/lfo"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

const twoPi = math.Pi * 2

type Params struct {
	Polyphony   int
	MasterGain  float64
	VelocityAmp float64
	LPFCutoff   float64 // lowpass filter cutoff in Hz (0 = disabled)
}

func DefaultParams() Params {
	return Params{
		Polyphony:   16,
		MasterGain:  0.45,
		VelocityAmp: 0.8,
		LPFCutoff:   9000,
	}
}

// opShape is the static setup of one operator.
type opShape struct {
	mul            float64
	ar, dr, sl, rr float64 // seconds, seconds, level, seconds
}

type patch struct {
	carrier   opShape
	modulator opShape
	index     float64
	feedback  float64
}

var patches = map[pattern.SoundOption]patch{
	// Bright hammer that mellows quickly; ratio 1 gives every harmonic.
	pattern.Piano: {
		carrier:   opShape{mul: 1, ar: 0.002, dr: 1.2, sl: 0.2, rr: 0.25},
		modulator: opShape{mul: 1, ar: 0.001, dr: 0.4, sl: 0.08, rr: 0.2},
		index:     2.4,
		feedback:  0.15,
	},
	// Ratio 2 leaves mostly odd partials, the hollow reed sound.
	pattern.Clarinet: {
		carrier:   opShape{mul: 1, ar: 0.03, dr: 0.1, sl: 0.85, rr: 0.08},
		modulator: opShape{mul: 2, ar: 0.05, dr: 0.2, sl: 0.7, rr: 0.1},
		index:     1.6,
	},
}

var defaultPatch = patch{
	carrier:   opShape{mul: 1, ar: 0.005, dr: 0.12, sl: 0.75, rr: 0.2},
	modulator: opShape{mul: 2, ar: 0.005, dr: 0.12, sl: 0.75, rr: 0.2},
	index:     1.6,
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

type operator struct {
	shape    opShape
	phase    float64
	env      float64
	envState envState
	relStep  float64
}

type voice struct {
	active   bool
	id       int
	velocity float64
	freq     float64
	carrier  operator
	mod      operator
	index    float64
	feedback float64
	fbPrev   float64
	vibrato  lfo.LFO
}

// Engine renders FM voices. NoteOn, NoteOff and RenderFrame must be called
// from one goroutine; SetMasterGain may be called from any.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	nextID     int
	masterGain uint64
	lpf        float64
	lpfAlpha   float64
}

func New(sampleRate int, params Params) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = 16
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	return e
}

func (e *Engine) NoteOn(t voicing.Tone) int {
	slot := e.stealVoice()
	id := e.nextID
	e.nextID = (e.nextID + 1) & 0xFFFF
	p, ok := patches[t.Sound]
	if !ok {
		p = defaultPatch
	}
	v := &e.voices[slot]
	*v = voice{
		active:   true,
		id:       id,
		velocity: clamp(t.Velocity, 0, 1),
		freq:     t.Frequency,
		carrier:  operator{shape: p.carrier},
		mod:      operator{shape: p.modulator},
		index:    p.index,
		feedback: p.feedback,
	}
	v.vibrato.Set(t.Vibrato, t.VibratoHz, lfo.Sine)
	v.vibrato.SetDelay(int(0.1 * e.sampleRate))
	return id
}

func (e *Engine) NoteOff(id int) {
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.id == id {
			e.release(&v.carrier)
			e.release(&v.mod)
		}
	}
}

func (e *Engine) release(op *operator) {
	if op.envState == envRelease || op.envState == envOff {
		return
	}
	op.envState = envRelease
	op.relStep = op.env / math.Max(op.shape.rr*e.sampleRate, 1)
}

func (e *Engine) RenderFrame() (float32, float32) {
	gain := e.masterGainValue()
	var mix float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		advanceOpEnv(&v.carrier, e.sampleRate)
		advanceOpEnv(&v.mod, e.sampleRate)
		if v.carrier.envState == envOff {
			v.active = false
			continue
		}
		mix += e.renderVoice(v) * gain * (0.2 + v.velocity*e.params.VelocityAmp)

		freq := v.freq
		if semis := v.vibrato.Sample(e.sampleRate); semis != 0 {
			freq *= math.Pow(2, semis/12.0)
		}
		v.carrier.phase = wrap(v.carrier.phase + twoPi*freq*v.carrier.shape.mul/e.sampleRate)
		v.mod.phase = wrap(v.mod.phase + twoPi*freq*v.mod.shape.mul/e.sampleRate)
	}
	if e.lpfAlpha > 0 {
		e.lpf += e.lpfAlpha * (mix - e.lpf)
		mix = e.lpf
	}
	out := float32(clamp(mix*math.Sqrt2/2, -1, 1))
	return out, out
}

// renderVoice runs the modulator, with feedback, into the carrier.
func (e *Engine) renderVoice(v *voice) float64 {
	fb := v.fbPrev * v.feedback * math.Pi
	m := math.Sin(v.mod.phase+fb) * v.mod.env
	v.fbPrev = m
	return math.Sin(v.carrier.phase+m*v.index) * v.carrier.env
}

// stealVoice returns a free slot, or the one whose carrier is quietest.
func (e *Engine) stealVoice() int {
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	quiet := 0
	for i := 1; i < len(e.voices); i++ {
		if e.voices[i].carrier.env < e.voices[quiet].carrier.env {
			quiet = i
		}
	}
	return quiet
}

func advanceOpEnv(op *operator, sampleRate float64) {
	s := op.shape
	switch op.envState {
	case envAttack:
		op.env += 1.0 / math.Max(s.ar*sampleRate, 1)
		if op.env >= 1 {
			op.env = 1
			op.envState = envDecay
		}
	case envDecay:
		op.env -= (1 - s.sl) / math.Max(s.dr*sampleRate, 1)
		if op.env <= s.sl {
			op.env = s.sl
			op.envState = envSustain
		}
	case envRelease:
		op.env -= op.relStep
		if op.env <= 0.0001 {
			op.env = 0
			op.envState = envOff
		}
	case envOff:
		op.env = 0
	}
}

func wrap(phase float64) float64 {
	if phase >= twoPi {
		phase -= twoPi
	}
	return phase
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
