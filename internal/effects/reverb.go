package effects

// Reverb is a small Schroeder room: four damped comb filters in parallel
// feeding two allpass filters. The right channel reads the comb bank with a
// slightly longer tap set for width.
type Reverb struct {
	combs   [2][4]combFilter
	allpass [2][2]allpassFilter
	wet     float32
}

type combFilter struct {
	buf   []float32
	pos   int
	fb    float32
	damp  float32
	store float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

const (
	reverbDamping = 0.3
	stereoSpread  = 23
)

// NewReverb creates a reverb effect.
// roomSize: 0..1 controls delay lengths
// feedback: 0..1 controls decay time
// wet: wet/dry mix 0..1
func NewReverb(sampleRate int, roomSize, feedback, wet float32) *Reverb {
	base := max(int(float32(sampleRate)*clamp(roomSize, 0, 1)*0.05), 10)
	fb := clamp(feedback, 0, 0.95)
	r := &Reverb{wet: clamp(wet, 0, 1)}
	// Comb and allpass lengths use prime-ish ratios to avoid resonances.
	combLens := [4]int{base, base * 1117 / 1000, base * 1271 / 1000, base * 1437 / 1000}
	apLens := [2]int{base * 347 / 1000, base * 213 / 1000}
	for ch := range 2 {
		spread := ch * stereoSpread
		for i := range r.combs[ch] {
			r.combs[ch][i] = combFilter{
				buf:  make([]float32, combLens[i]+spread),
				fb:   fb,
				damp: reverbDamping,
			}
		}
		for i := range r.allpass[ch] {
			r.allpass[ch][i] = allpassFilter{
				buf: make([]float32, max(apLens[i]+spread, 1)),
				fb:  0.5,
			}
		}
	}
	return r
}

func (r *Reverb) Process(l, rr float32) (float32, float32) {
	mono := (l + rr) * 0.5
	var out [2]float32
	for ch := range 2 {
		for i := range r.combs[ch] {
			out[ch] += r.combs[ch][i].process(mono)
		}
		out[ch] *= 0.25
		for i := range r.allpass[ch] {
			out[ch] = r.allpass[ch][i].process(out[ch])
		}
	}
	return l*(1-r.wet) + out[0]*r.wet, rr*(1-r.wet) + out[1]*r.wet
}

func (r *Reverb) Reset() {
	for ch := range 2 {
		for i := range r.combs[ch] {
			clear(r.combs[ch][i].buf)
			r.combs[ch][i].pos = 0
			r.combs[ch][i].store = 0
		}
		for i := range r.allpass[ch] {
			clear(r.allpass[ch][i].buf)
			r.allpass[ch][i].pos = 0
		}
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.pos] = in + c.store*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
