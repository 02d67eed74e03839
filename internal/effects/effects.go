package effects

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownEffect = errors.New("unknown effect")

// Effector processes stereo audio in-place.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// ParseChain builds a chain from effect specs of the form
// "name p1,p2,...", e.g. "reverb 0.5,0.7,0.25" or "comp -18,3". Missing
// parameters take their defaults. An empty list yields a nil chain.
func ParseChain(specs []string, sampleRate int) (*Chain, error) {
	chain := NewChain()
	for _, raw := range specs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		name, rest, _ := strings.Cut(raw, " ")
		var params []float64
		if rest = strings.TrimSpace(rest); rest != "" {
			for _, p := range strings.Split(rest, ",") {
				v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
				if err != nil {
					return nil, fmt.Errorf("effect %q: bad parameter %q", name, p)
				}
				params = append(params, v)
			}
		}
		eff, err := createEffect(strings.ToLower(name), params, sampleRate)
		if err != nil {
			return nil, err
		}
		chain.Add(eff)
	}
	if chain.Len() == 0 {
		return nil, nil
	}
	return chain, nil
}

func createEffect(name string, params []float64, sampleRate int) (Effector, error) {
	param := func(idx int, def float64) float32 {
		if idx < len(params) {
			return float32(params[idx])
		}
		return float32(def)
	}
	switch name {
	case "reverb":
		return NewReverb(sampleRate,
			param(0, 0.5),  // room size
			param(1, 0.7),  // feedback
			param(2, 0.25), // wet
		), nil
	case "comp", "compressor":
		return NewCompressor(sampleRate,
			param(0, -20), // threshold dB
			param(1, 4),   // ratio
			param(2, 5),   // attack ms
			param(3, 100), // release ms
			param(4, 6),   // makeup dB
		), nil
	case "eq":
		eq := NewEQ5Band(sampleRate)
		for i := range 5 {
			eq.SetGain(i, param(i, 1))
		}
		return eq, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, name)
}
