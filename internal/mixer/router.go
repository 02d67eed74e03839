package mixer

import (
	"sync"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

// Engine is a polyphonic voice source the mixer can trigger and pull frames
// from. All methods except SetMasterGain are called on the audio thread.
type Engine interface {
	NoteOn(t voicing.Tone) int
	NoteOff(id int)
	RenderFrame() (float32, float32)
	SetMasterGain(gain float64)
	// ActiveVoiceCount returns the number of voices still sounding, release
	// tails included.
	ActiveVoiceCount() int
}

// Router sends each tone to the engine registered for its sound option and
// mixes every engine's output. Sounds without a dedicated engine go to the
// fallback.
type Router struct {
	mu       sync.Mutex
	engines  []Engine
	bySound  map[pattern.SoundOption]int
	fallback int
}

// NewRouter creates a Router whose fallback engine is fallback.
func NewRouter(fallback Engine) *Router {
	return &Router{
		engines: []Engine{fallback},
		bySound: make(map[pattern.SoundOption]int),
	}
}

// Route registers engine for the given sounds. An engine already known to
// the router is reused rather than mixed twice.
func (r *Router) Route(engine Engine, sounds ...pattern.SoundOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, e := range r.engines {
		if e == engine {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(r.engines)
		r.engines = append(r.engines, engine)
	}
	for _, s := range sounds {
		r.bySound[s] = idx
	}
}

func (r *Router) indexFor(kind pattern.SoundOption) int {
	if idx, ok := r.bySound[kind]; ok {
		return idx
	}
	return r.fallback
}

// encodeVoiceID packs engine index and local voice ID into a single int.
func encodeVoiceID(engine int, localID int) int {
	return (engine << 16) | (localID & 0xFFFF)
}

func decodeVoiceID(id int) (engine int, localID int) {
	return (id >> 16) & 0xFF, id & 0xFFFF
}

func (r *Router) NoteOn(t voicing.Tone) int {
	r.mu.Lock()
	idx := r.indexFor(t.Sound)
	e := r.engines[idx]
	r.mu.Unlock()
	return encodeVoiceID(idx, e.NoteOn(t))
}

func (r *Router) NoteOff(id int) {
	idx, local := decodeVoiceID(id)
	r.mu.Lock()
	var e Engine
	if idx < len(r.engines) {
		e = r.engines[idx]
	}
	r.mu.Unlock()
	if e != nil {
		e.NoteOff(local)
	}
}

func (r *Router) RenderFrame() (float32, float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var l, rr float32
	for _, e := range r.engines {
		el, er := e.RenderFrame()
		l += el
		rr += er
	}
	return l, rr
}

func (r *Router) SetMasterGain(gain float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.engines {
		e.SetMasterGain(gain)
	}
}

func (r *Router) ActiveVoiceCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.engines {
		n += e.ActiveVoiceCount()
	}
	return n
}
