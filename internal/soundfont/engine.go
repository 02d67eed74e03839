// Package soundfont plays voicings through a General MIDI SoundFont.
// Percussive sounds map to drum keys on the percussion channel; tonal
// sounds get a melodic channel with their program selected on first use.
package soundfont

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"

	"github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

const (
	blockFrames = 64
	maxChannels = 16
	programCmd  = 0xC0
	defaultGain = 1.0
	tailSeconds = 0.5
)

type note struct {
	channel int32
	key     int32
}

// Engine renders tones with a meltysynth synthesizer. Like the oscillator
// engine it is driven from a single audio goroutine.
type Engine struct {
	synth      *meltysynth.Synthesizer
	sampleRate int
	gain       atomic.Uint64

	programs map[uint8]int32
	nextChan int32
	notes    map[int]note
	nextID   int
	tail     int

	left, right []float32
	pos         int
}

// Load reads an SF2 file from path.
func Load(path string, sampleRate int) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read soundfont: %w", err)
	}
	return New(bytes.NewReader(data), sampleRate)
}

func New(r io.Reader, sampleRate int) (*Engine, error) {
	sf, err := meltysynth.NewSoundFont(r)
	if err != nil {
		return nil, fmt.Errorf("parse soundfont: %w", err)
	}
	settings := meltysynth.NewSynthesizerSettings(int32(sampleRate))
	synth, err := meltysynth.NewSynthesizer(sf, settings)
	if err != nil {
		return nil, fmt.Errorf("create synthesizer: %w", err)
	}
	e := &Engine{
		synth:      synth,
		sampleRate: sampleRate,
		programs:   make(map[uint8]int32),
		notes:      make(map[int]note),
		left:       make([]float32, blockFrames),
		right:      make([]float32, blockFrames),
		pos:        blockFrames,
	}
	e.gain.Store(math.Float64bits(defaultGain))
	return e, nil
}

// channelFor picks the MIDI channel for t, selecting its program the first
// time a tonal sound is heard.
func (e *Engine) channelFor(t voicing.Tone) int32 {
	if !t.Tonal {
		return voicing.PercussionChannel
	}
	if ch, ok := e.programs[t.Program]; ok {
		return ch
	}
	ch := e.nextChan
	if ch == voicing.PercussionChannel {
		ch++
	}
	if ch >= maxChannels {
		// Out of channels; share the first melodic one.
		ch = 0
	} else {
		e.nextChan = ch + 1
		e.synth.ProcessMidiMessage(ch, programCmd, int32(t.Program), 0)
	}
	e.programs[t.Program] = ch
	return ch
}

func (e *Engine) NoteOn(t voicing.Tone) int {
	ch := e.channelFor(t)
	key := int32(t.Key)
	e.synth.NoteOn(ch, key, int32(voicing.MIDIVelocity(t.Velocity)))
	id := e.nextID
	e.nextID = (e.nextID + 1) & 0xFFFF
	e.notes[id] = note{channel: ch, key: key}
	return id
}

func (e *Engine) NoteOff(id int) {
	n, ok := e.notes[id]
	if !ok {
		return
	}
	delete(e.notes, id)
	e.synth.NoteOff(n.channel, n.key)
	e.tail = int(tailSeconds * float64(e.sampleRate))
}

func (e *Engine) RenderFrame() (float32, float32) {
	if e.pos >= blockFrames {
		e.synth.Render(e.left, e.right)
		e.pos = 0
	}
	g := float32(math.Float64frombits(e.gain.Load()))
	l, r := e.left[e.pos]*g, e.right[e.pos]*g
	e.pos++
	if e.tail > 0 && len(e.notes) == 0 {
		e.tail--
	}
	return l, r
}

func (e *Engine) SetMasterGain(gain float64) {
	e.gain.Store(math.Float64bits(max(gain, 0)))
}

// ActiveVoiceCount counts held notes, plus one while the release tail of the
// last note may still be sounding.
func (e *Engine) ActiveVoiceCount() int {
	n := len(e.notes)
	if n == 0 && e.tail > 0 {
		return 1
	}
	return n
}
