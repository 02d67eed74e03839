// Package mixer turns scheduled sounds into sample frames. It is the audio
// clock the scheduler reads and the sink it hands sounds to: each sound is
// queued at an exact frame and fired when Process reaches it.
package mixer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cbegin/rhythmkit-go/internal/effects"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

var ErrUnknownSound = errors.New("unknown sound")

type trigger struct {
	frame int64
	tone  voicing.Tone
}

type release struct {
	frame int64
	voice int
	fired bool
}

type Option func(*Mixer)

// WithEffects runs every frame through chain before the master EQ.
func WithEffects(chain *effects.Chain) Option {
	return func(m *Mixer) { m.effects = chain }
}

func WithEQ(eq *effects.EQ5Band) Option {
	return func(m *Mixer) { m.eq = eq }
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(m *Mixer) { m.tap = tap }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Mixer) {
		if l != nil {
			m.logger = l
		}
	}
}

type Mixer struct {
	sampleRate int
	engine     Engine
	effects    *effects.Chain
	eq         *effects.EQ5Band
	tap        func([]float32)
	logger     *slog.Logger

	frames atomic.Int64
	volume atomic.Uint64

	mu       sync.Mutex
	triggers []trigger
	releases []release
}

func New(sampleRate int, engine Engine, opts ...Option) *Mixer {
	m := &Mixer{
		sampleRate: sampleRate,
		engine:     engine,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	m.volume.Store(math.Float64bits(1))
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mixer) SampleRate() int { return m.sampleRate }

// Now is the time in seconds of the next frame Process will produce.
func (m *Mixer) Now() float64 {
	return float64(m.frames.Load()) / float64(m.sampleRate)
}

// Frames returns the number of frames produced so far.
func (m *Mixer) Frames() int64 { return m.frames.Load() }

func (m *Mixer) PlaySound(kind pattern.SoundOption, at float64, emphasis float64) error {
	return m.PlayNote(kind, at, emphasis, 0)
}

// PlayNote queues kind to start at audio time at. length is the written note
// length in seconds; tonal voices sustain for most of it. A time that has
// already passed fires on the next frame.
func (m *Mixer) PlayNote(kind pattern.SoundOption, at float64, emphasis float64, length float64) error {
	tone, ok := voicing.For(kind, emphasis, length)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSound, kind)
	}
	frame := int64(math.Round(at * float64(m.sampleRate)))
	if now := m.frames.Load(); frame < now {
		frame = now
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Insertion keeps equal frames in arrival order.
	i := len(m.triggers)
	m.triggers = append(m.triggers, trigger{})
	for i > 0 && m.triggers[i-1].frame > frame {
		m.triggers[i] = m.triggers[i-1]
		i--
	}
	m.triggers[i] = trigger{frame: frame, tone: tone}
	return nil
}

// SetVolume sets the output scalar. 1.0 is unity.
func (m *Mixer) SetVolume(v float64) {
	m.volume.Store(math.Float64bits(max(v, 0)))
}

func (m *Mixer) Volume() float64 {
	return math.Float64frombits(m.volume.Load())
}

// Pending reports how many sounds are queued but not yet started.
func (m *Mixer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triggers)
}

// Idle is true once nothing is queued, every note has been released and the
// engines have finished their tails.
func (m *Mixer) Idle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.triggers) == 0 && len(m.releases) == 0 && m.engine.ActiveVoiceCount() == 0
}

// Reset drops queued sounds and releases every sounding note.
func (m *Mixer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.triggers) > 0 {
		m.logger.Debug("dropping queued sounds", "count", len(m.triggers))
	}
	m.triggers = m.triggers[:0]
	for i := range m.releases {
		if !m.releases[i].fired {
			m.engine.NoteOff(m.releases[i].voice)
		}
	}
	m.releases = m.releases[:0]
}

// Process fills dst with interleaved stereo frames.
func (m *Mixer) Process(dst []float32) {
	frames := len(dst) / 2
	base := m.frames.Load()
	vol := float32(m.Volume())

	m.mu.Lock()
	for f := 0; f < frames; f++ {
		m.dispatchFrame(base + int64(f))
		l, r := m.engine.RenderFrame()
		dst[f*2] = l * vol
		dst[f*2+1] = r * vol
	}
	m.mu.Unlock()
	m.frames.Add(int64(frames))

	if m.effects != nil {
		for i := 0; i+1 < len(dst); i += 2 {
			dst[i], dst[i+1] = m.effects.Process(dst[i], dst[i+1])
		}
	}
	if m.eq != nil {
		for i := 0; i+1 < len(dst); i += 2 {
			dst[i], dst[i+1] = m.eq.Process(dst[i], dst[i+1])
		}
	}
	if m.tap != nil {
		m.tap(dst)
	}
}

// dispatchFrame starts every trigger due at frame and fires due releases.
// Callers hold m.mu.
func (m *Mixer) dispatchFrame(frame int64) {
	n := 0
	for n < len(m.triggers) && m.triggers[n].frame <= frame {
		t := m.triggers[n].tone
		voice := m.engine.NoteOn(t)
		hold := max(int64(math.Round(t.Duration*float64(m.sampleRate))), 1)
		m.addRelease(release{frame: frame + hold, voice: voice})
		n++
	}
	if n > 0 {
		m.triggers = append(m.triggers[:0], m.triggers[n:]...)
	}
	fired := false
	for i := range m.releases {
		if m.releases[i].frame > frame {
			break
		}
		if !m.releases[i].fired {
			m.engine.NoteOff(m.releases[i].voice)
			m.releases[i].fired = true
			fired = true
		}
	}
	if fired {
		m.compactReleases()
	}
}

func (m *Mixer) addRelease(r release) {
	i := len(m.releases)
	m.releases = append(m.releases, release{})
	for i > 0 && m.releases[i-1].frame > r.frame {
		m.releases[i] = m.releases[i-1]
		i--
	}
	m.releases[i] = r
}

func (m *Mixer) compactReleases() {
	j := 0
	for i := range m.releases {
		if !m.releases[i].fired {
			m.releases[j] = m.releases[i]
			j++
		}
	}
	m.releases = m.releases[:j]
}
