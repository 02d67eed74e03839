// Package rhythmkit plays generated rhythm patterns and ensembles on the
// system audio device, renders them offline, and exports them as MIDI.
package rhythmkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	intaudio "github.com/cbegin/rhythmkit-go/internal/audio"
	intchip "github.com/cbegin/rhythmkit-go/internal/chiptune"
	intfx "github.com/cbegin/rhythmkit-go/internal/effects"
	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	intfm "github.com/cbegin/rhythmkit-go/internal/fm"
	"github.com/cbegin/rhythmkit-go/internal/logger"
	intmix "github.com/cbegin/rhythmkit-go/internal/mixer"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	intsched "github.com/cbegin/rhythmkit-go/internal/scheduler"
	intsf "github.com/cbegin/rhythmkit-go/internal/soundfont"
	"github.com/cbegin/rhythmkit-go/internal/timing"
	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

// PlaybackEvent carries playback progress from Watch().
type PlaybackEvent struct {
	Kind    int // one of the Event* constants
	Sound   pattern.SoundOption
	Measure int
	Index   int
	Cycle   int
	Err     error
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
	EventSound
	EventMissed
	EventSinkError
)

// idlePoll is how often a finished session checks for release tails to end.
const idlePoll = 10 * time.Millisecond

// maxTail bounds the wait for release tails after the last sound.
const maxTail = 2 * time.Second

// flushSlack is added to the lookahead when Stop waits for the mixer to start
// the sounds it already holds.
const flushSlack = 250 * time.Millisecond

type PlayerOption func(*playerConfig)

type playerConfig struct {
	sound      pattern.SoundOption
	loop       *bool
	passes     int
	logger     *slog.Logger
	soundFont  string
	lookahead  time.Duration
	interval   time.Duration
	startDelay time.Duration
	bounds     timing.TempoBounds
	effects    []string
	sampleTap  func([]float32)
	backend    backendFactory
	engine     intmix.Engine
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{
		logger:     logger.Get(),
		lookahead:  intsched.DefaultLookahead,
		interval:   intsched.DefaultInterval,
		startDelay: intsched.DefaultStartDelay,
		bounds:     timing.DefaultTempoBounds(),
		backend:    deviceBackend,
	}
}

// WithSound plays every pattern with kind instead of its own sound.
func WithSound(kind pattern.SoundOption) PlayerOption {
	return func(cfg *playerConfig) { cfg.sound = kind }
}

// WithLoop overrides the loop flag of the pattern settings.
func WithLoop(enabled bool) PlayerOption {
	return func(cfg *playerConfig) { cfg.loop = &enabled }
}

// WithPasses ends looping playback after n complete passes. 0 loops until
// Stop.
func WithPasses(n int) PlayerOption {
	return func(cfg *playerConfig) { cfg.passes = max(n, 0) }
}

func WithLogger(l *slog.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSoundFont plays through the SF2 file at path instead of the built-in
// oscillators.
func WithSoundFont(path string) PlayerOption {
	return func(cfg *playerConfig) { cfg.soundFont = path }
}

func WithLookahead(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.lookahead = d }
}

func WithTickInterval(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.interval = d }
}

func WithStartDelay(d time.Duration) PlayerOption {
	return func(cfg *playerConfig) { cfg.startDelay = d }
}

func WithTempoBounds(b timing.TempoBounds) PlayerOption {
	return func(cfg *playerConfig) { cfg.bounds = b }
}

// WithEffects installs a master effect chain, one spec per effect, such as
// "reverb 0.5,0.7,0.25" or "comp -18,3".
func WithEffects(specs ...string) PlayerOption {
	return func(cfg *playerConfig) { cfg.effects = append(cfg.effects, specs...) }
}

// WithSampleTap installs a callback invoked with each generated stereo buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) PlayerOption {
	return func(cfg *playerConfig) { cfg.sampleTap = tap }
}

// backend is the device side of a Player.
type backend interface {
	Play()
	Pause()
	Stop() error
	Position() time.Duration
}

type backendFactory func(sampleRate int, src intaudio.SampleSource) (backend, error)

func deviceBackend(sampleRate int, src intaudio.SampleSource) (backend, error) {
	return intaudio.NewPlayer(sampleRate, src)
}

type Player struct {
	mu         sync.Mutex
	sampleRate int
	cfg        playerConfig
	logger     *slog.Logger
	mixer      *intmix.Mixer
	sched      *intsched.Scheduler
	audio      backend
	masterEQ   *intfx.EQ5Band
	session    *intsched.Session
	cancel     context.CancelFunc
	done       chan struct{}
	eventCh    chan PlaybackEvent
	eventChMu  sync.Mutex
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sound != "" && !cfg.sound.Valid() {
		return nil, fmt.Errorf("%w: unknown sound %q", pattern.ErrInvalidSettings, cfg.sound)
	}
	engine := cfg.engine
	if engine == nil {
		var err error
		if engine, err = newEngine(cfg, sampleRate); err != nil {
			return nil, err
		}
	}
	chain, err := intfx.ParseChain(cfg.effects, sampleRate)
	if err != nil {
		return nil, err
	}
	eq := intfx.NewEQ5Band(sampleRate)
	mixOpts := []intmix.Option{intmix.WithEQ(eq), intmix.WithLogger(cfg.logger)}
	if chain != nil {
		mixOpts = append(mixOpts, intmix.WithEffects(chain))
	}
	if cfg.sampleTap != nil {
		mixOpts = append(mixOpts, intmix.WithSampleTap(cfg.sampleTap))
	}
	mix := intmix.New(sampleRate, engine, mixOpts...)
	return &Player{
		sampleRate: sampleRate,
		cfg:        cfg,
		logger:     cfg.logger,
		mixer:      mix,
		masterEQ:   eq,
		sched: intsched.New(mix,
			intsched.WithLookahead(cfg.lookahead),
			intsched.WithInterval(cfg.interval),
			intsched.WithStartDelay(cfg.startDelay),
			intsched.WithTempoBounds(cfg.bounds),
			intsched.WithLogger(cfg.logger),
		),
	}, nil
}

// newEngine builds the oscillator engine and, when a SoundFont is
// configured, routes every voiced sound through it instead.
func newEngine(cfg playerConfig, sampleRate int) (intmix.Engine, error) {
	chip := intchip.New(sampleRate, intchip.DefaultParams())
	router := intmix.NewRouter(chip)
	router.Route(intfm.New(sampleRate, intfm.DefaultParams()), pattern.Piano, pattern.Clarinet)
	if cfg.soundFont != "" {
		sf, err := intsf.Load(cfg.soundFont, sampleRate)
		if err != nil {
			return nil, err
		}
		router.Route(sf, voicing.Known()...)
	}
	return router, nil
}

func (p *Player) options(s pattern.Settings) intsched.PlaybackOptions {
	opts := intsched.OptionsFromSettings(s)
	if p.cfg.sound != "" {
		opts.Sound = p.cfg.sound
	}
	if p.cfg.loop != nil {
		opts.Loop = *p.cfg.loop
	}
	opts.Passes = p.cfg.passes
	return opts
}

// Play starts p from the beginning, replacing anything already playing.
func (p *Player) Play(pat *pattern.Pattern) error {
	if pat == nil {
		return intsched.ErrEmptyPattern
	}
	opts := p.options(pat.Settings)
	sched, err := p.sched.Resolve(pat, opts.Tempo, opts)
	if err != nil {
		return err
	}
	return p.start(sched)
}

// PlayEnsemble plays the audible parts of e together, or one after another
// in call-and-response mode.
func (p *Player) PlayEnsemble(e *ensemble.Ensemble) error {
	if e == nil {
		return intsched.ErrEmptyPattern
	}
	opts := p.options(e.Settings)
	sched, err := p.sched.ResolveEnsemble(e, opts.Tempo, opts)
	if err != nil {
		return err
	}
	return p.start(sched)
}

// start replaces the current playback with sched.
func (p *Player) start(sched intsched.Schedule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Sounds the previous session already handed to the mixer still play.
	p.sched.Stop()
	if p.cancel != nil {
		p.cancel()
	}
	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
		p.done = nil
	}

	if p.audio == nil {
		backend, err := p.cfg.backend(p.sampleRate, p.mixer)
		if err != nil {
			p.session = nil
			return err
		}
		p.audio = backend
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess, err := p.sched.StartSchedule(ctx, sched, p.mixer)
	if err != nil {
		cancel()
		return err
	}
	done := make(chan struct{})
	p.done = done
	p.session = sess
	p.cancel = cancel
	p.audio.Play()
	go p.forward(sess, done)
	return nil
}

// forward relays session events to the Watch channel and signals the end of
// playback once the last release tail has faded.
func (p *Player) forward(sess *intsched.Session, done chan struct{}) {
	for {
		select {
		case ev := <-sess.Events():
			p.relay(ev)
		case <-sess.Done():
			p.drain(sess)
			if !p.finishedNaturally(sess) {
				return
			}
			p.awaitTails()
			p.finish(sess, done)
			return
		}
	}
}

func (p *Player) drain(sess *intsched.Session) {
	for {
		select {
		case ev := <-sess.Events():
			p.relay(ev)
		default:
			return
		}
	}
}

func (p *Player) finishedNaturally(sess *intsched.Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == sess
}

func (p *Player) awaitTails() {
	deadline := time.Now().Add(maxTail)
	for !p.mixer.Idle() && time.Now().Before(deadline) {
		time.Sleep(idlePoll)
	}
}

func (p *Player) relay(ev intsched.Event) {
	out := PlaybackEvent{
		Sound:   ev.Sound.Kind,
		Measure: ev.Sound.Measure,
		Index:   ev.Sound.Index,
		Cycle:   ev.Cycle,
		Err:     ev.Err,
	}
	switch ev.Kind {
	case intsched.EventDispatched:
		out.Kind = EventSound
	case intsched.EventMissed:
		out.Kind = EventMissed
	case intsched.EventSinkError:
		out.Kind = EventSinkError
	case intsched.EventLoopCompleted:
		out.Kind = EventLoopCompleted
	default:
		// Finished is reported once the tails are done.
		return
	}
	p.sendEvent(out)
}

func (p *Player) finish(sess *intsched.Session, done chan struct{}) {
	p.mu.Lock()
	if p.session != sess || p.done != done {
		p.mu.Unlock()
		return
	}
	p.done = nil
	p.mu.Unlock()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
	close(done)
	p.logger.Debug("playback ended", "dispatched", sess.Stats().Dispatched, "missed", sess.Stats().Missed)
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full; drop event
		}
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// Stop ends playback. No further sounds are handed to the mixer; the ones it
// already holds still start on their frame before the device is released,
// unless the device is paused. Stop is safe to call repeatedly.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.session = nil
	p.mu.Unlock()

	if sess := p.sched.Active(); sess != nil {
		sess.Stop()
		select {
		case <-sess.Done():
		case <-time.After(time.Second):
		}
	}
	p.flush()

	p.mu.Lock()
	if p.session != nil {
		// Play was called again while flushing.
		p.mu.Unlock()
		return nil
	}
	p.mixer.Reset()
	var err error
	if p.audio != nil {
		err = p.audio.Stop()
		p.audio = nil
	}
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded})
		close(done)
	}
	return err
}

// flush waits until the mixer has started every queued sound.
func (p *Player) flush() {
	deadline := time.Now().Add(p.cfg.lookahead + p.cfg.startDelay + flushSlack)
	for p.mixer.Pending() > 0 && time.Now().Before(deadline) {
		time.Sleep(idlePoll)
	}
}

// IsPlaying reports whether a session is still dispatching sounds.
func (p *Player) IsPlaying() bool {
	return p.sched.IsPlaying()
}

// Wait blocks until the current playback ends. When loop playback is enabled
// without a pass limit, Wait blocks until Stop.
// Wait returns immediately if no playback is active.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events:
//   - EventSound / EventMissed: a sound was handed to the mixer, on time or late
//   - EventSinkError: the mixer refused a sound
//   - EventLoopCompleted: a loop pass was queued
//   - EventPlaybackEnded: playback finished or was stopped
//
// The channel is buffered (cap 8) and sends never block, so a slow reader
// loses events. Only the most recent Watch() channel receives events.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	p.mixer.SetVolume(volume)
}

func (p *Player) MasterVolume() float64 {
	return p.mixer.Volume()
}

// SetEQBand sets the gain for a master EQ band (0-4). 1.0 = unity.
// Band frequencies: 0=<200Hz, 1=200-800Hz, 2=800-2.5kHz, 3=2.5-8kHz, 4=>8kHz.
// This takes effect immediately on the audio thread (lock-free).
func (p *Player) SetEQBand(band int, gain float32) {
	p.masterEQ.SetGain(band, gain)
}

func (p *Player) EQBand(band int) float32 {
	return p.masterEQ.Gain(band)
}

// Now is the audio clock in seconds: how much the mixer has rendered.
func (p *Player) Now() float64 {
	return p.mixer.Now()
}

// PlaybackPosition returns the current output position of the audio driver,
// i.e. what the listener actually hears right now. Returns 0 if not playing.
func (p *Player) PlaybackPosition() time.Duration {
	p.mu.Lock()
	a := p.audio
	p.mu.Unlock()
	if a == nil {
		return 0
	}
	return a.Position()
}
