package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

var (
	ErrSessionAlreadyActive = errors.New("scheduler session already active")
	ErrNilSink              = errors.New("scheduler: nil sink")
)

const (
	DefaultLookahead  = 100 * time.Millisecond
	DefaultInterval   = 25 * time.Millisecond
	DefaultStartDelay = 100 * time.Millisecond
	eventBuffer       = 64
)

// Clock is the audio clock in seconds. The scheduler only reads it.
type Clock interface {
	Now() float64
}

// Sink plays one sound at an exact audio-clock time.
type Sink interface {
	PlaySound(kind pattern.SoundOption, at float64, emphasis float64) error
}

// NoteSink is a Sink that also wants the written length of each note.
// Sessions use PlayNote when the sink provides it.
type NoteSink interface {
	Sink
	PlayNote(kind pattern.SoundOption, at float64, emphasis float64, length float64) error
}

type SinkFunc func(kind pattern.SoundOption, at float64, emphasis float64) error

func (f SinkFunc) PlaySound(kind pattern.SoundOption, at float64, emphasis float64) error {
	return f(kind, at, emphasis)
}

type EventKind int

const (
	EventDispatched EventKind = iota
	EventMissed
	EventSinkError
	EventLoopCompleted
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventDispatched:
		return "dispatched"
	case EventMissed:
		return "missed"
	case EventSinkError:
		return "sinkError"
	case EventLoopCompleted:
		return "loopCompleted"
	case EventFinished:
		return "finished"
	}
	return "unknown"
}

// Event reports session progress on the Events channel.
type Event struct {
	Kind  EventKind
	Sound ScheduledSound
	Err   error
	Cycle int
}

// Stats counts what a session has handed to its sink.
type Stats struct {
	Dispatched int
	Missed     int
	SinkErrors int
	Cycles     int
}

type Option func(*Scheduler)

func WithLookahead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookahead = d.Seconds()
		}
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithStartDelay sets the gap between Start and the first sound.
func WithStartDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.startDelay = d.Seconds()
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTempoBounds(b timing.TempoBounds) Option {
	return func(s *Scheduler) {
		s.bounds = b
	}
}

// Scheduler owns at most one playing Session per playback surface.
type Scheduler struct {
	clock      Clock
	lookahead  float64
	interval   time.Duration
	startDelay float64
	bounds     timing.TempoBounds
	logger     *slog.Logger

	mu     sync.Mutex
	active *Session
}

func New(clock Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:      clock,
		lookahead:  DefaultLookahead.Seconds(),
		interval:   DefaultInterval,
		startDelay: DefaultStartDelay.Seconds(),
		bounds:     timing.DefaultTempoBounds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve builds the schedule Start would play for p at tempo, checking the
// tempo against this scheduler's bounds.
func (s *Scheduler) Resolve(p *pattern.Pattern, tempo int, opts PlaybackOptions) (Schedule, error) {
	if err := s.bounds.Validate(tempo); err != nil {
		return Schedule{}, err
	}
	opts.Tempo = tempo
	return buildPattern(p, opts, s.bounds)
}

// ResolveEnsemble is Resolve for every audible part of e.
func (s *Scheduler) ResolveEnsemble(e *ensemble.Ensemble, tempo int, opts PlaybackOptions) (Schedule, error) {
	if err := s.bounds.Validate(tempo); err != nil {
		return Schedule{}, err
	}
	opts.Tempo = tempo
	return buildEnsemble(e, opts, s.bounds)
}

// Start schedules p at tempo and begins dispatching to sink. The schedule is
// resolved before anything is touched, so a bad pattern or tempo leaves any
// running session alone.
func (s *Scheduler) Start(ctx context.Context, p *pattern.Pattern, tempo int, sink Sink, opts PlaybackOptions) (*Session, error) {
	sched, err := s.Resolve(p, tempo, opts)
	if err != nil {
		return nil, err
	}
	return s.StartSchedule(ctx, sched, sink)
}

// StartEnsemble is Start for every audible part of e.
func (s *Scheduler) StartEnsemble(ctx context.Context, e *ensemble.Ensemble, tempo int, sink Sink, opts PlaybackOptions) (*Session, error) {
	sched, err := s.ResolveEnsemble(e, tempo, opts)
	if err != nil {
		return nil, err
	}
	return s.StartSchedule(ctx, sched, sink)
}

// StartSchedule plays an already resolved schedule. Any session still
// playing is stopped and its queue dropped first.
func (s *Scheduler) StartSchedule(ctx context.Context, sched Schedule, sink Sink) (*Session, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	if prev := s.active; prev != nil {
		if prev.IsPlaying() {
			s.logger.Warn("stopping previous session before start", "err", ErrSessionAlreadyActive)
		}
		prev.Stop()
	}
	sess := newSession(s, sched, sink)
	sess.anchor(s.clock.Now() + s.startDelay)
	s.active = sess
	s.mu.Unlock()

	s.logger.Debug("session started",
		"sounds", len(sched.Sounds),
		"tempo", sched.Tempo,
		"start", sess.start,
		"loop", sched.Loop)

	sess.tick()
	go sess.run(ctx)
	return sess, nil
}

// Stop stops the active session, if any. It is safe to call at any time.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	if sess != nil {
		sess.Stop()
	}
}

func (s *Scheduler) IsPlaying() bool {
	s.mu.Lock()
	sess := s.active
	s.mu.Unlock()
	return sess != nil && sess.IsPlaying()
}

// Active returns the most recently started session, playing or not.
func (s *Scheduler) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Session is one playback of one schedule. Its queue and running flag are
// touched only through its own methods.
type Session struct {
	clock     Clock
	sink      Sink
	logger    *slog.Logger
	lookahead float64
	interval  time.Duration

	mu        sync.Mutex
	running   bool
	queue     []ScheduledSound
	next      int
	start     float64
	end       float64
	loop      bool
	cycle     []ScheduledSound
	cycleLen  float64
	nextCycle float64
	passes    int
	stats     Stats

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	events   chan Event
}

func newSession(s *Scheduler, sched Schedule, sink Sink) *Session {
	return &Session{
		clock:     s.clock,
		sink:      sink,
		logger:    s.logger,
		lookahead: s.lookahead,
		interval:  s.interval,
		running:   true,
		loop:      sched.Loop && sched.Cycle > 0,
		cycle:     sched.Body(),
		cycleLen:  sched.Cycle,
		passes:    sched.Passes,
		queue:     append([]ScheduledSound(nil), sched.Sounds...),
		end:       sched.Length(),
		nextCycle: sched.Length(),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
		events:    make(chan Event, eventBuffer),
	}
}

// anchor shifts the relative schedule onto the audio clock.
func (s *Session) anchor(at float64) {
	s.start = at
	for i := range s.queue {
		s.queue[i].At += at
	}
	s.end += at
	s.nextCycle += at
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.Stop()
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick hands every sound due within the lookahead window to the sink. Each
// sound is claimed under the lock and dispatched outside it, so a Stop from
// inside the sink keeps the rest of the batch from going out.
func (s *Session) tick() {
	now := s.clock.Now()
	horizon := now + s.lookahead
	for {
		snd, ok := s.claim(now, horizon)
		if !ok {
			break
		}
		s.dispatch(snd)
	}

	s.mu.Lock()
	finished := s.running && !s.loop && s.next >= len(s.queue) && now >= s.end
	if finished {
		s.running = false
		s.queue = nil
		s.next = 0
	}
	s.mu.Unlock()
	if finished {
		s.logger.Debug("session finished", "start", s.start, "end", s.end)
		s.emit(Event{Kind: EventFinished})
		s.stopOnce.Do(func() { close(s.stopCh) })
	}
}

func (s *Session) claim(now, horizon float64) (ScheduledSound, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return ScheduledSound{}, false
	}
	for s.loop && s.nextCycle < horizon {
		if s.passes > 0 && s.stats.Cycles+1 >= s.passes {
			// The last pass is queued; finish at its end.
			s.loop = false
			break
		}
		s.enqueueCycle()
	}
	if s.next >= len(s.queue) || s.queue[s.next].At >= horizon {
		return ScheduledSound{}, false
	}
	snd := s.queue[s.next]
	s.next++
	if snd.At < now {
		snd.Missed = true
	}
	return snd, true
}

// enqueueCycle appends the next loop pass. Caller holds mu.
func (s *Session) enqueueCycle() {
	s.queue = append(s.queue[:0], s.queue[s.next:]...)
	s.next = 0
	for _, snd := range s.cycle {
		snd.At += s.nextCycle
		s.queue = append(s.queue, snd)
	}
	s.nextCycle += s.cycleLen
	s.end = s.nextCycle
	s.stats.Cycles++
	s.emit(Event{Kind: EventLoopCompleted, Cycle: s.stats.Cycles})
}

func (s *Session) dispatch(snd ScheduledSound) {
	var err error
	if ns, ok := s.sink.(NoteSink); ok {
		err = ns.PlayNote(snd.Kind, snd.At, snd.Emphasis, snd.Length)
	} else {
		err = s.sink.PlaySound(snd.Kind, snd.At, snd.Emphasis)
	}

	s.mu.Lock()
	switch {
	case err != nil:
		s.stats.SinkErrors++
	case snd.Missed:
		s.stats.Missed++
		s.stats.Dispatched++
	default:
		s.stats.Dispatched++
	}
	s.mu.Unlock()

	switch {
	case err != nil:
		s.logger.Warn("output sink failed", "sound", snd.Kind, "at", snd.At, "err", err)
		s.emit(Event{Kind: EventSinkError, Sound: snd, Err: err})
	case snd.Missed:
		s.logger.Debug("sound was late", "sound", snd.Kind, "at", snd.At, "late", s.clock.Now()-snd.At)
		s.emit(Event{Kind: EventMissed, Sound: snd})
	default:
		s.emit(Event{Kind: EventDispatched, Sound: snd})
	}
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Stop cancels every sound not yet handed to the sink. Sounds already
// dispatched are not recalled. Stop never blocks and may be called more than
// once, from any goroutine, including from inside the sink.
func (s *Session) Stop() {
	s.mu.Lock()
	s.running = false
	s.queue = nil
	s.next = 0
	s.mu.Unlock()
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Session) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done is closed once the tick loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// Events delivers progress events. The channel is buffered and events are
// dropped when nobody reads it.
func (s *Session) Events() <-chan Event { return s.events }

// Start is the audio-clock time of the first sound of the schedule.
func (s *Session) Start() float64 { return s.start }

// Pending is the number of sounds still queued.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue) - s.next
}

func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
