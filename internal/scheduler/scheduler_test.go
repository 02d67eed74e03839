package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

type fakeClock struct {
	mu  sync.Mutex
	now float64
}

func (c *fakeClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t float64) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type played struct {
	kind     pattern.SoundOption
	at       float64
	emphasis float64
}

type recordingSink struct {
	mu     sync.Mutex
	calls  []played
	failAt map[int]error
	onPlay func(n int)
}

func (s *recordingSink) PlaySound(kind pattern.SoundOption, at float64, emphasis float64) error {
	s.mu.Lock()
	n := len(s.calls)
	s.calls = append(s.calls, played{kind, at, emphasis})
	hook := s.onPlay
	err := s.failAt[n]
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *recordingSink) snapshot() []played {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]played(nil), s.calls...)
}

// newTestScheduler never ticks on its own; tests drive sess.tick directly.
func newTestScheduler(clock Clock, opts ...Option) *Scheduler {
	base := []Option{
		WithInterval(time.Hour),
		WithStartDelay(0),
		WithLookahead(100 * time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
	}
	return New(clock, append(base, opts...)...)
}

func sound(at float64, index int) ScheduledSound {
	return ScheduledSound{At: at, Kind: pattern.Snare, Emphasis: noteEmphasis, Source: SourceNote, Measure: 1, Index: index}
}

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func waitDone(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session loop did not exit")
	}
}

func TestTiedSoundsDispatchInPatternOrder(t *testing.T) {
	// Offsets 0, 0.5, 0.5, 1.0 beats at 120 BPM.
	sched := Schedule{
		Sounds: []ScheduledSound{sound(0, 0), sound(0.25, 1), sound(0.25, 2), sound(0.5, 3)},
		Cycle:  2,
		Tempo:  120,
	}
	clock := &fakeClock{now: 10}
	sink := &recordingSink{}
	sess, err := newTestScheduler(clock).StartSchedule(context.Background(), sched, sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()

	for _, now := range []float64{10.2, 10.45, 10.6} {
		clock.Set(now)
		sess.tick()
	}
	calls := sink.snapshot()
	if len(calls) != 4 {
		t.Fatalf("expected 4 dispatches, got %d", len(calls))
	}
	want := []float64{10, 10.25, 10.25, 10.5}
	for i, c := range calls {
		if c.at != want[i] {
			t.Fatalf("dispatch %d at %v, want %v", i, c.at, want[i])
		}
	}
	var order []int
	for _, ev := range drain(sess.Events()) {
		if ev.Kind == EventDispatched {
			order = append(order, ev.Sound.Index)
		}
	}
	for i, idx := range order {
		if idx != i {
			t.Fatalf("dispatch order %v, want 0 1 2 3", order)
		}
	}
}

func TestStopPreventsFurtherDispatch(t *testing.T) {
	sched := Schedule{
		Sounds: []ScheduledSound{sound(0, 0), sound(0.5, 1), sound(1, 2), sound(1.5, 3)},
		Cycle:  2,
		Tempo:  120,
	}
	clock := &fakeClock{}
	sink := &recordingSink{}
	s := newTestScheduler(clock)
	sess, err := s.StartSchedule(context.Background(), sched, sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Fatalf("first tick should dispatch the downbeat, got %d", got)
	}
	sess.Stop()
	sess.Stop()
	for now := 0.0; now < 3; now += 0.025 {
		clock.Set(now)
		sess.tick()
	}
	if got := sink.count(); got != 1 {
		t.Fatalf("expected no dispatch after stop, got %d", got)
	}
	if sess.IsPlaying() || s.IsPlaying() || sess.Pending() != 0 {
		t.Fatalf("stopped session still playing")
	}
	waitDone(t, sess)
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	s := newTestScheduler(&fakeClock{})
	s.Stop()
	s.Stop()
	if s.IsPlaying() || s.Active() != nil {
		t.Fatalf("fresh scheduler should be idle")
	}
}

func TestStopFromInsideSinkCutsTheBatch(t *testing.T) {
	sched := Schedule{
		Sounds: []ScheduledSound{sound(0, 0), sound(0.01, 1), sound(0.02, 2)},
		Cycle:  1,
		Tempo:  120,
	}
	s := newTestScheduler(&fakeClock{})
	sink := &recordingSink{}
	sink.onPlay = func(int) { s.Stop() }
	sess, err := s.StartSchedule(context.Background(), sched, sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := sink.count(); got != 1 {
		t.Fatalf("stop inside the sink should end the batch, got %d dispatches", got)
	}
	waitDone(t, sess)
}

func TestLateSoundsAreDispatchedAndFlagged(t *testing.T) {
	sched := Schedule{
		Sounds: []ScheduledSound{sound(0.2, 0), sound(0.3, 1), sound(2, 2)},
		Cycle:  3,
		Tempo:  120,
	}
	clock := &fakeClock{now: 5}
	sink := &recordingSink{}
	sess, err := newTestScheduler(clock).StartSchedule(context.Background(), sched, sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()
	if sink.count() != 0 {
		t.Fatalf("nothing is due inside the first window")
	}
	clock.Set(6)
	sess.tick()
	if got := sink.count(); got != 2 {
		t.Fatalf("late sounds should still play, got %d", got)
	}
	missed := 0
	for _, ev := range drain(sess.Events()) {
		if ev.Kind == EventMissed {
			if !ev.Sound.Missed {
				t.Fatalf("missed event without the flag: %+v", ev.Sound)
			}
			missed++
		}
	}
	if missed != 2 || sess.Stats().Missed != 2 {
		t.Fatalf("expected 2 missed, got %d (stats %+v)", missed, sess.Stats())
	}
}

func TestSinkErrorDoesNotStopTheSession(t *testing.T) {
	sched := Schedule{
		Sounds: []ScheduledSound{sound(0, 0), sound(0.01, 1), sound(0.02, 2)},
		Cycle:  1,
		Tempo:  120,
	}
	bad := errors.New("sample failed to decode")
	var logs bytes.Buffer
	s := newTestScheduler(&fakeClock{}, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	sink := &recordingSink{failAt: map[int]error{1: bad}}
	sess, err := s.StartSchedule(context.Background(), sched, sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()
	if got := sink.count(); got != 3 {
		t.Fatalf("dispatch should continue past a sink error, got %d", got)
	}
	var sinkErrs []Event
	for _, ev := range drain(sess.Events()) {
		if ev.Kind == EventSinkError {
			sinkErrs = append(sinkErrs, ev)
		}
	}
	if len(sinkErrs) != 1 || !errors.Is(sinkErrs[0].Err, bad) || sinkErrs[0].Sound.Index != 1 {
		t.Fatalf("unexpected sink error events: %+v", sinkErrs)
	}
	if !bytes.Contains(logs.Bytes(), []byte("output sink failed")) {
		t.Fatalf("sink error was not logged: %s", logs.String())
	}
	if st := sess.Stats(); st.Dispatched != 2 || st.SinkErrors != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRestartStopsPreviousSession(t *testing.T) {
	var logs bytes.Buffer
	clock := &fakeClock{}
	s := newTestScheduler(clock, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	old := &recordingSink{}
	first, err := s.StartSchedule(context.Background(), Schedule{
		Sounds: []ScheduledSound{sound(1, 0), sound(2, 1)},
		Cycle:  3,
		Tempo:  120,
	}, old)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	fresh := &recordingSink{}
	second, err := s.StartSchedule(context.Background(), Schedule{
		Sounds: []ScheduledSound{sound(0, 0)},
		Cycle:  1,
		Tempo:  120,
	}, fresh)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer second.Stop()
	waitDone(t, first)
	if first.IsPlaying() || first.Pending() != 0 {
		t.Fatalf("previous session was not drained")
	}
	clock.Set(2.5)
	first.tick()
	if old.count() != 0 {
		t.Fatalf("old session leaked %d sounds", old.count())
	}
	if fresh.count() != 1 || s.Active() != second {
		t.Fatalf("new session did not take over")
	}
	if !bytes.Contains(logs.Bytes(), []byte(ErrSessionAlreadyActive.Error())) {
		t.Fatalf("auto-stop was not logged: %s", logs.String())
	}
}

func TestInvalidStartLeavesRunningSessionAlone(t *testing.T) {
	s := newTestScheduler(&fakeClock{})
	sess, err := s.StartSchedule(context.Background(), Schedule{
		Sounds: []ScheduledSound{sound(1, 0)},
		Cycle:  2,
		Tempo:  120,
	}, &recordingSink{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()
	p := testPattern(t, "4/4", "q q q q")
	if _, err := s.Start(context.Background(), p, 400, &recordingSink{}, PlaybackOptions{}); !errors.Is(err, timing.ErrInvalidTempo) {
		t.Fatalf("expected ErrInvalidTempo, got %v", err)
	}
	if _, err := s.Start(context.Background(), p, 120, nil, PlaybackOptions{}); !errors.Is(err, ErrNilSink) {
		t.Fatalf("expected ErrNilSink, got %v", err)
	}
	if !sess.IsPlaying() || s.Active() != sess {
		t.Fatalf("a rejected start must not disturb the running session")
	}
}

func TestSessionFinishesAfterLastPass(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordingSink{}
	sess, err := newTestScheduler(clock).StartSchedule(context.Background(), Schedule{
		Sounds: []ScheduledSound{sound(0, 0), sound(0.5, 1)},
		Cycle:  1,
		Tempo:  120,
	}, sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Set(0.45)
	sess.tick()
	if !sess.IsPlaying() {
		t.Fatalf("session ended before the pattern did")
	}
	clock.Set(1.0)
	sess.tick()
	if sess.IsPlaying() {
		t.Fatalf("session should finish once the clock passes the end")
	}
	waitDone(t, sess)
	var finished bool
	for _, ev := range drain(sess.Events()) {
		finished = finished || ev.Kind == EventFinished
	}
	if !finished || sink.count() != 2 {
		t.Fatalf("finished=%v dispatches=%d", finished, sink.count())
	}
}

func TestLoopRepeatsBodyWithoutCountIn(t *testing.T) {
	p := testPattern(t, "2/4", "q q")
	opts := PlaybackOptions{Tempo: 120, Sound: pattern.Drums, CountInMeasures: 1, Loop: true}
	clock := &fakeClock{}
	sink := &recordingSink{}
	s := newTestScheduler(clock)
	sess, err := s.Start(context.Background(), p, 120, sink, opts)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer sess.Stop()
	for now := 0.0; now < 3.0; now += 0.025 {
		clock.Set(now)
		sess.tick()
	}
	// Count-in clicks at 0 and 0.5, then notes every 0.5 s from 1.0.
	calls := sink.snapshot()
	clicks := 0
	for i, c := range calls {
		if c.kind == pattern.Metronome {
			clicks++
		}
		if i > 0 && c.at < calls[i-1].at {
			t.Fatalf("dispatch went backwards at %d: %v < %v", i, c.at, calls[i-1].at)
		}
	}
	if clicks != 2 {
		t.Fatalf("count-in should only play once, got %d clicks", clicks)
	}
	if len(calls) < 6 {
		t.Fatalf("loop should keep playing, got %d sounds", len(calls))
	}
	if last := calls[len(calls)-1].at; last > 3.1 {
		t.Fatalf("dispatched beyond the lookahead: %v", last)
	}
	if sess.Stats().Cycles < 2 {
		t.Fatalf("expected loop cycles, stats %+v", sess.Stats())
	}
}

func TestPassesLimitLoopPlayback(t *testing.T) {
	clock := &fakeClock{}
	sink := &recordingSink{}
	sess, err := newTestScheduler(clock).StartSchedule(context.Background(), Schedule{
		Sounds: []ScheduledSound{sound(0, 0), sound(0.5, 1)},
		Cycle:  1,
		Loop:   true,
		Passes: 3,
		Tempo:  120,
	}, sink)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	for now := 0.0; now < 4.0; now += 0.025 {
		clock.Set(now)
		sess.tick()
	}
	waitDone(t, sess)
	if sess.IsPlaying() {
		t.Fatalf("session should end after the last pass")
	}
	calls := sink.snapshot()
	if len(calls) != 6 {
		t.Fatalf("three passes should dispatch 6 sounds, got %d", len(calls))
	}
	if last := calls[len(calls)-1].at; !near(last, 2.5) {
		t.Fatalf("last sound at %v, want 2.5", last)
	}
	if got := sess.Stats().Cycles; got != 2 {
		t.Fatalf("cycles = %d, want 2", got)
	}
}

func TestContextCancelStopsSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(&fakeClock{}, WithInterval(time.Millisecond), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	sess, err := s.StartSchedule(ctx, Schedule{
		Sounds: []ScheduledSound{sound(5, 0)},
		Cycle:  6,
		Tempo:  120,
	}, &recordingSink{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	waitDone(t, sess)
	if sess.IsPlaying() {
		t.Fatalf("cancelled session still playing")
	}
}
