// Package midiexport writes schedules as Standard MIDI Files.
package midiexport

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/rhythmkit-go/internal/scheduler"
	"github.com/cbegin/rhythmkit-go/internal/timing"
	"github.com/cbegin/rhythmkit-go/internal/voicing"
)

// Resolution is the number of ticks per quarter note.
const Resolution = 960

const melodicChannel = 0

var ErrNothingToExport = errors.New("schedule has no sounds")

type event struct {
	tick  uint32
	off   bool
	order int
	msg   []byte
}

// Write encodes sched as a format 1 file: a conductor track with meter and
// tempo, a click track for count-in and metronome, and a rhythm track.
// passes > 1 appends further loop passes without the count-in.
func Write(w io.Writer, sig timing.TimeSignature, sched scheduler.Schedule, passes int) error {
	if len(sched.Sounds) == 0 {
		return ErrNothingToExport
	}
	if err := timing.ValidateSignature(sig); err != nil {
		return err
	}
	passes = max(passes, 1)

	sounds := append([]scheduler.ScheduledSound(nil), sched.Sounds...)
	body := sched.Body()
	for pass := 1; pass < passes; pass++ {
		shift := sched.CountIn + float64(pass)*sched.Cycle
		for _, snd := range body {
			snd.At += shift
			sounds = append(sounds, snd)
		}
	}

	ticks := func(sec float64) uint32 {
		return uint32(math.Round(sec * float64(sched.Tempo) / 60 * Resolution))
	}

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(Resolution)

	var conductor smf.Track
	conductor.Add(0, smf.MetaMeter(uint8(sig.Numerator), uint8(sig.Denominator)))
	conductor.Add(0, smf.MetaTempo(float64(sched.Tempo)))
	conductor.Close(0)
	if err := sm.Add(conductor); err != nil {
		return fmt.Errorf("conductor track: %w", err)
	}

	var clicks, rhythm []event
	programs := map[uint8]bool{}
	for i, snd := range sounds {
		tone, ok := voicing.For(snd.Kind, snd.Emphasis, snd.Length)
		if !ok {
			return fmt.Errorf("sound %q has no MIDI mapping", snd.Kind)
		}
		ch := uint8(voicing.PercussionChannel)
		if tone.Tonal {
			ch = melodicChannel
		}
		start := ticks(snd.At)
		end := max(ticks(snd.At+tone.Duration), start+1)
		evs := []event{
			{tick: start, order: i, msg: midi.NoteOn(ch, tone.Key, voicing.MIDIVelocity(snd.Emphasis))},
			{tick: end, off: true, order: i, msg: midi.NoteOff(ch, tone.Key)},
		}
		if snd.Source == scheduler.SourceNote {
			if tone.Tonal && !programs[tone.Program] {
				programs[tone.Program] = true
				rhythm = append(rhythm, event{tick: start, order: -1, msg: midi.ProgramChange(ch, tone.Program)})
			}
			rhythm = append(rhythm, evs...)
		} else {
			clicks = append(clicks, evs...)
		}
	}

	for _, tr := range []struct {
		name   string
		events []event
	}{{"Clicks", clicks}, {"Rhythm", rhythm}} {
		if len(tr.events) == 0 {
			continue
		}
		if err := sm.Add(buildTrack(tr.name, tr.events)); err != nil {
			return fmt.Errorf("%s track: %w", tr.name, err)
		}
	}
	_, err := sm.WriteTo(w)
	return err
}

// buildTrack orders events by tick, releases before starts on a shared tick,
// and converts absolute ticks to deltas.
func buildTrack(name string, events []event) smf.Track {
	slices.SortStableFunc(events, func(a, b event) int {
		if c := cmp.Compare(a.tick, b.tick); c != 0 {
			return c
		}
		if a.off != b.off {
			if a.off {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.order, b.order)
	})
	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(name))
	var last uint32
	for _, ev := range events {
		tr.Add(ev.tick-last, ev.msg)
		last = ev.tick
	}
	tr.Close(0)
	return tr
}
