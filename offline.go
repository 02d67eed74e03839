package rhythmkit

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cbegin/rhythmkit-go/internal/ensemble"
	intfx "github.com/cbegin/rhythmkit-go/internal/effects"
	intmix "github.com/cbegin/rhythmkit-go/internal/mixer"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	intsched "github.com/cbegin/rhythmkit-go/internal/scheduler"
)

// renderTail is added after the last pass so release tails are not cut.
const renderTail = 0.5

// RenderOptions control an offline render. Seconds <= 0 renders one pass
// (count-in included), or Playback.Passes passes when looping, plus a short
// tail; with Loop set, passes repeat until Seconds is filled.
type RenderOptions struct {
	Playback   intsched.PlaybackOptions
	SampleRate int
	Seconds    float64
	Effects    []string
	SoundFont  string
}

// RenderPattern renders p to interleaved stereo float32 samples without
// touching the audio device. It uses the same schedule and mixer as Play.
func RenderPattern(p *pattern.Pattern, opts RenderOptions) ([]float32, error) {
	sched, err := intsched.Build(p, opts.Playback)
	if err != nil {
		return nil, err
	}
	return renderSchedule(sched, opts)
}

// RenderEnsemble is RenderPattern for the audible parts of e.
func RenderEnsemble(e *ensemble.Ensemble, opts RenderOptions) ([]float32, error) {
	sched, err := intsched.BuildEnsemble(e, opts.Playback)
	if err != nil {
		return nil, err
	}
	return renderSchedule(sched, opts)
}

func renderSchedule(sched intsched.Schedule, opts RenderOptions) ([]float32, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	engine, err := newEngine(playerConfig{soundFont: opts.SoundFont}, opts.SampleRate)
	if err != nil {
		return nil, err
	}
	chain, err := intfx.ParseChain(opts.Effects, opts.SampleRate)
	if err != nil {
		return nil, err
	}
	var mixOpts []intmix.Option
	if chain != nil {
		mixOpts = append(mixOpts, intmix.WithEffects(chain))
	}
	mix := intmix.New(opts.SampleRate, engine, mixOpts...)

	looping := sched.Loop && sched.Cycle > 0
	seconds := opts.Seconds
	if seconds <= 0 {
		seconds = sched.Length() + renderTail
		if looping && sched.Passes > 1 {
			seconds += float64(sched.Passes-1) * sched.Cycle
		}
	}
	sounds := sched.Sounds
	if looping {
		body := sched.Body()
		for pass, start := 2, sched.Length(); start < seconds; pass, start = pass+1, start+sched.Cycle {
			if sched.Passes > 0 && pass > sched.Passes {
				break
			}
			for _, snd := range body {
				snd.At += start
				sounds = append(sounds, snd)
			}
		}
	}
	for _, snd := range sounds {
		if snd.At >= seconds {
			continue
		}
		if err := mix.PlayNote(snd.Kind, snd.At, snd.Emphasis, snd.Length); err != nil {
			return nil, err
		}
	}
	out := make([]float32, int(seconds*float64(opts.SampleRate))*2)
	mix.Process(out)
	return out, nil
}

// WriteWAV writes samples as a 32-bit float WAV stream.
func WriteWAV(w io.Writer, samples []float32, sampleRate int, channels int) error {
	dataSize := uint32(len(samples) * 4)
	header := struct {
		Riff       [4]byte
		ChunkSize  uint32
		Wave       [4]byte
		Fmt        [4]byte
		FmtSize    uint32
		Format     uint16
		Channels   uint16
		SampleRate uint32
		ByteRate   uint32
		BlockAlign uint16
		Bits       uint16
		Data       [4]byte
		DataSize   uint32
	}{
		Riff:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:  36 + dataSize,
		Wave:       [4]byte{'W', 'A', 'V', 'E'},
		Fmt:        [4]byte{'f', 'm', 't', ' '},
		FmtSize:    16,
		Format:     3, // IEEE float
		Channels:   uint16(channels),
		SampleRate: uint32(sampleRate),
		ByteRate:   uint32(sampleRate * channels * 4),
		BlockAlign: uint16(channels * 4),
		Bits:       32,
		Data:       [4]byte{'d', 'a', 't', 'a'},
		DataSize:   dataSize,
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	buf := make([]byte, 4*1024)
	for len(samples) > 0 {
		n := min(len(samples), len(buf)/4)
		for i, s := range samples[:n] {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
		}
		if _, err := w.Write(buf[:n*4]); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(samples)*4)
	_ = WriteWAV(&buf, samples, sampleRate, channels)
	return buf.Bytes()
}
