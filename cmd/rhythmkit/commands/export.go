package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rhythmkit "github.com/cbegin/rhythmkit-go"
	"github.com/cbegin/rhythmkit-go/internal/logger"
	"github.com/cbegin/rhythmkit-go/internal/midiexport"
	"github.com/cbegin/rhythmkit-go/internal/scheduler"
)

func (g generated) schedule() (scheduler.Schedule, error) {
	opts := scheduler.OptionsFromSettings(g.settings)
	if g.pattern != nil {
		return scheduler.Build(g.pattern, opts)
	}
	return scheduler.BuildEnsemble(g.ensemble, opts)
}

func exportMIDICmd() *cobra.Command {
	var (
		rf     *rhythmFlags
		passes int
	)
	cmd := &cobra.Command{
		Use:   "export-midi <file.mid>",
		Short: "Write a pattern as a Standard MIDI File",
		Long: `Write the generated pattern, its count-in and metronome clicks as a
type 1 Standard MIDI File. Percussion sounds go to channel 10, piano and
clarinet to channel 1.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rf.generate(cmd)
			if err != nil {
				return err
			}
			sched, err := out.schedule()
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := midiexport.Write(f, out.signature(), sched, passes); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			logger.Get().Info("wrote midi file", "path", args[0], "sounds", len(sched.Sounds), "passes", passes)
			return nil
		},
	}
	rf = addRhythmFlags(cmd)
	cmd.Flags().IntVar(&passes, "passes", 1, "number of passes to write when looping")
	return cmd
}

func renderWAVCmd() *cobra.Command {
	var (
		rf      *rhythmFlags
		seconds float64
	)
	cmd := &cobra.Command{
		Use:   "render-wav <file.wav>",
		Short: "Render a pattern offline to a WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rf.generate(cmd)
			if err != nil {
				return err
			}
			opts := rhythmkit.RenderOptions{
				Playback:   scheduler.OptionsFromSettings(out.settings),
				SampleRate: cfg.Audio.SampleRate,
				Seconds:    seconds,
				Effects:    cfg.Audio.Effects,
				SoundFont:  cfg.Audio.SoundFont,
			}
			var samples []float32
			if out.pattern != nil {
				samples, err = rhythmkit.RenderPattern(out.pattern, opts)
			} else {
				samples, err = rhythmkit.RenderEnsemble(out.ensemble, opts)
			}
			if err != nil {
				return err
			}
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := rhythmkit.WriteWAV(f, samples, cfg.Audio.SampleRate, 2); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%.2fs)\n", args[0], float64(len(samples)/2)/float64(cfg.Audio.SampleRate))
			return nil
		},
	}
	rf = addRhythmFlags(cmd)
	cmd.Flags().Float64Var(&seconds, "seconds", 0, "length to render (0 = one pass plus tail)")
	return cmd
}
