package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	rhythmkit "github.com/cbegin/rhythmkit-go"
	"github.com/cbegin/rhythmkit-go/internal/logger"
)

func newPlayer(volume float64, passes int) (*rhythmkit.Player, error) {
	opts := []rhythmkit.PlayerOption{
		rhythmkit.WithPasses(passes),
		rhythmkit.WithLogger(logger.Get()),
		rhythmkit.WithLookahead(cfg.Scheduler.Lookahead()),
		rhythmkit.WithTickInterval(cfg.Scheduler.Interval()),
		rhythmkit.WithStartDelay(cfg.Scheduler.StartDelay()),
		rhythmkit.WithTempoBounds(cfg.Tempo.Bounds()),
		rhythmkit.WithEffects(cfg.Audio.Effects...),
	}
	if cfg.Audio.SoundFont != "" {
		opts = append(opts, rhythmkit.WithSoundFont(cfg.Audio.SoundFont))
	}
	pl, err := rhythmkit.NewPlayer(cfg.Audio.SampleRate, opts...)
	if err != nil {
		return nil, err
	}
	pl.SetMasterVolume(volume)
	return pl, nil
}

func playCmd() *cobra.Command {
	var (
		rf      *rhythmFlags
		volume  float64
		loops   int
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Generate a pattern and play it",
		Long: `Generate a pattern or ensemble and play it through the audio device.

With --loop, playback repeats until interrupted or until --loops passes have
played in full.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rf.generate(cmd)
			if err != nil {
				return err
			}
			pl, err := newPlayer(volume, loops)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			st := newGridStyles()
			fmt.Fprintln(w, renderHeader(st, out.settings))
			events := pl.Watch()
			if out.pattern != nil {
				fmt.Fprintln(w, renderPattern(st, out.pattern, 4))
				err = pl.Play(out.pattern)
			} else {
				fmt.Fprintln(w, renderEnsemble(st, out.ensemble, 4))
				err = pl.PlayEnsemble(out.ensemble)
			}
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, pl, events, verbose, w)
		},
	}
	rf = addRhythmFlags(cmd)
	cmd.Flags().Float64Var(&volume, "volume", 1.0, "master volume scalar")
	cmd.Flags().IntVar(&loops, "loops", 0, "with --loop, stop after N passes (0 = until interrupted)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every sound as it is scheduled")
	return cmd
}

// watch prints progress until playback ends or ctx is cancelled. A pass
// limit is enforced by the player, which ends playback after the last pass.
func watch(ctx context.Context, pl *rhythmkit.Player, events <-chan rhythmkit.PlaybackEvent, verbose bool, w io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "stopped")
			return pl.Stop()
		case ev := <-events:
			switch ev.Kind {
			case rhythmkit.EventPlaybackEnded:
				fmt.Fprintln(w, "playback completed")
				return pl.Stop()
			case rhythmkit.EventLoopCompleted:
				fmt.Fprintf(w, "pass %d done\n", ev.Cycle)
			case rhythmkit.EventSound, rhythmkit.EventMissed:
				if verbose {
					late := ""
					if ev.Kind == rhythmkit.EventMissed {
						late = " (late)"
					}
					fmt.Fprintf(w, "m%d #%d %s%s\n", ev.Measure, ev.Index, ev.Sound, late)
				}
			case rhythmkit.EventSinkError:
				logger.Get().Warn("sound dropped", "sound", ev.Sound, "err", ev.Err)
			}
		}
	}
}
