package commands

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cbegin/rhythmkit-go/internal/timing"
)

func tapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tap",
		Short: "Tap a tempo with the Enter key",
		Long: `Press Enter on each beat. The estimate averages the last few taps and
starts over after a two second pause. Type r to reset, q to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tapper := timing.NewTapTempo(cfg.Tempo.Bounds(), nil)
			w := cmd.OutOrStdout()
			st := newGridStyles()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			last := 0
		loop:
			for scanner.Scan() {
				switch strings.TrimSpace(strings.ToLower(scanner.Text())) {
				case "q":
					break loop
				case "r":
					tapper.Reset()
					last = 0
					fmt.Fprintln(w, st.Label.Render("reset"))
					continue
				}
				bpm, ok := tapper.Tap()
				if !ok {
					fmt.Fprintln(w, st.Label.Render(fmt.Sprintf("tap %d", tapper.Count())))
					continue
				}
				last = bpm
				fmt.Fprintln(w, st.Title.Render(fmt.Sprintf("%d BPM", bpm)))
			}
			if last > 0 {
				fmt.Fprintf(w, "use --tempo %d\n", last)
			}
			return scanner.Err()
		},
	}
}
