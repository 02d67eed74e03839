package commands

import (
	"encoding/json"
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/cbegin/rhythmkit-go/internal/notation"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/share"
)

func generateCmd() *cobra.Command {
	var (
		rf     *rhythmFlags
		format string
		perRow int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a rhythm pattern or ensemble",
		Long: `Generate a rhythm pattern from the configured settings and print it.

Examples:
  rhythmkit generate -t 6/8 -m 4 --values dq,q,e
  rhythmkit generate --preset advanced --ensemble layered --parts 3
  rhythmkit generate --format json --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := rf.generate(cmd)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch format {
			case "grid":
				st := newGridStyles()
				fmt.Fprintln(w, renderHeader(st, out.settings))
				if out.pattern != nil {
					fmt.Fprintln(w, renderPattern(st, out.pattern, perRow))
				} else {
					fmt.Fprintln(w, renderEnsemble(st, out.ensemble, perRow))
				}
				if q := share.Encode(out.settings); q != "" {
					fmt.Fprintln(w, st.Label.Render("share: ?"+q))
				}
				return nil
			case "text":
				if out.pattern != nil {
					fmt.Fprintln(w, pattern.FormatText(out.pattern))
					return nil
				}
				for _, part := range out.ensemble.Parts {
					fmt.Fprintf(w, "%s: %s\n", part.Label, pattern.FormatText(part.Pattern))
				}
				return nil
			case "json", "yaml":
				var v any = out.ensemble
				if out.pattern != nil {
					v = notation.Annotate(out.pattern, out.settings.CountingSystem)
				}
				var data []byte
				if format == "json" {
					data, err = json.MarshalIndent(v, "", "  ")
				} else {
					data, err = yaml.Marshal(v)
				}
				if err != nil {
					return err
				}
				_, err = w.Write(append(data, '\n'))
				return err
			default:
				return fmt.Errorf("invalid --format %q (expected grid|text|json|yaml)", format)
			}
		},
	}
	rf = addRhythmFlags(cmd)
	cmd.Flags().StringVar(&format, "format", "grid", "output format: grid|text|json|yaml")
	cmd.Flags().IntVar(&perRow, "per-row", 4, "measures per row in grid output")
	return cmd
}
