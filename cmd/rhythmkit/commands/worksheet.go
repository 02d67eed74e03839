package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbegin/rhythmkit-go/internal/notation"
	"github.com/cbegin/rhythmkit-go/internal/worksheet"
)

func worksheetCmd() *cobra.Command {
	var (
		rf     *rhythmFlags
		ws     = notation.DefaultWorksheetSettings()
		format string
		layout string
		output string
	)
	cmd := &cobra.Command{
		Use:   "worksheet",
		Short: "Build a printable worksheet",
		Long: `Build a worksheet document for a print layer to lay out.

Layouts:
  standard         one exercise per variant, each a little harder
  blankCompletion  copy of the pattern with measures left blank
  quiz             at least four short exercises`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, err := rf.settings(cmd, cfg.Rhythm)
			if err != nil {
				return err
			}
			ws.Format = notation.WorksheetFormat(layout)
			doc, err := worksheet.NewBuilder(rf.generator(), nil).Build(rs, ws)
			if err != nil {
				return err
			}
			var data []byte
			switch format {
			case "yaml":
				data, err = doc.YAML()
			case "json":
				data, err = doc.JSON()
			default:
				return fmt.Errorf("invalid --format %q (expected yaml|json)", format)
			}
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return os.WriteFile(output, data, 0o644)
		},
	}
	rf = addRhythmFlags(cmd)
	fs := cmd.Flags()
	fs.StringVar(&layout, "layout", string(notation.Standard), "worksheet layout: standard|blankCompletion|quiz")
	fs.StringVar(&ws.Title, "title", ws.Title, "worksheet title")
	fs.IntVar(&ws.Variants, "variants", ws.Variants, "number of variants: 1, 2, 3, 4, 6 or 8")
	fs.BoolVar(&ws.IncludeAnswerKey, "answer-key", ws.IncludeAnswerKey, "include an answer key")
	fs.BoolVar(&ws.IncludeSyllables, "syllables", ws.IncludeSyllables, "print counting syllables")
	fs.BoolVar(&ws.IncludeNameField, "name-field", ws.IncludeNameField, "include a name field")
	fs.BoolVar(&ws.IncludeDateField, "date-field", ws.IncludeDateField, "include a date field")
	fs.StringVar(&format, "format", "yaml", "output format: yaml|json")
	fs.StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
