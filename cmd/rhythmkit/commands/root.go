package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cbegin/rhythmkit-go/internal/config"
	"github.com/cbegin/rhythmkit-go/internal/logger"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rhythmkit",
	Short: "Rhythm exercise generator and player",
	Long: `rhythmkit generates rhythm reading exercises from a few difficulty
settings, plays them with a count-in and metronome, and turns them into
worksheets, share links, MIDI files or WAV renders.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Log.Format = logFormat
		}
		if err := logger.Init(loaded.Log.Level, loaded.Log.Format, os.Stderr); err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Command returns the root cobra command for mounting into a parent CLI.
func Command() *cobra.Command {
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text|json")

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(playCmd())
	rootCmd.AddCommand(shareCmd())
	rootCmd.AddCommand(worksheetCmd())
	rootCmd.AddCommand(exportMIDICmd())
	rootCmd.AddCommand(renderWAVCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(tapCmd())
}
