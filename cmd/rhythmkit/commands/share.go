package commands

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/cbegin/rhythmkit-go/internal/share"
)

func shareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Encode or decode share links",
	}
	cmd.AddCommand(shareEncodeCmd(), shareDecodeCmd())
	return cmd
}

func shareEncodeCmd() *cobra.Command {
	var (
		rf   *rhythmFlags
		base string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Print the share link and token for a set of settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rf.settings(cmd, cfg.Rhythm)
			if err != nil {
				return err
			}
			token, err := share.EncodeToken(s)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "url:  ", share.ShareURL(base, s))
			fmt.Fprintln(w, "token:", token)
			return nil
		},
	}
	rf = addRhythmFlags(cmd)
	cmd.Flags().StringVar(&base, "base", "https://rhythm.example/", "page URL the query is appended to")
	return cmd
}

func shareDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <url|query|token>",
		Short: "Print the settings a share link carries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := decodeShared(args[0])
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(s)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
