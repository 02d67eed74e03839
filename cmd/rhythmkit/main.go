// Command rhythmkit generates rhythm exercises for the classroom and plays,
// prints, shares or exports them.
//
// Usage:
//
//	rhythmkit [flags] <command> [args]
//
// Commands:
//
//	generate    - generate a pattern or ensemble and print it as a grid
//	play        - generate and play through the audio device
//	share       - encode settings into a link or decode one
//	worksheet   - build a printable worksheet (YAML or JSON)
//	export-midi - write a Standard MIDI File
//	render-wav  - render offline to a WAV file
//	serve       - run the HTTP API
//	tap         - estimate a tempo from Enter presses
//
// Configuration is read from --config (YAML), a .env file in the working
// directory, and RHYTHMKIT_* environment variables, in that order.
package main

import (
	"fmt"
	"os"

	"github.com/cbegin/rhythmkit-go/cmd/rhythmkit/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
