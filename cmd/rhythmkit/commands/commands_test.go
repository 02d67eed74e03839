package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
)

func runCmd(t *testing.T, stdin string, args ...string) (stdout string, err error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err = rootCmd.Execute()
	return out.String(), err
}

func TestGenerateText(t *testing.T) {
	stdout, err := runCmd(t, "", "generate", "--format", "text", "--seed", "7",
		"-t", "3/4", "-m", "2", "--values", "q", "--rest", "0", "--accent", "0")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := strings.TrimSpace(stdout); got != "q q q | q q q" {
		t.Fatalf("unexpected pattern text %q", got)
	}
}

func TestShareDecodePrintsSettings(t *testing.T) {
	stdout, err := runCmd(t, "", "share", "decode", "https://rhythm.example/?bpm=96&sw=40")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(stdout, "tempo: 96") || !strings.Contains(stdout, "swing_percent: 40") {
		t.Fatalf("decoded settings missing fields:\n%s", stdout)
	}

	if _, err := runCmd(t, "", "share", "decode", "bpm=9000"); err == nil {
		t.Fatalf("out-of-range tempo should fail to decode")
	}
}

func TestWorksheetWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheet.json")
	if _, err := runCmd(t, "", "worksheet", "--format", "json", "--variants", "2", "-o", path); err != nil {
		t.Fatalf("worksheet: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"exercises"`) {
		t.Fatalf("worksheet JSON has no exercises:\n%s", data)
	}
}

func TestRenderMeasureShowsTokensAndSyllables(t *testing.T) {
	events := []pattern.Event{
		{Kind: pattern.Note, Value: pattern.Quarter, Accent: true},
		{Kind: pattern.Rest, Value: pattern.Quarter},
	}
	got := renderMeasure(newGridStyles(), events, []string{"ta", "(ta)"})
	for _, want := range []string{"q>", "r:q", "ta", "(ta)"} {
		if !strings.Contains(got, want) {
			t.Fatalf("measure %q missing %q", got, want)
		}
	}
}

func TestDecodeSharedAcceptsEveryForm(t *testing.T) {
	for _, in := range []string{"https://x.test/page?bpm=100", "?bpm=100", "bpm=100"} {
		s, err := decodeShared(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if s.Tempo != 100 {
			t.Fatalf("%q: tempo %d", in, s.Tempo)
		}
	}
}
