package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rhythmkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100*time.Millisecond, cfg.Scheduler.Lookahead())
	assert.Equal(t, 25*time.Millisecond, cfg.Scheduler.Interval())
	assert.Equal(t, timing.DefaultTempoBounds(), cfg.Tempo.Bounds())
}

func TestLoadFileOverDefaults(t *testing.T) {
	path := writeFile(t, `
audio:
  sample_rate: 48000
  effects:
    - reverb 0.4,0.6,0.2
scheduler:
  lookahead_ms: 150
rhythm:
  time_signature: 6/8
  tempo: 96
  sound: woodblock
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 48000, cfg.Audio.SampleRate)
	assert.Equal(t, []string{"reverb 0.4,0.6,0.2"}, cfg.Audio.Effects)
	assert.Equal(t, 150, cfg.Scheduler.LookaheadMS)
	assert.Equal(t, 25, cfg.Scheduler.IntervalMS, "unset keys keep their defaults")
	assert.Equal(t, 6, cfg.Rhythm.TimeSignature.Numerator)
	assert.Equal(t, 96, cfg.Rhythm.Tempo)
	assert.Equal(t, pattern.Woodblock, cfg.Rhythm.Sound)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvironmentWins(t *testing.T) {
	path := writeFile(t, "log:\n  level: debug\n")
	t.Setenv("RHYTHMKIT_LOG_LEVEL", "warn")
	t.Setenv("RHYTHMKIT_TEMPO", "120")
	t.Setenv("RHYTHMKIT_SOUND", "claps")
	t.Setenv("RHYTHMKIT_EFFECTS", "comp -18,3; eq 1,1,1,1,0.5")
	t.Setenv("RHYTHMKIT_ADDR", "127.0.0.1:9000")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 120, cfg.Rhythm.Tempo)
	assert.Equal(t, pattern.Claps, cfg.Rhythm.Sound)
	assert.Equal(t, []string{"comp -18,3", "eq 1,1,1,1,0.5"}, cfg.Audio.Effects)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "audio: [unclosed"))
	assert.Error(t, err)

	t.Setenv("RHYTHMKIT_SAMPLE_RATE", "fast")
	_, err = Load("")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidateReportsProblems(t *testing.T) {
	cases := map[string]func(*Config){
		"sample rate":    func(c *Config) { c.Audio.SampleRate = 10 },
		"interval":       func(c *Config) { c.Scheduler.IntervalMS = 200 },
		"tempo bounds":   func(c *Config) { c.Tempo.MinBPM = 300 },
		"log level":      func(c *Config) { c.Log.Level = "chatty" },
		"log format":     func(c *Config) { c.Log.Format = "xml" },
		"effect":         func(c *Config) { c.Audio.Effects = []string{"flanger"} },
		"rhythm tempo":   func(c *Config) { c.Rhythm.Tempo = 20 },
		"rhythm measure": func(c *Config) { c.Rhythm.MeasureCount = 5 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
