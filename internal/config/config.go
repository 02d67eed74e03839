// Package config loads rhythmkit settings from a YAML file, a .env file and
// RHYTHMKIT_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"

	"github.com/cbegin/rhythmkit-go/internal/effects"
	"github.com/cbegin/rhythmkit-go/internal/logger"
	"github.com/cbegin/rhythmkit-go/internal/pattern"
	"github.com/cbegin/rhythmkit-go/internal/timing"
)

const envPrefix = "RHYTHMKIT_"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Audio     AudioConfig      `yaml:"audio"`
	Scheduler SchedulerConfig  `yaml:"scheduler"`
	Tempo     TempoConfig      `yaml:"tempo"`
	Log       LogConfig        `yaml:"log"`
	Server    ServerConfig     `yaml:"server"`
	Rhythm    pattern.Settings `yaml:"rhythm"`
}

type AudioConfig struct {
	SampleRate int      `yaml:"sample_rate"`
	SoundFont  string   `yaml:"soundfont"`
	Effects    []string `yaml:"effects"`
}

type SchedulerConfig struct {
	LookaheadMS  int `yaml:"lookahead_ms"`
	IntervalMS   int `yaml:"interval_ms"`
	StartDelayMS int `yaml:"start_delay_ms"`
}

func (s SchedulerConfig) Lookahead() time.Duration {
	return time.Duration(s.LookaheadMS) * time.Millisecond
}

func (s SchedulerConfig) Interval() time.Duration {
	return time.Duration(s.IntervalMS) * time.Millisecond
}

func (s SchedulerConfig) StartDelay() time.Duration {
	return time.Duration(s.StartDelayMS) * time.Millisecond
}

type TempoConfig struct {
	MinBPM int `yaml:"min_bpm"`
	MaxBPM int `yaml:"max_bpm"`
}

func (t TempoConfig) Bounds() timing.TempoBounds {
	return timing.TempoBounds{Min: t.MinBPM, Max: t.MaxBPM}
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Default() *Config {
	return &Config{
		Audio: AudioConfig{SampleRate: 44100},
		Scheduler: SchedulerConfig{
			LookaheadMS:  100,
			IntervalMS:   25,
			StartDelayMS: 100,
		},
		Tempo:  TempoConfig{MinBPM: timing.DefaultMinBPM, MaxBPM: timing.DefaultMaxBPM},
		Log:    LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{Addr: ":8080"},
		Rhythm: pattern.DefaultSettings(),
	}
}

// Load reads path (skipped when empty) over the defaults, then applies a
// .env file from the working directory if there is one, then the
// environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(envPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(envPrefix + key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s%s=%q is not a number", ErrInvalidConfig, envPrefix, key, v)
		}
		*dst = n
		return nil
	}
	for key, dst := range map[string]*int{
		"SAMPLE_RATE":    &c.Audio.SampleRate,
		"LOOKAHEAD_MS":   &c.Scheduler.LookaheadMS,
		"INTERVAL_MS":    &c.Scheduler.IntervalMS,
		"START_DELAY_MS": &c.Scheduler.StartDelayMS,
		"MIN_BPM":        &c.Tempo.MinBPM,
		"MAX_BPM":        &c.Tempo.MaxBPM,
		"TEMPO":          &c.Rhythm.Tempo,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	str("SOUNDFONT", &c.Audio.SoundFont)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("ADDR", &c.Server.Addr)
	var sound string
	str("SOUND", &sound)
	if sound != "" {
		c.Rhythm.Sound = pattern.SoundOption(sound)
	}
	// Effect specs contain commas, so the list is ';' separated.
	if v, ok := lookup(envPrefix + "EFFECTS"); ok {
		c.Audio.Effects = nil
		for _, spec := range strings.Split(v, ";") {
			if spec = strings.TrimSpace(spec); spec != "" {
				c.Audio.Effects = append(c.Audio.Effects, spec)
			}
		}
	}
	return nil
}

// Validate checks every field, reporting all problems at once.
func (c *Config) Validate() error {
	var problems []error
	if c.Audio.SampleRate < 8000 || c.Audio.SampleRate > 192000 {
		problems = append(problems, fmt.Errorf("sample rate %d out of range", c.Audio.SampleRate))
	}
	if c.Scheduler.LookaheadMS <= 0 || c.Scheduler.IntervalMS <= 0 || c.Scheduler.StartDelayMS < 0 {
		problems = append(problems, fmt.Errorf("scheduler timings must be positive"))
	}
	if c.Scheduler.IntervalMS >= c.Scheduler.LookaheadMS {
		problems = append(problems, fmt.Errorf("tick interval %dms must be shorter than lookahead %dms",
			c.Scheduler.IntervalMS, c.Scheduler.LookaheadMS))
	}
	if c.Tempo.MinBPM <= 0 || c.Tempo.MinBPM > c.Tempo.MaxBPM {
		problems = append(problems, fmt.Errorf("tempo bounds %d..%d", c.Tempo.MinBPM, c.Tempo.MaxBPM))
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		problems = append(problems, fmt.Errorf("invalid log format: %s", c.Log.Format))
	}
	if _, err := effects.ParseChain(c.Audio.Effects, max(c.Audio.SampleRate, 1)); err != nil {
		problems = append(problems, err)
	}
	if len(problems) == 0 {
		if err := c.Rhythm.ValidateWithin(c.Tempo.Bounds()); err != nil {
			problems = append(problems, err)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(problems...))
	}
	return nil
}
