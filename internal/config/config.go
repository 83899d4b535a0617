package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voicechat/internal/silence"
)

// Config stores runtime configuration for the voice chat client.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	Silence  SilenceConfig  `yaml:"silence"`
	Segment  SegmentConfig  `yaml:"segment"`
	Playback PlaybackConfig `yaml:"playback"`
	Session  SessionConfig  `yaml:"session"`
	Log      LogConfig      `yaml:"log"`

	// File is the config file that was applied, empty when none existed.
	File string `yaml:"-"`
}

type ServerConfig struct {
	URL              string   `yaml:"url"`
	Path             string   `yaml:"path"`
	HandshakeTimeout Duration `yaml:"handshake_timeout"`
}

type AudioConfig struct {
	RecorderCommand string `yaml:"ffmpeg_command"`
	InputFormat     string `yaml:"input_format"`
	InputDevice     string `yaml:"input_device"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	ChunkSize       int    `yaml:"chunk_size"`
	FFTSize         int    `yaml:"fft_size"`
}

// SilenceConfig picks a preset; non-zero fields override the preset values.
type SilenceConfig struct {
	Preset           string   `yaml:"preset"`
	Threshold        float64  `yaml:"threshold"`
	FramesForSilence int      `yaml:"frames_for_silence"`
	SilenceDuration  Duration `yaml:"silence_duration"`
}

type SegmentConfig struct {
	Format   string `yaml:"format"`
	MinBytes int    `yaml:"min_bytes"`
}

type PlaybackConfig struct {
	DecoderCommand string   `yaml:"ffmpeg_command"`
	SampleRate     int      `yaml:"sample_rate"`
	Channels       int      `yaml:"channels"`
	BufferSize     Duration `yaml:"buffer_size"`
}

type SessionConfig struct {
	CountdownSeconds int `yaml:"countdown_seconds"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

// Duration accepts "750ms"-style strings or integer milliseconds.
type Duration time.Duration

func (d Duration) ToDuration() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		*d = 0
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar")
	}
	parsed, err := parseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", raw)
	}
	return parsed, nil
}

func defaults(home string) Config {
	return Config{
		Server: ServerConfig{
			URL:              "ws://localhost:8000",
			Path:             "/voice_chat",
			HandshakeTimeout: Duration(10 * time.Second),
		},
		Audio: AudioConfig{
			RecorderCommand: "ffmpeg",
			InputFormat:     "pulse",
			InputDevice:     "default",
			SampleRate:      16000,
			Channels:        1,
			ChunkSize:       1024,
			FFTSize:         256,
		},
		Silence: SilenceConfig{Preset: silence.PresetRelaxed},
		Segment: SegmentConfig{
			Format:   "wav",
			MinBytes: 8000,
		},
		Playback: PlaybackConfig{
			DecoderCommand: "ffmpeg",
			SampleRate:     24000,
			Channels:       1,
			BufferSize:     Duration(100 * time.Millisecond),
		},
		Session: SessionConfig{CountdownSeconds: 5},
		Log: LogConfig{
			Dir:   filepath.Join(home, ".local", "state", "voicechat"),
			Level: "info",
		},
	}
}

// Load resolves configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence (lowest first).
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	cfg := defaults(home)

	path := strings.TrimSpace(os.Getenv("VOICECHAT_CONFIG_FILE"))
	explicit := path != ""
	if !explicit {
		path = firstExisting(
			filepath.Join(home, ".config", "voicechat", "config.yaml"),
			filepath.Join(home, ".config", "voicechat", "config.yml"),
		)
	}
	if err := applyFile(&cfg, path, explicit); err != nil {
		return Config{}, err
	}

	applyEnv(&cfg)

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string, required bool) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	cfg.File = path
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.URL = envOrDefault("VOICECHAT_SERVER_URL", cfg.Server.URL)
	cfg.Server.Path = envOrDefault("VOICECHAT_SERVER_PATH", cfg.Server.Path)
	cfg.Server.HandshakeTimeout = Duration(envOrDefaultDuration("VOICECHAT_HANDSHAKE_TIMEOUT", cfg.Server.HandshakeTimeout.ToDuration()))

	cfg.Audio.RecorderCommand = envOrDefault("VOICECHAT_FFMPEG_COMMAND", cfg.Audio.RecorderCommand)
	cfg.Audio.InputFormat = envOrDefault("VOICECHAT_AUDIO_INPUT_FORMAT", cfg.Audio.InputFormat)
	cfg.Audio.InputDevice = firstNonEmpty(
		os.Getenv("VOICECHAT_AUDIO_INPUT_DEVICE"),
		os.Getenv("PULSE_SOURCE"),
		cfg.Audio.InputDevice,
	)
	cfg.Audio.SampleRate = envOrDefaultInt("VOICECHAT_SAMPLE_RATE", cfg.Audio.SampleRate)
	cfg.Audio.Channels = envOrDefaultInt("VOICECHAT_CHANNELS", cfg.Audio.Channels)
	cfg.Audio.ChunkSize = envOrDefaultInt("VOICECHAT_AUDIO_CHUNK_SIZE", cfg.Audio.ChunkSize)
	cfg.Audio.FFTSize = envOrDefaultInt("VOICECHAT_FFT_SIZE", cfg.Audio.FFTSize)

	cfg.Silence.Preset = envOrDefault("VOICECHAT_SILENCE_PRESET", cfg.Silence.Preset)
	cfg.Silence.Threshold = envOrDefaultFloat("VOICECHAT_SILENCE_THRESHOLD", cfg.Silence.Threshold)
	cfg.Silence.FramesForSilence = envOrDefaultInt("VOICECHAT_SILENCE_FRAMES", cfg.Silence.FramesForSilence)
	cfg.Silence.SilenceDuration = Duration(envOrDefaultDuration("VOICECHAT_SILENCE_DURATION", cfg.Silence.SilenceDuration.ToDuration()))

	cfg.Segment.Format = envOrDefault("VOICECHAT_SEGMENT_FORMAT", cfg.Segment.Format)
	cfg.Segment.MinBytes = envOrDefaultInt("VOICECHAT_SEGMENT_MIN_BYTES", cfg.Segment.MinBytes)

	cfg.Playback.DecoderCommand = envOrDefault("VOICECHAT_DECODER_COMMAND", cfg.Playback.DecoderCommand)
	cfg.Playback.SampleRate = envOrDefaultInt("VOICECHAT_PLAYBACK_SAMPLE_RATE", cfg.Playback.SampleRate)
	cfg.Playback.Channels = envOrDefaultInt("VOICECHAT_PLAYBACK_CHANNELS", cfg.Playback.Channels)

	cfg.Session.CountdownSeconds = envOrDefaultInt("VOICECHAT_COUNTDOWN_SECONDS", cfg.Session.CountdownSeconds)

	cfg.Log.Dir = envOrDefault("VOICECHAT_LOG_DIR", cfg.Log.Dir)
	cfg.Log.Level = envOrDefault("VOICECHAT_LOG_LEVEL", cfg.Log.Level)
}

func (c *Config) normalize() error {
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Channels <= 0 {
		c.Audio.Channels = 1
	}
	if c.Audio.ChunkSize < 256 {
		c.Audio.ChunkSize = 1024
	}
	if c.Audio.FFTSize < 32 || c.Audio.FFTSize&(c.Audio.FFTSize-1) != 0 {
		c.Audio.FFTSize = 256
	}
	if c.Playback.SampleRate <= 0 {
		c.Playback.SampleRate = 24000
	}
	if c.Playback.Channels <= 0 {
		c.Playback.Channels = 1
	}
	if c.Segment.MinBytes < 0 {
		c.Segment.MinBytes = 0
	}
	if c.Session.CountdownSeconds <= 0 {
		c.Session.CountdownSeconds = 5
	}

	c.Segment.Format = strings.ToLower(strings.TrimSpace(c.Segment.Format))
	switch c.Segment.Format {
	case "", "wav":
		c.Segment.Format = "wav"
	case "flac":
	default:
		return fmt.Errorf("unsupported segment format %q", c.Segment.Format)
	}

	if _, err := c.Silence.Resolve(); err != nil {
		return err
	}
	return nil
}

// Resolve returns the effective gate tuning.
func (s SilenceConfig) Resolve() (silence.Config, error) {
	cfg, err := silence.Preset(s.Preset)
	if err != nil {
		return silence.Config{}, err
	}
	if s.Threshold > 0 {
		cfg.Threshold = s.Threshold
	}
	if s.FramesForSilence > 0 {
		cfg.FramesForSilence = s.FramesForSilence
	}
	if s.SilenceDuration > 0 {
		cfg.SilenceDuration = s.SilenceDuration.ToDuration()
	}
	return cfg, nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := parseDuration(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
