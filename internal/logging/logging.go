package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

const (
	diagnosticsFile = "voicechat.log"
	timeFormat      = "2006-01-02 15:04:05"
)

// Config selects where logs are written and how verbose they are.
type Config struct {
	Dir   string
	Level string
}

// New opens the diagnostics log under cfg.Dir. The returned closer releases
// the file.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	if err := ensureDir(cfg.Dir); err != nil {
		return zerolog.Nop(), nil, err
	}

	file, err := os.OpenFile(filepath.Join(cfg.Dir, diagnosticsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open diagnostics log: %w", err)
	}

	writer := zerolog.ConsoleWriter{
		Out:        file,
		TimeFormat: timeFormat,
		NoColor:    true,
	}
	logger := zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Int("pid", os.Getpid()).
		Logger()
	return logger, file, nil
}

func parseLevel(raw string) (zerolog.Level, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(raw)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("log directory is not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}
