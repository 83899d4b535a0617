package logging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"voicechat/internal/domain"
)

func TestNewWritesDiagnosticsLog(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	logger, closer, err := New(Config{Dir: dir, Level: "warn"})
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	logger.Info().Msg("filtered out")
	logger.Warn().Str("component", "test").Msg("socket dropped")
	if err := closer.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "voicechat.log"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	got := string(data)
	if strings.Contains(got, "filtered out") {
		t.Fatalf("info line should be below the configured level: %q", got)
	}
	if !strings.Contains(got, "socket dropped") || !strings.Contains(got, "component=test") {
		t.Fatalf("unexpected log contents: %q", got)
	}
	if !strings.Contains(got, "pid=") {
		t.Fatalf("expected pid field: %q", got)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	if _, _, err := New(Config{Dir: t.TempDir(), Level: "chatty"}); err == nil {
		t.Fatalf("expected invalid level error")
	}
	if _, _, err := New(Config{Dir: " "}); err == nil {
		t.Fatalf("expected missing dir error")
	}
}

func TestTranscriptFileAppendsLines(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := OpenTranscript(dir)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.Local)
	if err := store.Append("sess-1", domain.Message{Speaker: domain.SpeakerUser, Text: "hello\nthere", At: at}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append("sess-1", domain.Message{Speaker: domain.SpeakerAI, Text: "hi", At: at}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
	if err := store.Append("sess-1", domain.Message{Text: "late"}); !errors.Is(err, os.ErrClosed) {
		t.Fatalf("expected os.ErrClosed after close, got %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "transcript_log.txt"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	want := "2024-03-01 12:30:00\tsess-1\tuser\thello there\n" +
		"2024-03-01 12:30:00\tsess-1\tai\thi\n"
	if string(data) != want {
		t.Fatalf("unexpected transcript log:\n%q\nwant\n%q", data, want)
	}
}
