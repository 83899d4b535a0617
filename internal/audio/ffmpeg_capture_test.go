package audio

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voicechat/internal/ports"
)

func TestFFMPEGCaptureStartReadAndStop(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "capture.sh", "#!/usr/bin/env bash\nprintf 'hello'\nsleep 2\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	session, err := capture.Start(context.Background(), ports.AudioConfig{})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	buf := make([]byte, 8)
	n, readErr := session.Read(buf)
	if n <= 0 {
		t.Fatalf("expected audio bytes, got n=%d err=%v", n, readErr)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("the first captured byte must not be lost, got %q", string(buf[:n]))
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("second stop failed: %v", err)
	}
}

func TestFFMPEGCaptureStartEarlyExit(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "fail.sh", "#!/usr/bin/env bash\necho 'permission denied' 1>&2\nexit 1\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := capture.Start(ctx, ports.AudioConfig{})
	if err == nil {
		t.Fatalf("expected early exit error")
	}
	if !strings.Contains(err.Error(), "exited before capture started") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("expected stderr in error: %v", err)
	}
}

func TestFFMPEGCaptureStartHonoursContext(t *testing.T) {
	t.Parallel()

	script := writeScript(t, "silent.sh", "#!/usr/bin/env bash\nexec sleep 5\n")
	capture := NewFFMPEGCapture(script, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	started := time.Now()
	_, err := capture.Start(ctx, ports.AudioConfig{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(started) > captureStartTimeout {
		t.Fatalf("start should return when the context ends")
	}
}

func TestCaptureArgsUseNormalizedDefaults(t *testing.T) {
	t.Parallel()

	format, device := defaultInput("linux")
	args := captureArgs(normalizeAudioConfig(ports.AudioConfig{InputFormat: format, InputDevice: device}))
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f pulse", "-i default", "-ac 1", "-ar 16000", "-f s16le", "pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in args: %s", want, joined)
		}
	}
	if !slices.Contains(args, "-nostdin") {
		t.Fatalf("expected -nostdin in args")
	}

	if format, device := defaultInput("darwin"); format != "avfoundation" || device != ":0" {
		t.Fatalf("unexpected darwin defaults: %s %s", format, device)
	}
}

func TestExitFailureIgnoresExitStatus(t *testing.T) {
	t.Parallel()

	err := exec.Command("bash", "-c", "exit 255").Run()
	if err == nil {
		t.Fatalf("expected command to fail")
	}
	if got := exitFailure(err); got != nil {
		t.Fatalf("expected nil for exit error, got %v", got)
	}
	other := errors.New("wait failed")
	if got := exitFailure(other); !errors.Is(got, other) {
		t.Fatalf("expected other errors to pass through, got %v", got)
	}
}

func writeScript(t *testing.T, name string, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}
