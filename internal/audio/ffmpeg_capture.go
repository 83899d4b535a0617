package audio

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voicechat/internal/ports"
)

const (
	// the device counts as acquired once the first PCM byte arrives
	captureStartTimeout = 3 * time.Second
	captureStopGrace    = 1200 * time.Millisecond
	captureReadBuffer   = 8192
)

// FFMPEGCapture records the microphone as raw s16le PCM through an ffmpeg
// subprocess.
type FFMPEGCapture struct {
	command string
	log     zerolog.Logger
}

func NewFFMPEGCapture(command string, log zerolog.Logger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, log: log.With().Str("component", "capture").Logger()}
}

func defaultInput(goos string) (format string, device string) {
	if goos == "darwin" {
		return "avfoundation", ":0"
	}
	return "pulse", "default"
}

func normalizeAudioConfig(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	format, device := defaultInput(runtime.GOOS)
	if cfg.InputFormat == "" {
		cfg.InputFormat = format
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = device
	}
	return cfg
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"pipe:1",
	}
}

// Start acquires the input device and returns once audio is flowing. The
// session must be stopped to release the device.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = normalizeAudioConfig(cfg)

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &lockedBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", c.command, err)
	}

	session := &ffmpegSession{
		pcm:     bufio.NewReaderSize(stdout, captureReadBuffer),
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		exited:  make(chan error, 1),
		log:     c.log,
	}
	go func() {
		session.exited <- cmd.Wait()
		close(session.exited)
	}()

	firstByte := make(chan error, 1)
	go func() {
		_, err := session.pcm.Peek(1)
		firstByte <- err
	}()

	timer := time.NewTimer(captureStartTimeout)
	defer timer.Stop()

	select {
	case err := <-firstByte:
		if ctx.Err() != nil {
			_ = session.Stop()
			return nil, ctx.Err()
		}
		if err != nil {
			exitErr := session.terminate()
			if exitErr == nil {
				exitErr = err
			}
			return nil, fmt.Errorf("ffmpeg exited before capture started: %w: %s", exitErr, strings.TrimSpace(stderr.String()))
		}
	case <-timer.C:
		_ = session.Stop()
		return nil, fmt.Errorf("no audio from %s %q within %s", cfg.InputFormat, cfg.InputDevice, captureStartTimeout)
	case <-ctx.Done():
		_ = session.Stop()
		return nil, ctx.Err()
	}

	c.log.Debug().
		Int("pid", cmd.Process.Pid).
		Str("format", cfg.InputFormat).
		Str("device", cfg.InputDevice).
		Int("sample_rate", cfg.SampleRate).
		Msg("capture started")
	return session, nil
}

type ffmpegSession struct {
	pcm    *bufio.Reader
	stdout io.ReadCloser
	stderr *lockedBuffer

	process *os.Process
	exited  chan error
	log     zerolog.Logger

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.pcm.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop releases the device. Safe to call more than once.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopErr = exitFailure(s.terminate())
		if err := s.stdout.Close(); err != nil && !errors.Is(err, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = err
		}
		if s.stopErr != nil {
			if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, detail)
			}
		}
		s.log.Debug().Err(s.stopErr).Msg("capture released")
	})
	return s.stopErr
}

// terminate interrupts ffmpeg so it flushes and closes the device, kills it
// after captureStopGrace and returns the raw wait result.
func (s *ffmpegSession) terminate() error {
	_ = s.process.Signal(os.Interrupt)

	grace := time.NewTimer(captureStopGrace)
	defer grace.Stop()

	select {
	case err := <-s.exited:
		return err
	case <-grace.C:
		_ = s.process.Kill()
		return <-s.exited
	}
}

// exitFailure drops non-zero exit statuses: ffmpeg exits 255 when interrupted.
func exitFailure(err error) error {
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// lockedBuffer collects subprocess stderr while other goroutines read it.
type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
