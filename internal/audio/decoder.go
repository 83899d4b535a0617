package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"voicechat/internal/ports"
)

// FFMPEGDecoder converts any container ffmpeg understands into s16le PCM
// at the playback format.
type FFMPEGDecoder struct {
	command string
	log     zerolog.Logger
}

func NewFFMPEGDecoder(command string, log zerolog.Logger) *FFMPEGDecoder {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGDecoder{command: command, log: log.With().Str("component", "decoder").Logger()}
}

func decodeArgs(format ports.PlaybackFormat) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ac", strconv.Itoa(format.Channels),
		"-ar", strconv.Itoa(format.SampleRate),
		"pipe:1",
	}
}

func normalizePlaybackFormat(format ports.PlaybackFormat) ports.PlaybackFormat {
	if format.SampleRate <= 0 {
		format.SampleRate = 24000
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	return format
}

func (d *FFMPEGDecoder) Decode(ctx context.Context, data []byte, format ports.PlaybackFormat) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("empty audio buffer")
	}
	format = normalizePlaybackFormat(format)

	cmd := exec.CommandContext(ctx, d.command, decodeArgs(format)...)
	cmd.Stdin = bytes.NewReader(data)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, errors.New("ffmpeg decode produced no audio")
	}
	d.log.Debug().Int("in_bytes", len(data)).Int("out_bytes", stdout.Len()).Msg("decoded reply audio")
	return stdout.Bytes(), nil
}

// AutoDecoder unwraps PCM WAV natively when it already matches the
// playback format and hands everything else to a fallback decoder.
type AutoDecoder struct {
	fallback ports.AudioDecoder
}

func NewAutoDecoder(fallback ports.AudioDecoder) *AutoDecoder {
	return &AutoDecoder{fallback: fallback}
}

func (d *AutoDecoder) Decode(ctx context.Context, data []byte, format ports.PlaybackFormat) ([]byte, error) {
	format = normalizePlaybackFormat(format)
	if IsWAV(data) {
		pcm, info, err := DecodeWAV(data)
		if err == nil && info.SampleRate == format.SampleRate && info.Channels == format.Channels {
			if len(pcm) == 0 {
				return nil, errors.New("WAV reply has no samples")
			}
			return pcm, nil
		}
	}
	if d.fallback == nil {
		return nil, errors.New("no decoder available for reply audio")
	}
	return d.fallback.Decode(ctx, data, format)
}
