package usecase

import (
	"errors"
	"fmt"
	"io"

	"voicechat/internal/ports"
)

var errCaptureEnded = errors.New("microphone capture ended unexpectedly")

// pumpCapture reads the capture session until it fails or onChunk asks to
// stop. onChunk receives a buffer it may retain. onErr is called at most
// once, and never after onChunk returned false.
func pumpCapture(
	audio ports.AudioSession,
	chunkSize int,
	onChunk func(chunk []byte) bool,
	onErr func(err error),
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 1024
	}

	for {
		buf := make([]byte, chunkSize)
		n, err := audio.Read(buf)
		if n > 0 {
			if !onChunk(buf[:n]) {
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				onErr(errCaptureEnded)
			} else {
				onErr(fmt.Errorf("audio capture error: %w", err))
			}
			return
		}
	}
}
