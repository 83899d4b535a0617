package usecase

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"voicechat/internal/domain"
	"voicechat/internal/ports"
)

type segmentFinalizer struct {
	encoder    ports.SegmentEncoder
	sampleRate int
	channels   int
}

func newSegmentFinalizer(encoder ports.SegmentEncoder, audio ports.AudioConfig) segmentFinalizer {
	return segmentFinalizer{encoder: encoder, sampleRate: audio.SampleRate, channels: audio.Channels}
}

// Finalize concatenates the captured chunks into one encoded segment. It
// reports false when nothing was captured.
func (f segmentFinalizer) Finalize(chunks [][]byte) (domain.Segment, bool, error) {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}
	if total == 0 {
		return domain.Segment{}, false, nil
	}

	pcm := make([]byte, 0, total)
	for _, chunk := range chunks {
		pcm = append(pcm, chunk...)
	}

	data, err := f.encoder.Encode(pcm, f.sampleRate, f.channels)
	if err != nil {
		return domain.Segment{}, false, fmt.Errorf("encode segment: %w", err)
	}

	var duration time.Duration
	if bytesPerSecond := f.sampleRate * f.channels * 2; bytesPerSecond > 0 {
		duration = time.Duration(total) * time.Second / time.Duration(bytesPerSecond)
	}

	return domain.Segment{
		ID:          uuid.NewString(),
		Data:        data,
		ContentType: f.encoder.ContentType(),
		PCMBytes:    total,
		Chunks:      len(chunks),
		Duration:    duration,
	}, true, nil
}
