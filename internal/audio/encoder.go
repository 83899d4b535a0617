package audio

import (
	"fmt"
	"strings"

	"voicechat/internal/ports"
)

// NewSegmentEncoder returns the encoder for a segment.format value.
func NewSegmentEncoder(format string) (ports.SegmentEncoder, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "wav":
		return WAVEncoder{}, nil
	case "flac":
		return FLACEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported segment format %q", format)
	}
}
