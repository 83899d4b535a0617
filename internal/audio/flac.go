package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

const flacBlockSize = 4096

// FLACEncoder compresses s16le PCM into a FLAC stream.
type FLACEncoder struct{}

func (FLACEncoder) ContentType() string { return "audio/flac" }

func (FLACEncoder) Encode(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("cannot encode empty audio")
	}
	var layout frame.Channels
	switch channels {
	case 1:
		layout = frame.ChannelsMono
	case 2:
		layout = frame.ChannelsLR
	default:
		return nil, fmt.Errorf("unsupported FLAC channel count %d", channels)
	}

	samples := len(pcm) / (2 * channels)
	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  flacBlockSize,
		BlockSizeMax:  flacBlockSize,
		SampleRate:    uint32(sampleRate),
		NChannels:     uint8(channels),
		BitsPerSample: 16,
		NSamples:      uint64(samples),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}

	for start := 0; start < samples; start += flacBlockSize {
		n := min(flacBlockSize, samples-start)
		subframes := make([]*frame.Subframe, channels)
		for ch := 0; ch < channels; ch++ {
			values := make([]int32, n)
			for i := 0; i < n; i++ {
				off := ((start+i)*channels + ch) * 2
				values[i] = int32(int16(binary.LittleEndian.Uint16(pcm[off:])))
			}
			subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   values,
				NSamples:  n,
			}
		}
		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(n),
				SampleRate:    uint32(sampleRate),
				Channels:      layout,
				BitsPerSample: 16,
			},
			Subframes: subframes,
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}
