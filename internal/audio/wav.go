package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

// wavHeader is the canonical 44-byte PCM RIFF header.
type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// WAVEncoder wraps s16le PCM in a RIFF/WAVE container.
type WAVEncoder struct{}

func (WAVEncoder) ContentType() string { return "audio/wav" }

func (WAVEncoder) Encode(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("cannot encode empty audio")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}
	// drop a trailing partial sample frame
	pcm = pcm[:len(pcm)-len(pcm)%(2*channels)]

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(channels),
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * channels * 2),
		BlockAlign:    uint16(channels * 2),
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: uint32(len(pcm)),
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)
	return buf.Bytes(), nil
}

// WAVInfo describes a parsed PCM WAV buffer.
type WAVInfo struct {
	SampleRate int
	Channels   int
}

// IsWAV reports whether data starts with a RIFF/WAVE signature.
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

// DecodeWAV returns the s16le payload of a PCM WAV buffer. Chunks other
// than fmt and data are skipped.
func DecodeWAV(data []byte) ([]byte, WAVInfo, error) {
	if !IsWAV(data) {
		return nil, WAVInfo{}, errors.New("invalid WAV data: missing RIFF/WAVE signature")
	}

	var info WAVInfo
	haveFormat := false
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, WAVInfo{}, errors.New("invalid WAV data: short fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if audioFormat != 1 {
				return nil, WAVInfo{}, fmt.Errorf("unsupported WAV audio format %d", audioFormat)
			}
			if bits != 16 {
				return nil, WAVInfo{}, fmt.Errorf("unsupported WAV bit depth %d", bits)
			}
			info.Channels = int(binary.LittleEndian.Uint16(data[body+2:]))
			info.SampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, WAVInfo{}, errors.New("invalid WAV data: data chunk before fmt chunk")
			}
			return data[body : body+size], info, nil
		}

		offset = body + size + size%2
	}
	return nil, WAVInfo{}, errors.New("invalid WAV data: missing data chunk")
}
