package audio

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"
)

func TestWAVEncodeDecode(t *testing.T) {
	t.Parallel()

	pcm := sinePCM(440, 0.3, 16000, 1600)
	wav, err := WAVEncoder{}.Encode(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(wav) != wavHeaderSize+len(pcm) {
		t.Fatalf("unexpected wav size %d", len(wav))
	}
	if !IsWAV(wav) {
		t.Fatalf("expected RIFF/WAVE signature")
	}
	if got := binary.LittleEndian.Uint32(wav[28:]); got != 32000 {
		t.Fatalf("unexpected byte rate %d", got)
	}

	decoded, info, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Fatalf("decoded payload does not match input")
	}
}

func TestWAVEncoderDropsPartialFrame(t *testing.T) {
	t.Parallel()

	wav, err := WAVEncoder{}.Encode(make([]byte, 7), 8000, 2)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if got := binary.LittleEndian.Uint32(wav[40:]); got != 4 {
		t.Fatalf("expected 4 data bytes, got %d", got)
	}
}

func TestWAVEncoderRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pcm        []byte
		sampleRate int
		channels   int
	}{
		{name: "empty", pcm: nil, sampleRate: 16000, channels: 1},
		{name: "rate", pcm: []byte{1, 2}, sampleRate: 0, channels: 1},
		{name: "channels", pcm: []byte{1, 2}, sampleRate: 16000, channels: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := (WAVEncoder{}).Encode(tc.pcm, tc.sampleRate, tc.channels); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	t.Parallel()

	wav, err := WAVEncoder{}.Encode([]byte{1, 0, 2, 0}, 24000, 1)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// splice a LIST chunk with an odd size between fmt and data
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	spliced := append(append(append([]byte(nil), wav[:36]...), list...), wav[36:]...)

	pcm, info, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if info.SampleRate != 24000 || !bytes.Equal(pcm, []byte{1, 0, 2, 0}) {
		t.Fatalf("unexpected decode result: %+v %v", info, pcm)
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	t.Parallel()

	if _, _, err := DecodeWAV([]byte("OggS")); err == nil || !strings.Contains(err.Error(), "RIFF") {
		t.Fatalf("expected signature error, got %v", err)
	}

	wav, _ := WAVEncoder{}.Encode([]byte{1, 0}, 16000, 1)
	floatWAV := append([]byte(nil), wav...)
	binary.LittleEndian.PutUint16(floatWAV[20:], 3)
	if _, _, err := DecodeWAV(floatWAV); err == nil || !strings.Contains(err.Error(), "audio format") {
		t.Fatalf("expected format error, got %v", err)
	}

	if _, _, err := DecodeWAV(wav[:36]); err == nil || !strings.Contains(err.Error(), "missing data") {
		t.Fatalf("expected missing data error, got %v", err)
	}
}

func TestNewSegmentEncoder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format      string
		contentType string
		wantErr     bool
	}{
		{format: "", contentType: "audio/wav"},
		{format: "WAV", contentType: "audio/wav"},
		{format: "flac", contentType: "audio/flac"},
		{format: "opus", wantErr: true},
	}
	for _, tc := range tests {
		enc, err := NewSegmentEncoder(tc.format)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.format)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.format, err)
		}
		if enc.ContentType() != tc.contentType {
			t.Fatalf("format %q: expected %s, got %s", tc.format, tc.contentType, enc.ContentType())
		}
	}
}
