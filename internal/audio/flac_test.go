package audio

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mewkiz/flac"
)

func TestFLACEncoderRoundTripFirstFrame(t *testing.T) {
	t.Parallel()

	pcm := sinePCM(300, 0.4, 16000, 5000)
	data, err := FLACEncoder{}.Encode(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("fLaC")) {
		t.Fatalf("missing fLaC signature")
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if stream.Info.SampleRate != 16000 || stream.Info.NChannels != 1 || stream.Info.NSamples != 5000 {
		t.Fatalf("unexpected stream info: %+v", stream.Info)
	}

	f, err := stream.ParseNext()
	if err != nil {
		t.Fatalf("frame parse failed: %v", err)
	}
	if int(f.BlockSize) != flacBlockSize {
		t.Fatalf("unexpected block size %d", f.BlockSize)
	}
	for i := 0; i < 64; i++ {
		want := int32(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		if got := f.Subframes[0].Samples[i]; got != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestFLACEncoderStereoDeinterleaves(t *testing.T) {
	t.Parallel()

	pcm := make([]byte, 0, 256)
	for i := 1; i <= 64; i++ {
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(100*i)))
		pcm = binary.LittleEndian.AppendUint16(pcm, uint16(int16(-100*i)))
	}
	data, err := FLACEncoder{}.Encode(pcm, 8000, 2)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	f, err := stream.ParseNext()
	if err != nil {
		t.Fatalf("frame parse failed: %v", err)
	}
	left, right := f.Subframes[0].Samples, f.Subframes[1].Samples
	if left[0] != 100 || left[1] != 200 || right[0] != -100 || right[1] != -200 {
		t.Fatalf("unexpected channel samples: %v %v", left, right)
	}
}

func TestFLACEncoderRejectsUnsupportedChannels(t *testing.T) {
	t.Parallel()

	if _, err := (FLACEncoder{}).Encode(make([]byte, 12), 16000, 3); err == nil {
		t.Fatalf("expected channel count error")
	}
	if _, err := (FLACEncoder{}).Encode(nil, 16000, 1); err == nil {
		t.Fatalf("expected empty input error")
	}
}
