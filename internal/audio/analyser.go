package audio

import (
	"encoding/binary"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	DefaultFFTSize = 256

	analyserSmoothing = 0.8
	analyserMinDB     = -100.0
	analyserMaxDB     = -30.0
)

// Analyser turns s16le PCM into byte frequency frames: one frame of
// size/2 magnitudes (0..255, dB scaled) per size samples of input.
type Analyser struct {
	size     int
	channels int
	fft      *fourier.FFT

	carry    []byte
	pending  []float64
	smoothed []float64
}

func NewAnalyser(size int, channels int) *Analyser {
	if size < 32 || size&(size-1) != 0 {
		size = DefaultFFTSize
	}
	if channels <= 0 {
		channels = 1
	}
	return &Analyser{
		size:     size,
		channels: channels,
		fft:      fourier.NewFFT(size),
		pending:  make([]float64, 0, size),
		smoothed: make([]float64, size/2),
	}
}

// Bins is the length of every emitted frame.
func (a *Analyser) Bins() int { return a.size / 2 }

// Write consumes PCM and returns the frames completed by it, in order.
func (a *Analyser) Write(pcm []byte) [][]uint8 {
	frameBytes := 2 * a.channels
	data := pcm
	if len(a.carry) > 0 {
		data = append(append([]byte(nil), a.carry...), pcm...)
		a.carry = a.carry[:0]
	}

	var frames [][]uint8
	whole := len(data) - len(data)%frameBytes
	for off := 0; off < whole; off += frameBytes {
		sum := 0.0
		for ch := 0; ch < a.channels; ch++ {
			sample := int16(binary.LittleEndian.Uint16(data[off+2*ch:]))
			sum += float64(sample) / 32768.0
		}
		a.pending = append(a.pending, sum/float64(a.channels))
		if len(a.pending) == a.size {
			frames = append(frames, a.frame())
			a.pending = a.pending[:0]
		}
	}
	a.carry = append(a.carry, data[whole:]...)
	return frames
}

func (a *Analyser) frame() []uint8 {
	seq := window.Blackman(append([]float64(nil), a.pending...))
	coeffs := a.fft.Coefficients(nil, seq)

	out := make([]uint8, len(a.smoothed))
	for k := range a.smoothed {
		magnitude := cmplx.Abs(coeffs[k]) / float64(a.size)
		a.smoothed[k] = analyserSmoothing*a.smoothed[k] + (1-analyserSmoothing)*magnitude
		out[k] = scaleDecibels(a.smoothed[k])
	}
	return out
}

func scaleDecibels(magnitude float64) uint8 {
	if magnitude <= 0 {
		return 0
	}
	db := 20 * math.Log10(magnitude)
	scaled := 255 * (db - analyserMinDB) / (analyserMaxDB - analyserMinDB)
	switch {
	case scaled <= 0:
		return 0
	case scaled >= 255:
		return 255
	default:
		return uint8(scaled)
	}
}
