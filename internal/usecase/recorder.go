package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"voicechat/internal/audio"
	"voicechat/internal/clock"
	"voicechat/internal/domain"
	"voicechat/internal/ports"
	"voicechat/internal/silence"
)

var (
	ErrNotRecording    = errors.New("recorder is not active")
	ErrRecorderAborted = errors.New("recording aborted before capture started")
)

// RecorderConfig tunes capture and silence detection.
type RecorderConfig struct {
	Audio     ports.AudioConfig
	Silence   silence.Config
	ChunkSize int
	FFTSize   int
}

// RecorderCallbacks receive recorder output. They are never invoked with a
// recorder lock held.
type RecorderCallbacks struct {
	OnSpeech  func()
	OnSegment func(segment domain.Segment)
	OnError   func(err error)
}

// Recorder captures one utterance at a time and finalizes it into a segment
// once the silence gate confirms the speaker has stopped.
type Recorder struct {
	capture   ports.AudioCapture
	finalizer segmentFinalizer
	clock     clock.Clock
	cfg       RecorderConfig
	log       zerolog.Logger
	cb        RecorderCallbacks

	mu      sync.Mutex
	epoch   uint64
	current *recording
}

type recording struct {
	cancel   context.CancelFunc
	audio    ports.AudioSession
	gate     *silence.Gate
	analyser *audio.Analyser
	done     chan struct{}

	// guarded by Recorder.mu while the recording is current
	chunks [][]byte
}

func NewRecorder(
	capture ports.AudioCapture,
	encoder ports.SegmentEncoder,
	clk clock.Clock,
	cfg RecorderConfig,
	log zerolog.Logger,
	cb RecorderCallbacks,
) *Recorder {
	if clk == nil {
		clk = clock.Real{}
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cb.OnSpeech == nil {
		cb.OnSpeech = func() {}
	}
	if cb.OnSegment == nil {
		cb.OnSegment = func(domain.Segment) {}
	}
	if cb.OnError == nil {
		cb.OnError = func(error) {}
	}
	return &Recorder{
		capture:   capture,
		finalizer: newSegmentFinalizer(encoder, cfg.Audio),
		clock:     clk,
		cfg:       cfg,
		log:       log.With().Str("component", "recorder").Logger(),
		cb:        cb,
	}
}

// Start releases any previous capture and begins a new recording.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	previous := r.current
	r.current = nil
	epoch := r.epoch
	r.mu.Unlock()

	if previous != nil {
		r.release(previous)
	}

	recCtx, cancel := context.WithCancel(ctx)
	session, err := r.capture.Start(recCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		return fmt.Errorf("acquire microphone: %w", err)
	}

	rec := &recording{
		cancel:   cancel,
		audio:    session,
		analyser: audio.NewAnalyser(r.cfg.FFTSize, r.cfg.Audio.Channels),
		done:     make(chan struct{}),
	}
	rec.gate = silence.NewGate(r.cfg.Silence, r.clock, func() { r.finish(rec, true) })

	r.mu.Lock()
	if r.epoch != epoch {
		r.mu.Unlock()
		r.release(rec)
		return ErrRecorderAborted
	}
	displaced := r.current
	r.current = rec
	r.mu.Unlock()

	if displaced != nil {
		r.release(displaced)
	}

	go pumpCapture(
		session,
		r.cfg.ChunkSize,
		func(chunk []byte) bool { return r.observe(rec, chunk) },
		func(err error) { r.fail(rec, err) },
		rec.done,
	)
	r.log.Debug().Msg("recording started")
	return nil
}

// Stop ends the current recording and emits its segment.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	rec := r.current
	r.mu.Unlock()
	if rec == nil {
		return ErrNotRecording
	}
	r.finish(rec, true)
	return nil
}

// Abort releases the device and discards captured audio. Safe to call when
// nothing is recording, and cancels a Start that is still acquiring.
func (r *Recorder) Abort() {
	r.mu.Lock()
	r.epoch++
	rec := r.current
	r.mu.Unlock()
	if rec != nil {
		r.finish(rec, false)
	}
}

// Active reports whether a capture is currently running.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

func (r *Recorder) observe(rec *recording, chunk []byte) bool {
	frames := rec.analyser.Write(chunk)

	r.mu.Lock()
	if r.current != rec {
		r.mu.Unlock()
		return false
	}
	rec.chunks = append(rec.chunks, chunk)
	r.mu.Unlock()

	for _, frame := range frames {
		if rec.gate.Observe(frame) == silence.EventSpeechStarted {
			r.cb.OnSpeech()
		}
	}
	return true
}

func (r *Recorder) fail(rec *recording, err error) {
	if !r.detach(rec) {
		return
	}
	r.release(rec)
	r.log.Error().Err(err).Msg("recording failed")
	r.cb.OnError(err)
}

func (r *Recorder) finish(rec *recording, emit bool) {
	if !r.detach(rec) {
		return
	}
	r.release(rec)

	if !emit {
		r.log.Debug().Int("chunks", len(rec.chunks)).Msg("recording discarded")
		return
	}

	segment, ok, err := r.finalizer.Finalize(rec.chunks)
	if err != nil {
		r.log.Error().Err(err).Msg("segment finalize failed")
		r.cb.OnError(err)
		return
	}
	if !ok {
		r.log.Debug().Msg("recording captured no audio")
		return
	}
	r.log.Debug().
		Str("segment", segment.ID).
		Int("bytes", len(segment.Data)).
		Dur("duration", segment.Duration).
		Msg("segment finalized")
	r.cb.OnSegment(segment)
}

func (r *Recorder) detach(rec *recording) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != rec {
		return false
	}
	r.current = nil
	return true
}

func (r *Recorder) release(rec *recording) {
	if rec.gate != nil {
		rec.gate.Reset()
	}
	if err := rec.audio.Stop(); err != nil {
		r.log.Warn().Err(err).Msg("microphone release failed")
	}
	rec.cancel()
}
