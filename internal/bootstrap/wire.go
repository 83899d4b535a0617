package bootstrap

import (
	"errors"
	"io"

	"github.com/rs/zerolog"

	"voicechat/internal/audio"
	"voicechat/internal/clock"
	"voicechat/internal/config"
	"voicechat/internal/logging"
	"voicechat/internal/ports"
	"voicechat/internal/providers/voicechat"
	"voicechat/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
	Log        zerolog.Logger

	closers []io.Closer
}

// Close stops the controller and releases the log files.
func (s Services) Close() error {
	if s.Controller != nil {
		s.Controller.Close()
	}
	var errs []error
	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	gate, err := cfg.Silence.Resolve()
	if err != nil {
		return Services{}, err
	}
	encoder, err := audio.NewSegmentEncoder(cfg.Segment.Format)
	if err != nil {
		return Services{}, err
	}

	logger, logCloser, err := logging.New(logging.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level})
	if err != nil {
		return Services{}, err
	}
	transcripts, err := logging.OpenTranscript(cfg.Log.Dir)
	if err != nil {
		_ = logCloser.Close()
		return Services{}, err
	}

	playback := ports.PlaybackFormat{
		SampleRate: cfg.Playback.SampleRate,
		Channels:   cfg.Playback.Channels,
	}

	controller := usecase.NewSessionController(
		usecase.Dependencies{
			Capture: audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, logger),
			Transport: voicechat.NewDialer(voicechat.Config{
				BaseURL:          cfg.Server.URL,
				Path:             cfg.Server.Path,
				HandshakeTimeout: cfg.Server.HandshakeTimeout.ToDuration(),
			}, logger),
			Encoder: encoder,
			Decoder: audio.NewAutoDecoder(audio.NewFFMPEGDecoder(cfg.Playback.DecoderCommand, logger)),
			Player:  audio.NewOtoPlayer(playback, cfg.Playback.BufferSize.ToDuration(), logger),
			Store:   transcripts,
			Events:  eventSink,
			Clock:   clock.Real{},
			Log:     logger,
		},
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Silence:          gate,
			Playback:         playback,
			ChunkSize:        cfg.Audio.ChunkSize,
			FFTSize:          cfg.Audio.FFTSize,
			MinSegmentBytes:  cfg.Segment.MinBytes,
			CountdownSeconds: cfg.Session.CountdownSeconds,
		},
	)

	logger.Info().
		Str("server", cfg.Server.URL).
		Str("segment_format", cfg.Segment.Format).
		Str("config_file", cfg.File).
		Msg("voice chat services ready")

	return Services{
		Controller: controller,
		Config:     cfg,
		Log:        logger,
		closers:    []io.Closer{transcripts, logCloser},
	}, nil
}
