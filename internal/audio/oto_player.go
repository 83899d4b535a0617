package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"voicechat/internal/ports"
)

const playerPollInterval = 10 * time.Millisecond

// OtoPlayer plays s16le PCM through the platform audio output. The oto
// context can only be created once per process, so it is created lazily on
// first use and shared afterwards.
type OtoPlayer struct {
	format     ports.PlaybackFormat
	bufferSize time.Duration
	log        zerolog.Logger

	initOnce sync.Once
	ctx      *oto.Context
	initErr  error
}

func NewOtoPlayer(format ports.PlaybackFormat, bufferSize time.Duration, log zerolog.Logger) *OtoPlayer {
	if bufferSize <= 0 {
		bufferSize = 50 * time.Millisecond
	}
	return &OtoPlayer{
		format:     normalizePlaybackFormat(format),
		bufferSize: bufferSize,
		log:        log.With().Str("component", "player").Logger(),
	}
}

func (p *OtoPlayer) init() {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   p.format.SampleRate,
		ChannelCount: p.format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   p.bufferSize,
	})
	if err != nil {
		p.initErr = fmt.Errorf("oto init: %w", err)
		p.log.Error().Err(err).Msg("audio output unavailable")
		return
	}
	<-ready
	p.ctx = ctx
}

// Play blocks until pcm has been played or ctx is cancelled.
func (p *OtoPlayer) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	p.initOnce.Do(p.init)
	if p.initErr != nil {
		return p.initErr
	}
	if p.ctx == nil {
		return errors.New("audio output unavailable")
	}

	player := p.ctx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(playerPollInterval)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	if err := player.Err(); err != nil {
		return fmt.Errorf("playback failed: %w", err)
	}
	return nil
}
