package usecase

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"voicechat/internal/domain"
	"voicechat/internal/ports"
)

// PlaybackCallbacks observe the drain loop. They run on the drain goroutine.
type PlaybackCallbacks struct {
	OnStart   func()
	OnDrained func()
	OnError   func(code domain.ErrorCode, err error)
}

// Playback is a FIFO of received audio buffers played one at a time.
type Playback struct {
	decoder ports.AudioDecoder
	player  ports.AudioPlayer
	format  ports.PlaybackFormat
	log     zerolog.Logger
	cb      PlaybackCallbacks

	mu       sync.Mutex
	queue    [][]byte
	draining bool
	gen      uint64
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewPlayback(
	decoder ports.AudioDecoder,
	player ports.AudioPlayer,
	format ports.PlaybackFormat,
	log zerolog.Logger,
	cb PlaybackCallbacks,
) *Playback {
	if cb.OnStart == nil {
		cb.OnStart = func() {}
	}
	if cb.OnDrained == nil {
		cb.OnDrained = func() {}
	}
	if cb.OnError == nil {
		cb.OnError = func(domain.ErrorCode, error) {}
	}
	return &Playback{
		decoder: decoder,
		player:  player,
		format:  format,
		log:     log.With().Str("component", "playback").Logger(),
		cb:      cb,
	}
}

// Enqueue appends a buffer and starts draining if nothing is.
func (p *Playback) Enqueue(data []byte) {
	if len(data) == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, data)
	if p.draining {
		return
	}

	p.draining = true
	ctx, cancel := context.WithCancel(context.Background())
	previous := p.done
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	go p.drain(ctx, cancel, p.gen, previous, done)
}

// Clear drops pending buffers and cancels whatever is playing.
func (p *Playback) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = nil
	p.gen++
	p.draining = false
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

// Close clears the queue and waits for the drain loop to exit.
func (p *Playback) Close() {
	p.Clear()
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Pending returns the number of buffers waiting to play.
func (p *Playback) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

func (p *Playback) next(gen uint64) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return nil, false
	}
	if len(p.queue) == 0 {
		p.draining = false
		p.cancel = nil
		return nil, false
	}
	head := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return head, true
}

func (p *Playback) drain(ctx context.Context, cancel context.CancelFunc, gen uint64, previous <-chan struct{}, done chan struct{}) {
	defer close(done)
	defer cancel()
	if previous != nil {
		<-previous
	}

	played := false
	for {
		data, ok := p.next(gen)
		if !ok {
			break
		}

		pcm, err := p.decoder.Decode(ctx, data, p.format)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Int("bytes", len(data)).Msg("skipping undecodable reply audio")
			p.cb.OnError(domain.ErrorCodeDecode, err)
			continue
		}

		p.cb.OnStart()
		played = true
		if err := p.player.Play(ctx, pcm); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Msg("reply playback failed")
			p.cb.OnError(domain.ErrorCodePlayback, err)
		}
	}

	if played && ctx.Err() == nil {
		p.cb.OnDrained()
	}
}
