package usecase

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"voicechat/internal/domain"
	"voicechat/internal/ports"
)

type playbackProbe struct {
	mu      sync.Mutex
	starts  int
	drained int
	codes   []domain.ErrorCode
}

func (p *playbackProbe) callbacks() PlaybackCallbacks {
	return PlaybackCallbacks{
		OnStart: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.starts++
		},
		OnDrained: func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.drained++
		},
		OnError: func(code domain.ErrorCode, _ error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.codes = append(p.codes, code)
		},
	}
}

func (p *playbackProbe) counts() (int, int, []domain.ErrorCode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts, p.drained, append([]domain.ErrorCode(nil), p.codes...)
}

func TestPlaybackDrainsInOrderOneAtATime(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{block: make(chan struct{})}
	probe := &playbackProbe{}
	playback := NewPlayback(fakeDecoder{}, player, ports.PlaybackFormat{}, zerolog.Nop(), probe.callbacks())
	t.Cleanup(playback.Close)

	for _, name := range []string{"one", "two", "three"} {
		playback.Enqueue([]byte(name))
	}
	for i := 1; i <= 3; i++ {
		waitFor(t, func() bool { return len(player.snapshotPlayed()) == i && player.activeCount() == 1 })
		player.block <- struct{}{}
	}
	waitFor(t, func() bool {
		_, drained, _ := probe.counts()
		return drained == 1
	})

	played := player.snapshotPlayed()
	if string(played[0]) != "one" || string(played[1]) != "two" || string(played[2]) != "three" {
		t.Fatalf("unexpected order: %q", played)
	}
	if player.peakActive() != 1 {
		t.Fatalf("expected at most one buffer playing, saw %d", player.peakActive())
	}
	if starts, _, _ := probe.counts(); starts != 3 {
		t.Fatalf("expected 3 playback starts, got %d", starts)
	}
}

func TestPlaybackSkipsUndecodableBuffers(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{}
	probe := &playbackProbe{}
	playback := NewPlayback(fakeDecoder{}, player, ports.PlaybackFormat{}, zerolog.Nop(), probe.callbacks())
	t.Cleanup(playback.Close)

	playback.Enqueue([]byte("corrupt"))
	playback.Enqueue([]byte("fine"))

	waitFor(t, func() bool {
		_, drained, _ := probe.counts()
		return drained == 1
	})
	played := player.snapshotPlayed()
	if len(played) != 1 || string(played[0]) != "fine" {
		t.Fatalf("expected only the decodable buffer to play, got %q", played)
	}
	if _, _, codes := probe.counts(); len(codes) != 1 || codes[0] != domain.ErrorCodeDecode {
		t.Fatalf("expected one decode error, got %v", codes)
	}
}

func TestPlaybackClearStopsCurrentAndDropsPending(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{block: make(chan struct{})}
	probe := &playbackProbe{}
	playback := NewPlayback(fakeDecoder{}, player, ports.PlaybackFormat{}, zerolog.Nop(), probe.callbacks())
	t.Cleanup(playback.Close)

	playback.Enqueue([]byte("a"))
	playback.Enqueue([]byte("b"))
	waitFor(t, func() bool { return player.activeCount() == 1 })

	playback.Clear()
	waitFor(t, func() bool { return player.activeCount() == 0 })
	if playback.Pending() != 0 {
		t.Fatalf("expected queue to be empty after clear")
	}

	// a new buffer after clear plays once the old drain has exited
	playback.Enqueue([]byte("c"))
	waitFor(t, func() bool { return len(player.snapshotPlayed()) == 2 })
	player.block <- struct{}{}
	waitFor(t, func() bool {
		_, drained, _ := probe.counts()
		return drained == 1
	})

	played := player.snapshotPlayed()
	if string(played[0]) != "a" || string(played[1]) != "c" {
		t.Fatalf("unexpected playback after clear: %q", played)
	}
	if player.peakActive() != 1 {
		t.Fatalf("buffers overlapped across clear")
	}
}

func TestPlaybackIgnoresEmptyBuffers(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{}
	playback := NewPlayback(fakeDecoder{}, player, ports.PlaybackFormat{}, zerolog.Nop(), PlaybackCallbacks{})
	playback.Enqueue(nil)
	playback.Close()

	if len(player.snapshotPlayed()) != 0 {
		t.Fatalf("empty buffer must not be played")
	}
}
