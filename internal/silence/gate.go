package silence

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"voicechat/internal/clock"
)

// Config tunes when an utterance is considered finished.
type Config struct {
	// Threshold is the energy below which a frame counts as silent.
	Threshold float64
	// FramesForSilence consecutive silent frames arm the delayed stop.
	FramesForSilence int
	// SilenceDuration is how long the armed stop waits before firing.
	SilenceDuration time.Duration
}

const (
	PresetRelaxed = "relaxed"
	PresetSnappy  = "snappy"
)

// Preset returns one of the named tunings.
func Preset(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PresetRelaxed:
		return Config{Threshold: 50, FramesForSilence: 50, SilenceDuration: 5000 * time.Millisecond}, nil
	case PresetSnappy:
		return Config{Threshold: 150, FramesForSilence: 15, SilenceDuration: 2000 * time.Millisecond}, nil
	default:
		return Config{}, fmt.Errorf("unknown silence preset %q", name)
	}
}

// Event reports what a single frame changed.
type Event int

const (
	EventNone Event = iota
	EventSpeechStarted
	EventSilenceArmed
)

// Energy estimates voice-band energy: the larger of the average magnitude
// over the low third and the mid third of the bins.
func Energy(frame []uint8) float64 {
	third := len(frame) / 3
	if third == 0 {
		return average(frame)
	}
	low := average(frame[:third])
	mid := average(frame[third : 2*third])
	if mid > low {
		return mid
	}
	return low
}

func average(values []uint8) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += int(v)
	}
	return float64(sum) / float64(len(values))
}

// Gate decides from energy frames when a spoken utterance has ended.
type Gate struct {
	cfg       Config
	clock     clock.Clock
	onSilence func()

	mu           sync.Mutex
	silentFrames int
	speaking     bool
	pending      clock.Timer
	gen          uint64
}

// NewGate creates a gate. onSilence runs once per confirmed silence, on the
// clock's timer goroutine, without the gate lock held.
func NewGate(cfg Config, clk clock.Clock, onSilence func()) *Gate {
	if cfg.FramesForSilence <= 0 {
		cfg.FramesForSilence = 1
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if onSilence == nil {
		onSilence = func() {}
	}
	return &Gate{cfg: cfg, clock: clk, onSilence: onSilence}
}

// Observe processes one frame.
func (g *Gate) Observe(frame []uint8) Event {
	energy := Energy(frame)

	g.mu.Lock()
	defer g.mu.Unlock()

	if energy >= g.cfg.Threshold {
		g.silentFrames = 0
		g.cancelLocked()
		if !g.speaking {
			g.speaking = true
			return EventSpeechStarted
		}
		return EventNone
	}

	g.silentFrames++
	if g.silentFrames >= g.cfg.FramesForSilence && g.speaking && g.pending == nil {
		gen := g.gen
		g.pending = g.clock.AfterFunc(g.cfg.SilenceDuration, func() { g.fire(gen) })
		return EventSilenceArmed
	}
	return EventNone
}

// Speaking reports whether the gate currently considers speech in progress.
func (g *Gate) Speaking() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.speaking
}

// SilentFrames returns the current run of consecutive silent frames.
func (g *Gate) SilentFrames() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.silentFrames
}

// Armed reports whether a delayed stop is pending.
func (g *Gate) Armed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// Reset cancels any pending stop and returns the gate to not speaking.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancelLocked()
	g.silentFrames = 0
	g.speaking = false
}

func (g *Gate) cancelLocked() {
	// a timer whose Stop loses the race is neutralized by the generation bump
	g.gen++
	if g.pending != nil {
		g.pending.Stop()
		g.pending = nil
	}
}

func (g *Gate) fire(gen uint64) {
	g.mu.Lock()
	if gen != g.gen || g.pending == nil {
		g.mu.Unlock()
		return
	}
	g.pending = nil
	g.speaking = false
	g.mu.Unlock()

	g.onSilence()
}
