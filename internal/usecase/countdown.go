package usecase

import (
	"sync"
	"time"

	"voicechat/internal/clock"
)

// Countdown is the cosmetic "thinking" timer shown while a reply is pending.
// onTick runs with the countdown lock held, so once Cancel returns no tick
// from an earlier Start can be delivered.
type Countdown struct {
	clock  clock.Clock
	onTick func(remaining int, active bool)

	mu        sync.Mutex
	gen       uint64
	timer     clock.Timer
	remaining int
}

func NewCountdown(clk clock.Clock, onTick func(remaining int, active bool)) *Countdown {
	if clk == nil {
		clk = clock.Real{}
	}
	if onTick == nil {
		onTick = func(int, bool) {}
	}
	return &Countdown{clock: clk, onTick: onTick}
}

// Start restarts the countdown from seconds.
func (c *Countdown) Start(seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	if seconds <= 0 {
		return
	}
	c.remaining = seconds
	c.onTick(seconds, true)
	c.scheduleLocked()
}

// Cancel stops the countdown.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// Running reports whether a tick is still scheduled.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Countdown) scheduleLocked() {
	gen := c.gen
	c.timer = c.clock.AfterFunc(time.Second, func() { c.tick(gen) })
}

func (c *Countdown) cancelLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.remaining = 0
}

func (c *Countdown) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.timer = nil
	c.remaining--
	if c.remaining <= 0 {
		c.remaining = 0
		c.onTick(0, false)
		return
	}
	c.onTick(c.remaining, true)
	c.scheduleLocked()
}
