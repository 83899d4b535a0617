package usecase

import (
	"sync"
	"testing"
	"time"

	"voicechat/internal/clock"
)

type tickRecorder struct {
	mu    sync.Mutex
	ticks []countdownEvent
}

func (r *tickRecorder) onTick(remaining int, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, countdownEvent{remaining: remaining, active: active})
}

func (r *tickRecorder) snapshot() []countdownEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]countdownEvent(nil), r.ticks...)
}

func TestCountdownTicksDownToZero(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	rec := &tickRecorder{}
	countdown := NewCountdown(clk, rec.onTick)

	countdown.Start(3)
	clk.Advance(10 * time.Second)

	want := []countdownEvent{{3, true}, {2, true}, {1, true}, {0, false}}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tick %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if countdown.Running() || clk.Pending() != 0 {
		t.Fatalf("countdown must stop at zero")
	}
}

func TestCountdownCancelLeavesNoTimer(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	rec := &tickRecorder{}
	countdown := NewCountdown(clk, rec.onTick)

	countdown.Start(5)
	clk.Advance(1500 * time.Millisecond)
	countdown.Cancel()
	countdown.Cancel()
	clk.Advance(time.Minute)

	if got := rec.snapshot(); len(got) != 2 {
		t.Fatalf("expected 2 ticks before cancel, got %v", got)
	}
	if clk.Pending() != 0 {
		t.Fatalf("expected no pending timers")
	}
}

func TestCountdownRestartResetsRemaining(t *testing.T) {
	t.Parallel()

	clk := clock.NewFake(time.Unix(0, 0))
	rec := &tickRecorder{}
	countdown := NewCountdown(clk, rec.onTick)

	countdown.Start(5)
	clk.Advance(2 * time.Second)
	countdown.Start(5)
	clk.Advance(time.Second)

	got := rec.snapshot()
	last := got[len(got)-1]
	if last != (countdownEvent{remaining: 4, active: true}) {
		t.Fatalf("expected restart from 5, last tick %+v", last)
	}
	if clk.Pending() != 1 {
		t.Fatalf("expected exactly one scheduled tick, got %d", clk.Pending())
	}
}
