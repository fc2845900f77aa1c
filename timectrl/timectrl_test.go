package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingStepper struct {
	steps   int
	haltAt  int
	failAt  int
	err     error
	running bool
	onStep  func()
}

func newCountingStepper() *countingStepper {
	return &countingStepper{running: true, haltAt: -1, failAt: -1}
}

func (c *countingStepper) Step(context.Context) error {
	if c.onStep != nil {
		c.onStep()
	}
	if c.steps == c.failAt {
		c.running = false
		return c.err
	}
	c.steps++
	if c.steps == c.haltAt {
		c.running = false
	}
	return nil
}

func (c *countingStepper) IsRunning() bool { return c.running }

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestRunStopsAtMaxTicks(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, TickLengthForInterval(5), Accelerated)

	var seen []int
	tc.AddListener(func(tick int, _ time.Time) { seen = append(seen, tick) })

	s := newCountingStepper()
	if err := <-tc.Run(context.Background(), s, 10); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.steps != 10 || tc.Ticks() != 10 {
		t.Fatalf("steps = %d, ticks = %d, want 10", s.steps, tc.Ticks())
	}
	if want := start.Add(2 * 24 * time.Hour); !tc.Now().Equal(want) {
		t.Fatalf("Now() = %v, want %v", tc.Now(), want)
	}
	for i, tick := range seen {
		if tick != i {
			t.Fatalf("listener saw tick %d at position %d", tick, i)
		}
	}
}

func TestRunStopsWhenSimulationHalts(t *testing.T) {
	tc := NewTimeController(time.Time{}, time.Hour, Accelerated)
	s := newCountingStepper()
	s.haltAt = 3
	if err := <-tc.Run(context.Background(), s, 0); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if s.steps != 3 {
		t.Fatalf("steps = %d, want 3", s.steps)
	}
}

func TestRunPropagatesStepError(t *testing.T) {
	tc := NewTimeController(time.Time{}, time.Hour, Accelerated)
	s := newCountingStepper()
	s.failAt = 2
	s.err = errors.New("invariant broken")
	if err := <-tc.Run(context.Background(), s, 0); !errors.Is(err, s.err) {
		t.Fatalf("Run error = %v, want %v", err, s.err)
	}
	if tc.Ticks() != 2 {
		t.Fatalf("ticks = %d, want 2", tc.Ticks())
	}
}

func TestRunHonoursCancellationBetweenTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tc := NewTimeController(time.Time{}, time.Hour, Accelerated)
	s := newCountingStepper()
	s.onStep = func() {
		if s.steps == 4 {
			cancel()
		}
	}
	if err := <-tc.Run(ctx, s, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if s.steps != 5 {
		t.Fatalf("steps = %d, want the in-flight tick to complete (5)", s.steps)
	}
}

func TestRealTimePacing(t *testing.T) {
	tc := NewTimeController(time.Time{}, time.Hour, RealTime)
	tc.Pace = 5 * time.Millisecond
	s := newCountingStepper()

	begin := time.Now()
	if err := <-tc.Run(context.Background(), s, 3); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if elapsed := time.Since(begin); elapsed < 15*time.Millisecond {
		t.Fatalf("three paced ticks took %v, want at least 15ms", elapsed)
	}
}

func TestTickLengthForInterval(t *testing.T) {
	if got := TickLengthForInterval(20); got != 72*time.Minute {
		t.Fatalf("TickLengthForInterval(20) = %v", got)
	}
	if got := TickLengthForInterval(0); got != 24*time.Hour {
		t.Fatalf("TickLengthForInterval(0) = %v", got)
	}
}
