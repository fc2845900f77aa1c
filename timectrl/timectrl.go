package timectrl

import (
	"context"
	"sync"
	"time"
)

// SimClock gives read access to simulated time without depending on the
// concrete controller.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
}

// Stepper is a simulation that advances one tick per Step call.
type Stepper interface {
	Step(ctx context.Context) error
	IsRunning() bool
}

// Mode describes how the TimeController paces ticks.
type Mode int

const (
	// RealTime waits Pace of wall-clock time between ticks.
	RealTime Mode = iota
	// Accelerated runs ticks back to back.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// TickLengthForInterval is the simulated duration of one tick when a day is
// split into interval ticks.
func TickLengthForInterval(interval int) time.Duration {
	if interval <= 0 {
		return 24 * time.Hour
	}
	return 24 * time.Hour / time.Duration(interval)
}

// TimeController drives a Stepper and maps completed ticks onto a simulated
// calendar. Listeners are notified after every tick.
type TimeController struct {
	mu         sync.RWMutex
	StartTime  time.Time
	TickLength time.Duration
	Mode       Mode
	// Pace is the wall-clock delay between ticks in RealTime mode.
	Pace time.Duration

	currentTime time.Time
	ticks       int

	listeners []func(tick int, simTime time.Time)
}

// NewTimeController constructs a controller. In RealTime mode the pace
// defaults to one tick per second.
func NewTimeController(start time.Time, tickLength time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		TickLength:  tickLength,
		Mode:        mode,
		Pace:        time.Second,
		currentTime: start,
	}
}

// Now returns the current simulation time. Implements SimClock.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// Ticks returns the number of ticks completed under this controller.
func (tc *TimeController) Ticks() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.ticks
}

// SetTime moves the simulated clock, e.g. when resuming a saved run.
func (tc *TimeController) SetTime(t time.Time) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.currentTime = t
}

// AddListener registers a callback invoked after every tick with the index of
// the tick just completed and the simulated time at its end.
func (tc *TimeController) AddListener(fn func(tick int, simTime time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Run steps s until it halts, maxTicks ticks have run (0 means no limit), or
// ctx is cancelled. Cancellation is checked between ticks only, so a tick is
// never interrupted. The returned channel yields the terminal error, if any,
// and is then closed.
func (tc *TimeController) Run(ctx context.Context, s Stepper, maxTicks int) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)

		var pace <-chan time.Time
		if tc.Mode == RealTime && tc.Pace > 0 {
			ticker := time.NewTicker(tc.Pace)
			defer ticker.Stop()
			pace = ticker.C
		}

		for n := 0; maxTicks <= 0 || n < maxTicks; n++ {
			if !s.IsRunning() {
				return
			}
			if pace != nil {
				select {
				case <-ctx.Done():
					done <- ctx.Err()
					return
				case <-pace:
				}
			} else if err := ctx.Err(); err != nil {
				done <- err
				return
			}

			if err := s.Step(ctx); err != nil {
				done <- err
				return
			}
			tc.advance()
		}
	}()
	return done
}

func (tc *TimeController) advance() {
	tc.mu.Lock()
	tick := tc.ticks
	tc.ticks++
	tc.currentTime = tc.currentTime.Add(tc.TickLength)
	simTime := tc.currentTime
	listeners := append(([]func(int, time.Time))(nil), tc.listeners...)
	tc.mu.Unlock()

	for _, fn := range listeners {
		fn(tick, simTime)
	}
}
