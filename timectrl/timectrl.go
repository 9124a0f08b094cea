package timectrl

import (
	"sync"
	"time"
)

// Clock is the time source used by the mission components. Scheduler
// timestamps come from Now; hazard-induced transit pauses go through Sleep,
// which blocks the caller for the full duration and cannot be interrupted.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// RealClock is backed by the wall clock.
type RealClock struct{}

func (RealClock) Now() time.Time        { return time.Now().UTC() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// ManualClock never blocks: Sleep advances its notion of now and records
// the pause. It is intended for tests and accelerated runs.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	totals time.Duration
}

// NewManualClock starts a ManualClock at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.now = c.now.Add(d)
	c.slept = append(c.slept, d)
	c.totals += d
}

// Sleeps returns every recorded pause in order.
func (c *ManualClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.slept))
	copy(out, c.slept)
	return out
}

// TotalSlept returns the sum of all recorded pauses.
func (c *ManualClock) TotalSlept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totals
}

// Mode describes how the TimeController advances time.
type Mode int

const (
	// RealTime waits one Tick of wall-clock time between listener calls.
	RealTime Mode = iota
	// Accelerated calls listeners back to back while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// TimeController emits ticks to registered listeners. Interactive drivers use
// it to poll the orchestrator once per tick. A listener returning false stops
// the controller.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	currentTime time.Time
	listeners   []func(time.Time) bool
	stop        chan struct{}
	stopOnce    sync.Once
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
		stop:        make(chan struct{}),
	}
}

// Now returns the time of the last emitted tick.
func (tc *TimeController) Now() time.Time {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.currentTime
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time) bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Stop ends a running controller after the current tick.
func (tc *TimeController) Stop() {
	tc.stopOnce.Do(func() { close(tc.stop) })
}

// Start runs the controller in a separate goroutine for at most duration
// (0 means until stopped). The returned channel is closed when it finishes.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.mu.Lock()
		simTime := tc.StartTime
		tc.currentTime = simTime
		listeners := append([]func(time.Time) bool(nil), tc.listeners...)
		tc.mu.Unlock()

		var ticker *time.Ticker
		if tc.Mode == RealTime && tc.Tick > 0 {
			ticker = time.NewTicker(tc.Tick)
			defer ticker.Stop()
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}

			if ticker != nil {
				select {
				case <-tc.stop:
					return
				case <-ticker.C:
				}
			} else {
				select {
				case <-tc.stop:
					return
				default:
				}
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick

			tc.mu.Lock()
			tc.currentTime = simTime
			tc.mu.Unlock()

			for _, fn := range listeners {
				if !fn(simTime) {
					tc.Stop()
				}
			}
		}
	}()
	return done
}
