package pinmanager

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/womat/debug"
)

// ActivePort is activated by the scheduler once per cycle unless it's paused.
// Activate must not block, a slow port delays every other port of the cycle.
type ActivePort interface {
	Activate() error
	Pause(paused bool)
	Paused() bool
	Stop()
	Stopped() bool
}

// Scheduler runs the activation cycles.
type Scheduler struct {
	// mu guards ports and is held for a whole cycle
	mu    sync.Mutex
	ports []ActivePort

	// wake signals a new port to an idle scheduler
	wake chan struct{}

	interval  time.Duration
	autoPause bool
	metrics   *Metrics
	cycles    atomic.Uint64

	// lifecycle of the background goroutine started by Start
	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func newScheduler(interval time.Duration, autoPause bool, metrics *Metrics) *Scheduler {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	return &Scheduler{
		wake:      make(chan struct{}, 1),
		interval:  interval,
		autoPause: autoPause,
		metrics:   metrics,
	}
}

// Add registers a port for activation, starting with the next cycle.
func (s *Scheduler) Add(a ActivePort) {
	s.mu.Lock()
	s.ports = append(s.ports, a)
	s.metrics.ActivePorts.Set(float64(len(s.ports)))
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of registered ports that aren't stopped.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, p := range s.ports {
		if !p.Stopped() {
			n++
		}
	}
	return n
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() uint64 {
	return s.cycles.Load()
}

func (s *Scheduler) clear() {
	s.mu.Lock()
	s.ports = nil
	s.metrics.ActivePorts.Set(0)
	s.mu.Unlock()
}

// Cycle activates every registered port that isn't paused. Stopped ports are dropped first.
// A failing port doesn't stop the cycle. Cycle returns the number of registered ports.
//
// The scheduler lock is held while the ports are activated, this includes the change
// hooks of input ports. Code running inside an activation must not call Add, Len or
// Cycle, nor the AddActivePort and Clear methods of the Manager.
func (s *Scheduler) Cycle() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := s.ports[:0]
	for _, p := range s.ports {
		if !p.Stopped() {
			live = append(live, p)
		}
	}
	for i := len(live); i < len(s.ports); i++ {
		s.ports[i] = nil
	}
	s.ports = live
	s.metrics.ActivePorts.Set(float64(len(s.ports)))

	for _, p := range s.ports {
		if p.Paused() {
			continue
		}
		s.activate(p)
	}

	s.metrics.Cycles.Inc()
	s.cycles.Add(1)
	return len(s.ports)
}

// activate calls p.Activate and contains errors and panics.
func (s *Scheduler) activate(p ActivePort) {
	defer func() {
		if r := recover(); r != nil {
			s.fault(p, "panic", fmt.Errorf("panic: %v", r))
		}
	}()

	if err := p.Activate(); err != nil {
		s.fault(p, "error", err)
	}
}

func (s *Scheduler) fault(p ActivePort, kind string, err error) {
	s.metrics.Faults.WithLabelValues(kind).Inc()
	debug.ErrorLog.Printf("activate port %v: %v", p, err)

	if s.autoPause {
		p.Pause(true)
		debug.ErrorLog.Printf("port %v paused", p)
	}
}

// Run executes activation cycles until ctx is done.
// Without ports it waits for Add, otherwise it yields the processor after each cycle
// or, with an interval, waits for the rest of the interval.
func (s *Scheduler) Run(ctx context.Context) error {
	debug.InfoLog.Printf("scheduler started (interval %v, autopause %v)", s.interval, s.autoPause)
	defer debug.InfoLog.Print("scheduler stopped")

	var timer *time.Timer
	if s.interval > 0 {
		timer = time.NewTimer(s.interval)
		defer timer.Stop()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := time.Now()
		if s.Cycle() == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-s.wake:
			}
			continue
		}

		if timer == nil {
			runtime.Gosched()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.interval - time.Since(start))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Start runs the scheduler in a background goroutine. Further calls do nothing.
func (s *Scheduler) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.started {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		_ = s.Run(ctx)
	}()
}

// Close stops the background goroutine and waits until the current cycle is finished.
func (s *Scheduler) Close() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
