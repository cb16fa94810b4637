// Package pinmanager guarantees that no pin is claimed by two ports and activates the active ports
package pinmanager

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/womat/debug"

	"portmux/pkg/pin"
	"portmux/pkg/port"
)

// Occupant is anything that claims exclusive use of pins.
type Occupant interface {
	OccupiedPins() []pin.ID
}

// Manager is the registry of occupied pins.
// Registration checks and inserts in one critical section.
type Manager struct {
	// mu guards occupants
	mu        sync.Mutex
	occupants []Occupant

	// driver is handed to every new port
	driver    port.Driver
	scheduler *Scheduler
	metrics   *Metrics
}

// Option configures a Manager.
type Option func(*options)

type options struct {
	interval   time.Duration
	autoPause  bool
	registerer prometheus.Registerer
}

// WithInterval sets the minimum duration of an activation cycle.
// The default 0 polls continuously and yields the processor after every cycle.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithAutoPause pauses a port after its activation failed.
func WithAutoPause(enabled bool) Option {
	return func(o *options) { o.autoPause = enabled }
}

// WithRegisterer registers the metrics of the manager with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// New creates a manager whose ports transfer their frames with driver (nil disables the transfer).
// The scheduler isn't running until Start or Run is called.
func New(driver port.Driver, opts ...Option) *Manager {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	metrics := NewMetrics(o.registerer)
	return &Manager{
		driver:    driver,
		metrics:   metrics,
		scheduler: newScheduler(o.interval, o.autoPause, metrics),
	}
}

// Driver returns the driver handed to new ports.
func (m *Manager) Driver() port.Driver {
	return m.driver
}

// Scheduler returns the activation scheduler.
func (m *Manager) Scheduler() *Scheduler {
	return m.scheduler
}

// Metrics returns the collectors of the manager.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// RegisterOutputPort claims the pins of definition for a new output port.
func (m *Manager) RegisterOutputPort(definition []pin.ID) (*port.OutputPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(definition); err != nil {
		return nil, err
	}

	o := port.NewOutput(definition, m.driver)
	m.insert(o)
	debug.DebugLog.Printf("output port %v registered", pin.Join(definition))
	return o, nil
}

// RegisterInputPort claims the pins of definition for a new input port.
func (m *Manager) RegisterInputPort(definition []pin.ID) (*port.InputPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(definition); err != nil {
		return nil, err
	}

	i := port.NewInput(definition, m.driver)
	m.insert(i)
	debug.DebugLog.Printf("input port %v registered", pin.Join(definition))
	return i, nil
}

// RegisterInputOutputPorts claims both definitions as one operation: either both ports are
// registered or none. A pin used by both definitions is reported as conflict.
func (m *Manager) RegisterInputOutputPorts(in, out []pin.ID) (*port.InputPort, *port.OutputPort, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(in, out); err != nil {
		return nil, nil, err
	}

	i := port.NewInput(in, m.driver)
	o := port.NewOutput(out, m.driver)
	m.insert(i)
	m.insert(o)
	debug.DebugLog.Printf("input port %v and output port %v registered", pin.Join(in), pin.Join(out))
	return i, o, nil
}

// CheckFreePins returns a *PinConflictError if any of pins is claimed. It changes nothing.
func (m *Manager) CheckFreePins(pins []pin.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if conflicts := m.conflicts(pins); len(conflicts) > 0 {
		return &PinConflictError{Conflicts: conflicts}
	}
	return nil
}

// AddActivePort registers a for activation. This is independent of pin occupation.
func (m *Manager) AddActivePort(a ActivePort) {
	m.scheduler.Add(a)
}

// Release removes an occupant and frees its pins. If the occupant is an active port, it's stopped.
// It reports whether o was registered.
func (m *Manager) Release(o Occupant) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, occ := range m.occupants {
		if occ != o {
			continue
		}

		m.occupants = append(m.occupants[:i], m.occupants[i+1:]...)
		m.metrics.OccupiedPins.Set(float64(m.countPins()))
		if a, ok := o.(ActivePort); ok {
			a.Stop()
		}
		debug.DebugLog.Printf("pins %v released", pin.Join(o.OccupiedPins()))
		return true
	}
	return false
}

// Clear drops all occupants and all active ports.
// It resets the manager for tests and re-provisioning, it isn't the way to release single ports.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.occupants = nil
	m.metrics.OccupiedPins.Set(0)
	m.mu.Unlock()

	m.scheduler.clear()
	debug.DebugLog.Print("pin manager cleared")
}

// Occupants returns a copy of the list of occupants.
func (m *Manager) Occupants() []Occupant {
	m.mu.Lock()
	defer m.mu.Unlock()

	occ := make([]Occupant, len(m.occupants))
	copy(occ, m.occupants)
	return occ
}

// OccupiedPins returns all claimed pins, sorted.
func (m *Manager) OccupiedPins() []pin.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var pins []pin.ID
	for _, o := range m.occupants {
		pins = append(pins, o.OccupiedPins()...)
	}
	return pin.Sort(pins)
}

// Start starts the scheduler in the background, once.
func (m *Manager) Start() {
	m.scheduler.Start()
}

// Run runs the scheduler until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	return m.scheduler.Run(ctx)
}

// Close stops a scheduler started by Start and waits for it.
func (m *Manager) Close() error {
	m.scheduler.Close()
	return nil
}

// check validates definitions against each other and the occupied pins. mu must be held.
func (m *Manager) check(definitions ...[]pin.ID) error {
	var dup []pin.ID
	for _, def := range definitions {
		if len(def) == 0 {
			return ErrEmptyDefinition
		}
		for _, id := range def {
			if !id.Valid() {
				return &pin.InvalidError{Value: id.Int()}
			}
		}
		dup = append(dup, pin.Duplicates(def)...)
	}
	if len(dup) > 0 {
		return &DuplicatePinsError{Duplicates: unique(dup)}
	}

	var all []pin.ID
	for _, def := range definitions {
		all = append(all, def...)
	}

	conflicts := append(pin.Duplicates(all), m.conflicts(all)...)
	if len(conflicts) > 0 {
		return &PinConflictError{Conflicts: unique(conflicts)}
	}
	return nil
}

// conflicts returns the pins of requested that are claimed by an occupant. mu must be held.
func (m *Manager) conflicts(requested []pin.ID) []pin.ID {
	claimed := make(map[pin.ID]bool)
	for _, o := range m.occupants {
		for _, id := range o.OccupiedPins() {
			claimed[id] = true
		}
	}

	var c []pin.ID
	for _, id := range requested {
		if claimed[id] {
			c = append(c, id)
		}
	}
	return unique(c)
}

// insert adds an occupant. mu must be held.
func (m *Manager) insert(o Occupant) {
	m.occupants = append(m.occupants, o)
	m.metrics.OccupiedPins.Set(float64(m.countPins()))
}

func (m *Manager) countPins() int {
	n := 0
	for _, o := range m.occupants {
		n += len(o.OccupiedPins())
	}
	return n
}

func unique(ids []pin.ID) []pin.ID {
	if len(ids) == 0 {
		return nil
	}

	seen := make(map[pin.ID]bool, len(ids))
	u := make([]pin.ID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			u = append(u, id)
		}
	}
	return pin.Sort(u)
}

var (
	defaultOnce    sync.Once
	defaultManager *Manager
)

// Default returns the process wide manager. It has no driver and its scheduler is started
// on first use. Tests reset it with Clear.
func Default() *Manager {
	defaultOnce.Do(func() {
		defaultManager = New(nil)
		defaultManager.Start()
	})
	return defaultManager
}
