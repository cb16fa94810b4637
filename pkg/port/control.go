package port

import "sync/atomic"

// Control holds the scheduler flags of an active port.
// Changes take effect at the next activation cycle.
type Control struct {
	paused  atomic.Bool
	stopped atomic.Bool
}

// Pause excludes (true) or includes (false) the port from activation without losing its frame.
func (c *Control) Pause(paused bool) {
	c.paused.Store(paused)
}

// Paused reports whether the port is paused.
func (c *Control) Paused() bool {
	return c.paused.Load()
}

// Stop removes the port from future activation cycles.
func (c *Control) Stop() {
	c.stopped.Store(true)
}

// Stopped reports whether Stop was called.
func (c *Control) Stopped() bool {
	return c.stopped.Load()
}
