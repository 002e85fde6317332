package fetch

import (
	"log/slog"
	"time"
)

// Option configures a Controller.
type Option func(*Controller)

// WithDispatcher marshals state changes onto d instead of a controller-owned
// SerialDispatcher. The caller keeps ownership of d.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Controller) {
		c.dispatcher = d
	}
}

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithDelay holds every resolved outcome back by d before it is applied.
// Only useful for demos where the loading state would otherwise flash by.
func WithDelay(d time.Duration) Option {
	return func(c *Controller) {
		c.delay = d
	}
}

// WithClock replaces time.Now for UpdatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithCycleIDs replaces the UUID generator used for CycleID.
func WithCycleIDs(next func() string) Option {
	return func(c *Controller) {
		c.newID = next
	}
}
