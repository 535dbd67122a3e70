// Package admission bounds the number of concurrently active video decoders.
// Browsers and hardware decoders fall over well before memory does; the wall
// must never have more tiles decoding than the platform can sustain.
package admission

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Controller is a FIFO admission gate for decoder slots. Each call site
// constructs its own controller with its own capacity; there is no global
// decoder budget shared between the wall and hover previews.
type Controller struct {
	logger hclog.Logger

	mu      sync.Mutex
	max     int
	active  int
	waiters []*waiter
}

type waiter struct {
	id      string
	granted bool
	ready   chan struct{}
}

// NewController creates an admission controller granting at most max
// concurrent slots.
func NewController(max int, logger hclog.Logger) *Controller {
	if max < 1 {
		max = 1
	}
	return &Controller{
		logger: logger.Named("admission"),
		max:    max,
	}
}

// Acquire requests a decoder slot. When a slot is free it is granted
// immediately; otherwise the request joins a FIFO queue. The returned
// release func is idempotent: called before the grant it cancels the queued
// request, called after it frees the slot and promotes the next waiter.
// Releasing a slot that was never granted is a no-op.
func (c *Controller) Acquire(id string) (release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active < c.max {
		c.active++
		c.logger.Debug("slot granted", "id", id, "active", c.active)
		return c.releaseFunc(id)
	}

	w := &waiter{id: id, ready: make(chan struct{})}
	c.waiters = append(c.waiters, w)
	c.logger.Debug("slot request queued", "id", id, "waiting", len(c.waiters))

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if !w.granted {
				c.removeWaiter(w)
				return
			}
			c.releaseLocked(w.id)
		})
	}
}

// TryAcquire grants a slot only when one is free right now; it never
// queues. ok is false when the controller is at capacity.
func (c *Controller) TryAcquire(id string) (release func(), ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active >= c.max {
		return nil, false
	}
	c.active++
	c.logger.Debug("slot granted", "id", id, "active", c.active)
	return c.releaseFunc(id), true
}

// AcquireWait blocks until a slot is granted or ctx is cancelled. On
// cancellation the queued request is removed; a grant that races the
// cancellation is handed straight back.
func (c *Controller) AcquireWait(ctx context.Context, id string) (release func(), err error) {
	c.mu.Lock()
	if c.active < c.max {
		c.active++
		c.logger.Debug("slot granted", "id", id, "active", c.active)
		c.mu.Unlock()
		return c.releaseFunc(id), nil
	}

	w := &waiter{id: id, ready: make(chan struct{})}
	c.waiters = append(c.waiters, w)
	c.mu.Unlock()

	select {
	case <-w.ready:
		return c.releaseFunc(id), nil
	case <-ctx.Done():
		c.mu.Lock()
		if w.granted {
			// Grant won the race; give the slot back
			c.releaseLocked(id)
			c.mu.Unlock()
			return nil, ctx.Err()
		}
		c.removeWaiter(w)
		c.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Active returns the number of granted, unreleased slots
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Waiting returns the number of queued requests
func (c *Controller) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// Capacity returns the slot limit
func (c *Controller) Capacity() int {
	return c.max
}

func (c *Controller) releaseFunc(id string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.releaseLocked(id)
		})
	}
}

// releaseLocked frees one slot and promotes the longest-queued waiter.
// Caller holds c.mu.
func (c *Controller) releaseLocked(id string) {
	c.active--
	c.logger.Debug("slot released", "id", id, "active", c.active)

	if c.active < c.max && len(c.waiters) > 0 {
		next := c.waiters[0]
		c.waiters = c.waiters[1:]
		next.granted = true
		c.active++
		close(next.ready)
		c.logger.Debug("slot granted from queue", "id", next.id, "active", c.active)
	}
}

// removeWaiter drops a cancelled request from the queue. Caller holds c.mu.
func (c *Controller) removeWaiter(w *waiter) {
	for i, queued := range c.waiters {
		if queued == w {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}
