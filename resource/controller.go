// Package resource limits how hard a cache drives its storage engine.
package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxInFlight is the maximum number of concurrent engine operations.
	// If 0, unlimited.
	MaxInFlight int64

	// OpsPerSec is the steady-state engine operation rate.
	// If 0, unlimited.
	OpsPerSec float64

	// Burst is the number of operations allowed above OpsPerSec.
	// Defaults to 1 when OpsPerSec is set.
	Burst int
}

// Controller gates engine operations by concurrency and rate.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	inflight *semaphore.Weighted // nil if unlimited
	limiter  *rate.Limiter       // nil if unlimited

	active atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxInFlight > 0 {
		c.inflight = semaphore.NewWeighted(cfg.MaxInFlight)
	}

	if cfg.OpsPerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.OpsPerSec), burst)
	}

	return c
}

// Acquire blocks until one operation may run, or ctx is canceled.
// The returned release func must be called when the operation ends; extra
// calls are no-ops.
func (c *Controller) Acquire(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if c.inflight != nil {
		if err := c.inflight.Acquire(ctx, 1); err != nil {
			return nil, err
		}
	}

	return c.releaser(), nil
}

// TryAcquire is the non-blocking form of Acquire. ok is false when a limit
// would be exceeded.
func (c *Controller) TryAcquire() (release func(), ok bool) {
	if c == nil {
		return func() {}, true
	}
	if c.limiter != nil && !c.limiter.Allow() {
		return nil, false
	}
	if c.inflight != nil && !c.inflight.TryAcquire(1) {
		return nil, false
	}

	return c.releaser(), true
}

func (c *Controller) releaser() func() {
	c.active.Add(1)
	var released atomic.Bool
	return func() {
		if !released.CompareAndSwap(false, true) {
			return
		}
		c.active.Add(-1)
		if c.inflight != nil {
			c.inflight.Release(1)
		}
	}
}

// InFlight returns the number of operations currently holding a slot.
func (c *Controller) InFlight() int64 {
	if c == nil {
		return 0
	}
	return c.active.Load()
}

// Limited reports whether any limit is configured.
func (c *Controller) Limited() bool {
	return c != nil && (c.inflight != nil || c.limiter != nil)
}
