// Package cascade bounds chains of updates that trigger further updates
// within one step. Work beyond the depth limit is deferred to the next step
// instead of being dropped or run unbounded.
package cascade

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sarchlab/gsclock/sim/hooking"
)

// Errors returned by the controller.
var (
	ErrInvalidConfig     = errors.New("cascade: invalid configuration")
	ErrDeferredQueueFull = errors.New("cascade: deferred queue is full")
)

// Hook positions. Item is the depth at which the update was refused.
var (
	HookPosDeferred = &hooking.HookPos{Name: "CascadeDeferred"}
	HookPosDropped  = &hooking.HookPos{Name: "CascadeDropped"}
)

// Config limits cascades.
type Config struct {
	// MaxDepth is the deepest nesting allowed within one step.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// MaxDeferred bounds the deferred queue. Zero means unbounded.
	MaxDeferred int `yaml:"max_deferred" json:"max_deferred"`
}

// DefaultConfig returns the limits used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		MaxDepth:    8,
		MaxDeferred: 4096,
	}
}

// Validate checks the limits.
func (c Config) Validate() error {
	if c.MaxDepth < 1 {
		return fmt.Errorf("%w: max depth %d", ErrInvalidConfig, c.MaxDepth)
	}

	if c.MaxDeferred < 0 {
		return fmt.Errorf("%w: max deferred %d", ErrInvalidConfig, c.MaxDeferred)
	}

	return nil
}

// Stats counts what the controller did since it was created.
type Stats struct {
	Executed      uint64
	Deferred      uint64
	Dropped       uint64
	Drained       uint64
	MaxDepthSeen  int
	LastStepDrain int
}

// Controller runs guarded updates. It is driven from the simulation
// goroutine only.
type Controller struct {
	hooking.HookableBase

	cfg    Config
	logger *slog.Logger

	depth    int
	deferred []func()
	stats    Stats
}

// New creates a controller. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Config returns the limits.
func (c *Controller) Config() Config {
	return c.cfg
}

// Depth returns the current nesting depth.
func (c *Controller) Depth() int {
	return c.depth
}

// Pending returns how many updates wait for the next step.
func (c *Controller) Pending() int {
	return len(c.deferred)
}

// Stats returns the counters.
func (c *Controller) Stats() Stats {
	return c.stats
}

// RunGuarded runs fn if the nesting limit allows it. Otherwise fn is queued
// for the next step. It returns ErrDeferredQueueFull if fn had to be dropped.
func (c *Controller) RunGuarded(fn func()) error {
	if c.depth >= c.cfg.MaxDepth {
		return c.deferUpdate(fn)
	}

	c.depth++
	defer func() { c.depth-- }()

	if c.depth > c.stats.MaxDepthSeen {
		c.stats.MaxDepthSeen = c.depth
	}

	c.stats.Executed++
	fn()

	return nil
}

func (c *Controller) deferUpdate(fn func()) error {
	if c.cfg.MaxDeferred > 0 && len(c.deferred) >= c.cfg.MaxDeferred {
		c.stats.Dropped++

		c.logger.Error("cascade deferred queue full, dropping update",
			"depth", c.depth,
			"pending", len(c.deferred),
		)

		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosDropped,
			Item:   c.depth,
			Detail: len(c.deferred),
		})

		return fmt.Errorf("%w: %d pending", ErrDeferredQueueFull, len(c.deferred))
	}

	c.deferred = append(c.deferred, fn)
	c.stats.Deferred++

	c.logger.Warn("cascade depth limit reached, deferring update",
		"depth", c.depth,
		"pending", len(c.deferred),
	)

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosDeferred,
		Item:   c.depth,
		Detail: len(c.deferred),
	})

	return nil
}

// BeginStep resets the depth and runs the updates deferred during the
// previous step, each as a top-level call. Anything they defer in turn waits
// for the following step. It returns how many updates were run.
func (c *Controller) BeginStep() int {
	c.depth = 0

	pending := c.deferred
	c.deferred = nil

	for _, fn := range pending {
		_ = c.RunGuarded(fn)
	}

	c.stats.Drained += uint64(len(pending))
	c.stats.LastStepDrain = len(pending)

	return len(pending)
}

// Discard drops every deferred update, for example after loading a save.
func (c *Controller) Discard() int {
	n := len(c.deferred)
	c.deferred = nil

	return n
}
