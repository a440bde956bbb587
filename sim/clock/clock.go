// Package clock turns elapsed real time into discrete simulation hours.
//
// The Clock owns the current date, the tick counter, a fixed-point
// accumulator of sub-hour progress and the speed multiplier. Nothing else
// mutates them. All time math after the single conversion of the real-time
// delta is fixed point, so peers that feed the same deltas reach the same
// state bit for bit.
package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/fixed"
	"github.com/sarchlab/gsclock/sim/hooking"
)

// Errors returned for invalid input. None of them change clock state.
var (
	ErrInvalidDelta    = errors.New("clock: real-time delta must be finite and non-negative")
	ErrNegativeSpeed   = errors.New("clock: speed multiplier must not be negative")
	ErrSpeedTooHigh    = errors.New("clock: speed multiplier does not fit in 32 bits")
	ErrDeltaTooLarge   = errors.New("clock: real-time delta overflows the pending hours")
	ErrBackwardSync    = errors.New("clock: cannot synchronize to a tick in the past")
	ErrInvalidSnapshot = errors.New("clock: snapshot does not describe a valid state")
)

// HookPosTickCapReached fires when an Advance call stops at the per-step tick
// cap with whole hours still in the accumulator. Item is the current tick,
// Detail the accumulator.
var HookPosTickCapReached = &hooking.HookPos{Name: "TickCapReached"}

// HourBoundary is emitted once per simulated hour.
type HourBoundary struct {
	Tick       uint64
	Time       calendar.GameTime
	TotalHours int64
}

// Clock is the simulation clock. It is not safe for concurrent use; the
// simulation drives it from a single goroutine.
type Clock struct {
	hooking.HookableBase

	cal    *calendar.Calendar
	logger *slog.Logger

	maxTicksPerStep int
	hoursPerSecond  fixed.Point

	now        calendar.GameTime
	totalHours int64
	tick       uint64
	acc        fixed.Point
	speed      uint32
	paused     bool

	capHits uint64
}

// Calendar returns the calendar the clock counts in.
func (c *Clock) Calendar() *calendar.Calendar {
	return c.cal
}

// CurrentTime returns the current date.
func (c *Clock) CurrentTime() calendar.GameTime {
	return c.now
}

// CurrentTick returns the number of hours simulated so far.
func (c *Clock) CurrentTick() uint64 {
	return c.tick
}

// TotalHours returns the current date as hours since the calendar epoch.
func (c *Clock) TotalHours() int64 {
	return c.totalHours
}

// Accumulator returns the pending, not yet simulated, hours.
func (c *Clock) Accumulator() fixed.Point {
	return c.acc
}

// Speed returns the speed multiplier.
func (c *Clock) Speed() uint32 {
	return c.speed
}

// IsPaused reports whether the clock is paused.
func (c *Clock) IsPaused() bool {
	return c.paused
}

// MaxTicksPerStep returns the per-Advance tick cap. Zero means no cap.
func (c *Clock) MaxTicksPerStep() int {
	return c.maxTicksPerStep
}

// CapHits returns how many Advance calls stopped at the tick cap.
func (c *Clock) CapHits() uint64 {
	return c.capHits
}

// Advance converts realDeltaSeconds into zero or more hour steps and returns
// them in order.
func (c *Clock) Advance(realDeltaSeconds float64) ([]HourBoundary, error) {
	var out []HourBoundary

	_, err := c.AdvanceEach(realDeltaSeconds, func(b HourBoundary) {
		out = append(out, b)
	})

	return out, err
}

// AdvanceEach is like Advance but calls visit after each hour step instead of
// collecting the steps. During visit the clock already reports the new tick
// and date.
//
// When the tick cap stops the loop, the remaining whole hours stay in the
// accumulator and are simulated by later calls. Time is deferred, never
// dropped.
func (c *Clock) AdvanceEach(
	realDeltaSeconds float64,
	visit func(HourBoundary),
) (int, error) {
	return c.AdvanceWhile(realDeltaSeconds, nil, visit)
}

// AdvanceWhile is like AdvanceEach but asks ready before stepping into each
// tick. The loop stops at the first tick ready rejects and, as with the tick
// cap, the whole hours left stay in the accumulator. A nil ready accepts
// every tick.
func (c *Clock) AdvanceWhile(
	realDeltaSeconds float64,
	ready func(tick uint64) bool,
	visit func(HourBoundary),
) (int, error) {
	acc, err := c.pendingAfter(realDeltaSeconds)
	if err != nil {
		return 0, err
	}

	c.acc = acc

	n := 0
	for c.acc >= fixed.One {
		if c.maxTicksPerStep > 0 && n >= c.maxTicksPerStep {
			c.reportCap()
			break
		}

		if ready != nil && !ready(c.tick+1) {
			break
		}

		c.acc = c.acc.Sub(fixed.One)
		b := c.stepHour()
		n++

		if visit != nil {
			visit(b)
		}
	}

	return n, nil
}

// CheckAdvance returns the error Advance would return for realDeltaSeconds
// without changing the clock.
func (c *Clock) CheckAdvance(realDeltaSeconds float64) error {
	_, err := c.pendingAfter(realDeltaSeconds)
	return err
}

// pendingAfter returns the accumulator after adding realDeltaSeconds at the
// current speed. A result that does not fit in fixed point is an error, so
// no simulated time is ever lost to saturation.
func (c *Clock) pendingAfter(realDeltaSeconds float64) (fixed.Point, error) {
	if err := CheckDelta(realDeltaSeconds); err != nil {
		return c.acc, err
	}

	if c.paused || c.speed == 0 {
		return c.acc, nil
	}

	gain, o1 := fixed.FromFloat64Overflow(realDeltaSeconds)
	gain, o2 := gain.MulIntOverflow(int64(c.speed))
	gain, o3 := gain.MulOverflow(c.hoursPerSecond)
	acc, o4 := c.acc.AddOverflow(gain)

	if o1 || o2 || o3 || o4 {
		return c.acc, fmt.Errorf("%w: %v s at speed %d with %d hours pending",
			ErrDeltaTooLarge, realDeltaSeconds, c.speed, c.acc.Floor())
	}

	return acc, nil
}

// CheckDelta returns ErrInvalidDelta unless d is finite and non-negative.
func CheckDelta(d float64) error {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDelta, d)
	}

	return nil
}

func (c *Clock) reportCap() {
	c.capHits++

	c.logger.Warn("tick cap reached, deferring simulation time",
		"tick", c.tick,
		"cap", c.maxTicksPerStep,
		"pending_hours", c.acc.Floor(),
	)

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosTickCapReached,
		Item:   c.tick,
		Detail: c.acc,
	})
}

// stepHour is the only place that moves the date forward. Live advancing and
// catch-up replay both go through it.
func (c *Clock) stepHour() HourBoundary {
	c.tick++
	c.totalHours++

	t := c.now
	t.Hour++

	if t.Hour >= c.cal.HoursPerDay() {
		t.Hour = 0
		t.Day++

		if t.Day > c.cal.DaysInMonth(t.Month) {
			t.Day = 1
			t.Month++

			if t.Month > c.cal.MonthsPerYear() {
				t.Month = 1
				t.Year++
			}
		}
	}

	c.now = t

	return HourBoundary{
		Tick:       c.tick,
		Time:       t,
		TotalHours: c.totalHours,
	}
}

// SetSpeed changes the speed multiplier. Slowing down caps the accumulator
// at half an hour so the new speed is felt immediately.
func (c *Clock) SetSpeed(multiplier int) error {
	if err := CheckSpeed(multiplier); err != nil {
		return err
	}

	speed := uint32(multiplier)
	if speed < c.speed {
		c.acc = c.acc.Min(fixed.Half)
	}

	c.speed = speed

	return nil
}

// CheckSpeed returns an error unless multiplier is a speed SetSpeed accepts.
func CheckSpeed(multiplier int) error {
	if multiplier < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeSpeed, multiplier)
	}

	if int64(multiplier) > math.MaxUint32 {
		return fmt.Errorf("%w: %d", ErrSpeedTooHigh, multiplier)
	}

	return nil
}

// Pause stops time from accumulating.
func (c *Clock) Pause() {
	c.paused = true
}

// Resume lets time accumulate again. Nothing is caught up on resume.
func (c *Clock) Resume() {
	c.paused = false
}

// TogglePause flips the pause state and returns the new state.
func (c *Clock) TogglePause() bool {
	c.paused = !c.paused
	return c.paused
}

// SetTime jumps to a date, clamping out-of-range parts through the
// calendar. The accumulator is reset and the tick counter is kept. This is
// the only way to move the date backward.
func (c *Clock) SetTime(year, month, day, hour int) calendar.GameTime {
	t := c.cal.Clamp(year, month, day, hour)

	c.now = t
	c.totalHours = c.cal.TotalHours(t)
	c.acc = fixed.Zero

	return t
}

// SynchronizeToTick replays hour steps until the clock reaches target. It
// ignores speed, pause and the tick cap, and never skips an hour.
func (c *Clock) SynchronizeToTick(target uint64) ([]HourBoundary, error) {
	var out []HourBoundary

	_, err := c.SynchronizeToTickEach(target, func(b HourBoundary) {
		out = append(out, b)
	})

	return out, err
}

// SynchronizeToTickEach is like SynchronizeToTick but visits each step.
func (c *Clock) SynchronizeToTickEach(
	target uint64,
	visit func(HourBoundary),
) (int, error) {
	if target < c.tick {
		return 0, fmt.Errorf("%w: at %d, asked for %d",
			ErrBackwardSync, c.tick, target)
	}

	n := 0
	for c.tick < target {
		b := c.stepHour()
		n++

		if visit != nil {
			visit(b)
		}
	}

	return n, nil
}
