package clock

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/fixed"
)

// DefaultMaxTicksPerStep bounds a single Advance call to one simulated week.
const DefaultMaxTicksPerStep = 168

// ErrInvalidConfig is returned by Build for unusable settings.
var ErrInvalidConfig = errors.New("clock: invalid configuration")

// Builder can build clocks.
type Builder struct {
	cal             *calendar.Calendar
	start           calendar.GameTime
	hasStart        bool
	maxTicksPerStep int
	hoursPerSecond  float64
	speed           int
	paused          bool
	logger          *slog.Logger
}

// MakeBuilder creates a Builder with default parameters: the default
// calendar, one simulated hour per real second at speed 1, and a cap of
// DefaultMaxTicksPerStep.
func MakeBuilder() Builder {
	return Builder{
		maxTicksPerStep: DefaultMaxTicksPerStep,
		hoursPerSecond:  1,
		speed:           1,
	}
}

// WithCalendar sets the calendar.
func (b Builder) WithCalendar(cal *calendar.Calendar) Builder {
	b.cal = cal
	return b
}

// WithStartTime sets the initial date. Out-of-range parts are clamped.
func (b Builder) WithStartTime(t calendar.GameTime) Builder {
	b.start = t
	b.hasStart = true
	return b
}

// WithMaxTicksPerStep sets how many hours one Advance call may simulate.
// Zero removes the cap.
func (b Builder) WithMaxTicksPerStep(n int) Builder {
	b.maxTicksPerStep = n
	return b
}

// WithHoursPerSecond sets how many simulated hours one real second is worth
// at speed 1.
func (b Builder) WithHoursPerSecond(h float64) Builder {
	b.hoursPerSecond = h
	return b
}

// WithSpeed sets the initial speed multiplier.
func (b Builder) WithSpeed(speed int) Builder {
	b.speed = speed
	return b
}

// WithPaused makes the clock start paused.
func (b Builder) WithPaused() Builder {
	b.paused = true
	return b
}

// WithLogger sets the logger used for degradation warnings.
func (b Builder) WithLogger(logger *slog.Logger) Builder {
	b.logger = logger
	return b
}

// Build creates the clock.
func (b Builder) Build() (*Clock, error) {
	if b.maxTicksPerStep < 0 {
		return nil, fmt.Errorf("%w: negative tick cap %d",
			ErrInvalidConfig, b.maxTicksPerStep)
	}

	if math.IsNaN(b.hoursPerSecond) ||
		math.IsInf(b.hoursPerSecond, 0) ||
		b.hoursPerSecond <= 0 {
		return nil, fmt.Errorf("%w: hours per second %v",
			ErrInvalidConfig, b.hoursPerSecond)
	}

	cal := b.cal
	if cal == nil {
		cal = calendar.MustNew(calendar.DefaultSpec())
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Clock{
		cal:             cal,
		logger:          logger,
		maxTicksPerStep: b.maxTicksPerStep,
		hoursPerSecond:  fixed.FromFloat64(b.hoursPerSecond),
		paused:          b.paused,
	}

	if err := c.SetSpeed(b.speed); err != nil {
		return nil, err
	}

	start := calendar.Date(0, 1, 1, 0)
	if b.hasStart {
		start = b.start
	}

	c.SetTime(start.Year, start.Month, start.Day, start.Hour)

	return c, nil
}
