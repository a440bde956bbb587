package clock

import (
	"fmt"

	"github.com/sarchlab/gsclock/sim/calendar"
	"github.com/sarchlab/gsclock/sim/fixed"
)

// Snapshot is the saved form of the clock state. The field order is part of
// the save format.
type Snapshot struct {
	Tick        uint64 `json:"tick"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	Day         int    `json:"day"`
	Hour        int    `json:"hour"`
	Speed       uint32 `json:"speed"`
	Paused      bool   `json:"paused"`
	Accumulator int64  `json:"accumulator"`
}

// Time returns the date stored in the snapshot.
func (s Snapshot) Time() calendar.GameTime {
	return calendar.Date(s.Year, s.Month, s.Day, s.Hour)
}

// Snapshot captures the clock state.
func (c *Clock) Snapshot() Snapshot {
	return Snapshot{
		Tick:        c.tick,
		Year:        c.now.Year,
		Month:       c.now.Month,
		Day:         c.now.Day,
		Hour:        c.now.Hour,
		Speed:       c.speed,
		Paused:      c.paused,
		Accumulator: c.acc.Raw(),
	}
}

// Restore replaces the clock state with a snapshot, field for field. Nothing
// is re-derived from wall-clock time. An invalid snapshot leaves the clock
// untouched.
func (c *Clock) Restore(s Snapshot) error {
	t := s.Time()
	if !c.cal.Valid(t) {
		return fmt.Errorf("%w: date %s", ErrInvalidSnapshot, t)
	}

	if s.Accumulator < 0 {
		return fmt.Errorf("%w: negative accumulator %d",
			ErrInvalidSnapshot, s.Accumulator)
	}

	c.tick = s.Tick
	c.now = t
	c.totalHours = c.cal.TotalHours(t)
	c.speed = s.Speed
	c.paused = s.Paused
	c.acc = fixed.FromRaw(s.Accumulator)

	return nil
}
