package calendar

import (
	"errors"
	"fmt"
)

// ErrBadFormat is returned by Parse for strings that are not YYYY-MM-DD-HH.
var ErrBadFormat = errors.New("calendar: time must be formatted as YYYY-MM-DD-HH")

// GameTime is a point on the simulation calendar. Month and Day are
// one-based, Hour is zero-based.
type GameTime struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
	Hour  int `json:"hour"`
}

// Date is a shorthand constructor.
func Date(year, month, day, hour int) GameTime {
	return GameTime{Year: year, Month: month, Day: day, Hour: hour}
}

// String formats the time as YYYY-MM-DD-HH.
func (t GameTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d-%02d", t.Year, t.Month, t.Day, t.Hour)
}

// Parse reads a YYYY-MM-DD-HH string and clamps it through the calendar.
func (c *Calendar) Parse(s string) (GameTime, error) {
	var y, m, d, h int

	n, err := fmt.Sscanf(s, "%d-%d-%d-%d", &y, &m, &d, &h)
	if err != nil || n != 4 {
		return GameTime{}, fmt.Errorf("%w: %q", ErrBadFormat, s)
	}

	return c.Clamp(y, m, d, h), nil
}
