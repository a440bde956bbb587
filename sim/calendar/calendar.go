// Package calendar converts between calendar dates and a flat count of hours.
//
// A Calendar is an immutable table of hours per day, months per year and
// days per month. Every conversion goes through the total-hours count, which
// is also the ordering and equality basis for GameTime values.
package calendar

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Configuration errors reported by New.
var (
	ErrInvalidHoursPerDay   = errors.New("calendar: hours per day must be positive")
	ErrInvalidMonthsPerYear = errors.New("calendar: months per year must be positive")
	ErrMonthTableLength     = errors.New("calendar: month table length does not match months per year")
	ErrInvalidMonthLength   = errors.New("calendar: every month must have at least one day")
)

// Spec describes a calendar. It is the form a calendar takes in
// configuration files.
type Spec struct {
	HoursPerDay   int   `yaml:"hours_per_day" json:"hours_per_day"`
	MonthsPerYear int   `yaml:"months_per_year" json:"months_per_year"`
	DaysInMonth   []int `yaml:"days_in_month" json:"days_in_month"`
}

// DefaultSpec returns a calendar of 24-hour days and twelve 30-day months.
func DefaultSpec() Spec {
	days := make([]int, 12)
	for i := range days {
		days[i] = 30
	}

	return Spec{
		HoursPerDay:   24,
		MonthsPerYear: 12,
		DaysInMonth:   days,
	}
}

// LoadSpec reads a Spec from a YAML file.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("calendar: reading %s: %w", path, err)
	}

	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("calendar: parsing %s: %w", path, err)
	}

	return spec, nil
}

// Validate reports the first configuration error in the spec.
func (s Spec) Validate() error {
	if s.HoursPerDay <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidHoursPerDay, s.HoursPerDay)
	}

	if s.MonthsPerYear <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMonthsPerYear, s.MonthsPerYear)
	}

	if len(s.DaysInMonth) != s.MonthsPerYear {
		return fmt.Errorf("%w: %d months, %d entries",
			ErrMonthTableLength, s.MonthsPerYear, len(s.DaysInMonth))
	}

	for i, d := range s.DaysInMonth {
		if d <= 0 {
			return fmt.Errorf("%w: month %d has %d days",
				ErrInvalidMonthLength, i+1, d)
		}
	}

	return nil
}

// A Calendar converts dates to and from total hours since the epoch
// (year 0, month 1, day 1, hour 0).
type Calendar struct {
	hoursPerDay     int
	monthsPerYear   int
	daysInMonth     []int
	daysBeforeMonth []int
	daysPerYear     int64
	hoursPerYear    int64
}

// New validates the spec and builds a Calendar. An invalid spec is never
// corrected silently.
func New(spec Spec) (*Calendar, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	c := &Calendar{
		hoursPerDay:     spec.HoursPerDay,
		monthsPerYear:   spec.MonthsPerYear,
		daysInMonth:     append([]int(nil), spec.DaysInMonth...),
		daysBeforeMonth: make([]int, spec.MonthsPerYear),
	}

	sum := 0
	for i, d := range c.daysInMonth {
		c.daysBeforeMonth[i] = sum
		sum += d
	}

	c.daysPerYear = int64(sum)
	c.hoursPerYear = c.daysPerYear * int64(c.hoursPerDay)

	return c, nil
}

// MustNew is like New but panics on an invalid spec.
func MustNew(spec Spec) *Calendar {
	c, err := New(spec)
	if err != nil {
		panic(err)
	}

	return c
}

// Spec returns a copy of the spec the calendar was built from.
func (c *Calendar) Spec() Spec {
	return Spec{
		HoursPerDay:   c.hoursPerDay,
		MonthsPerYear: c.monthsPerYear,
		DaysInMonth:   append([]int(nil), c.daysInMonth...),
	}
}

// HoursPerDay returns the number of hours in a day.
func (c *Calendar) HoursPerDay() int {
	return c.hoursPerDay
}

// MonthsPerYear returns the number of months in a year.
func (c *Calendar) MonthsPerYear() int {
	return c.monthsPerYear
}

// DaysPerYear returns the number of days in a year.
func (c *Calendar) DaysPerYear() int {
	return int(c.daysPerYear)
}

// HoursPerYear returns the number of hours in a year.
func (c *Calendar) HoursPerYear() int64 {
	return c.hoursPerYear
}

// DaysInMonth returns the length of the month. Out-of-range months are
// saturated into [1, MonthsPerYear].
func (c *Calendar) DaysInMonth(month int) int {
	return c.daysInMonth[c.clampMonth(month)-1]
}

// TotalHours converts t into hours since the epoch. The result is only
// meaningful for valid times; use Clamp for untrusted input.
func (c *Calendar) TotalHours(t GameTime) int64 {
	days := int64(t.Year)*c.daysPerYear +
		int64(c.daysBeforeMonth[t.Month-1]) +
		int64(t.Day-1)

	return days*int64(c.hoursPerDay) + int64(t.Hour)
}

// FromTotalHours converts hours since the epoch back into a GameTime. It is
// the exact inverse of TotalHours for every valid GameTime, including times
// before the epoch.
func (c *Calendar) FromTotalHours(total int64) GameTime {
	year := floorDiv(total, c.hoursPerYear)
	rem := total - year*c.hoursPerYear

	dayOfYear := int(rem / int64(c.hoursPerDay))
	hour := int(rem % int64(c.hoursPerDay))

	month := c.monthsPerYear
	for m := 1; m < c.monthsPerYear; m++ {
		if dayOfYear < c.daysBeforeMonth[m] {
			month = m
			break
		}
	}

	return GameTime{
		Year:  int(year),
		Month: month,
		Day:   dayOfYear - c.daysBeforeMonth[month-1] + 1,
		Hour:  hour,
	}
}

// Clamp builds a valid GameTime from possibly out-of-range parts. Month,
// day and hour are saturated into their valid ranges, in that order, so the
// day is checked against the length of the clamped month.
func (c *Calendar) Clamp(year, month, day, hour int) GameTime {
	m := c.clampMonth(month)

	return GameTime{
		Year:  year,
		Month: m,
		Day:   clampInt(day, 1, c.daysInMonth[m-1]),
		Hour:  clampInt(hour, 0, c.hoursPerDay-1),
	}
}

// Valid reports whether every part of t is in range.
func (c *Calendar) Valid(t GameTime) bool {
	if t.Month < 1 || t.Month > c.monthsPerYear {
		return false
	}

	if t.Day < 1 || t.Day > c.daysInMonth[t.Month-1] {
		return false
	}

	return t.Hour >= 0 && t.Hour < c.hoursPerDay
}

// Compare orders two times by total hours. It returns -1, 0 or +1.
func (c *Calendar) Compare(a, b GameTime) int {
	ha, hb := c.TotalHours(a), c.TotalHours(b)

	switch {
	case ha < hb:
		return -1
	case ha > hb:
		return 1
	default:
		return 0
	}
}

// AddHours moves t by n hours, carrying into days, months and years.
func (c *Calendar) AddHours(t GameTime, n int64) GameTime {
	return c.FromTotalHours(c.TotalHours(t) + n)
}

// DayOfYear returns the zero-based day index of t within its year.
func (c *Calendar) DayOfYear(t GameTime) int {
	return c.daysBeforeMonth[t.Month-1] + t.Day - 1
}

// DayNumber returns the number of whole days between the epoch and t.
func (c *Calendar) DayNumber(t GameTime) int64 {
	return floorDiv(c.TotalHours(t), int64(c.hoursPerDay))
}

// MonthNumber returns the number of whole months between the epoch and t.
func (c *Calendar) MonthNumber(t GameTime) int64 {
	return int64(t.Year)*int64(c.monthsPerYear) + int64(t.Month-1)
}

func (c *Calendar) clampMonth(month int) int {
	return clampInt(month, 1, c.monthsPerYear)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
