/*
date.go - Calendar dates and the injectable clock

PURPOSE:
  Booking intervals, promotion windows and voucher validity are calendar
  dates without time-of-day. Date normalizes everything to midnight UTC so
  comparisons and day arithmetic are exact.

CLOCK:
  All temporal decisions (completion eligibility, hold windows, promotion
  validity) go through the Clock interface. Production uses SystemClock;
  tests inject FixedClock and advance it deterministically.

SEE ALSO:
  - types.go: Booking/Promotion/Voucher use Date for their windows
  - pricing.go: night counting via DaysBetween
*/
package booking

import "time"

// =============================================================================
// DATE - Calendar date at day granularity (midnight UTC)
// =============================================================================

type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// ParseDate parses "YYYY-MM-DD".
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t: t}, nil
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{t: d.t.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{t: d.t.AddDate(0, n, 0)} }

func (d Date) Time() time.Time { return d.t }
func (d Date) String() string  { return d.t.Format(dateLayout) }

// DaysBetween returns the whole-day difference to - from.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// CLOCK - Injectable source of "today"
// =============================================================================

type Clock interface {
	Today() Date
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Today() Date    { return DateOf(time.Now()) }
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock is a settable clock for deterministic tests.
type FixedClock struct {
	Day Date
}

func NewFixedClock(year int, month time.Month, day int) *FixedClock {
	return &FixedClock{Day: NewDate(year, month, day)}
}

func (c *FixedClock) Today() Date        { return c.Day }
func (c *FixedClock) Now() time.Time     { return c.Day.Time() }
func (c *FixedClock) Advance(days int)   { c.Day = c.Day.AddDays(days) }
func (c *FixedClock) Set(d Date)         { c.Day = d }
