// Package timeutil provides the reference-timezone clock and the calendar Date
// type used by streaks and daily gates. The reference timezone is always passed
// in explicitly; nothing here reads the host's local zone.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

// FormatDate is the standard date format (YYYY-MM-DD).
const FormatDate = "2006-01-02"

// ══════════════════════════════════════════════════════════════════════════════
// DATE
// ══════════════════════════════════════════════════════════════════════════════

// Date is a calendar date without a time component. The zero value means
// "no date" (for example, a user with no recorded activity).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns a normalized Date, so NewDate(2024, 1, 32) is 2024-02-01.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf returns the calendar date of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(FormatDate, s)
	if err != nil {
		return Date{}, fmt.Errorf("timeutil: invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// MustParseDate is ParseDate that panics on error. Intended for tests and constants.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// String formats d as YYYY-MM-DD, or "" for the zero Date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// DaysSince returns the number of calendar days from other to d.
// It is negative when other is after d.
func (d Date) DaysSince(other Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(other.Year, other.Month, other.Day, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.DaysSince(other) < 0
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.DaysSince(other) > 0
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty string yields the zero Date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLOCK
// ══════════════════════════════════════════════════════════════════════════════

// Clock supplies the current instant and the current calendar date in a
// reference timezone.
type Clock interface {
	Now() time.Time
	Today() Date
	Location() *time.Location
}

// LoadLocation resolves an IANA zone name. Unlike time.LoadLocation it treats
// the empty string as an error instead of silently returning UTC.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		return nil, fmt.Errorf("timeutil: timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timeutil: unknown timezone %q: %w", name, err)
	}
	return loc, nil
}

// SystemClock reads the system clock and reports dates in a fixed zone.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock creates a SystemClock for loc (UTC when nil).
func NewSystemClock(loc *time.Location) *SystemClock {
	if loc == nil {
		loc = time.UTC
	}
	return &SystemClock{loc: loc}
}

// Now returns the current time in the reference timezone.
func (c *SystemClock) Now() time.Time { return time.Now().In(c.loc) }

// Today returns the current calendar date in the reference timezone.
func (c *SystemClock) Today() Date { return DateOf(time.Now(), c.loc) }

// Location returns the reference timezone.
func (c *SystemClock) Location() *time.Location { return c.loc }

// FixedClock is a manually driven Clock for tests and replays.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
	loc *time.Location
}

// NewFixedClock creates a FixedClock frozen at now, reporting dates in loc.
func NewFixedClock(now time.Time, loc *time.Location) *FixedClock {
	if loc == nil {
		loc = time.UTC
	}
	return &FixedClock{now: now, loc: loc}
}

// Now returns the frozen instant.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.In(c.loc)
}

// Today returns the frozen instant's date in the reference timezone.
func (c *FixedClock) Today() Date {
	return DateOf(c.Now(), c.loc)
}

// Location returns the reference timezone.
func (c *FixedClock) Location() *time.Location { return c.loc }

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAY BOUNDARIES
// ══════════════════════════════════════════════════════════════════════════════

// StartOfDay returns 00:00:00 of t's day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	return DateOf(t, loc).In(loc)
}

// NextMidnight returns the start of the day after t's day in loc.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	return DateOf(t, loc).AddDays(1).In(loc)
}

// IsSameDay checks if two instants fall on the same calendar day in loc.
func IsSameDay(t1, t2 time.Time, loc *time.Location) bool {
	return DateOf(t1, loc) == DateOf(t2, loc)
}

// FormatDateStr formats t as a date string (YYYY-MM-DD) in loc.
func FormatDateStr(t time.Time, loc *time.Location) string {
	return DateOf(t, loc).String()
}
