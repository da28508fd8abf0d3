// Package clock supplies the current time and the canonical calendar day used
// for daily usage accounting.
//
// Usage counters are compared by Day, never by formatted date strings, so two
// call sites can't disagree about what "today" means.
package clock

import (
	"fmt"
	"sync"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Day is a calendar day expressed as the number of days since 1970-01-01.
type Day int32

// DayOf returns the calendar day of t as observed in loc.
// A nil loc means UTC.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Day(midnight.Unix() / secondsPerDay)
}

// ParseDay parses a YYYY-MM-DD date.
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, fmt.Errorf("parse day %q: %w", s, err)
	}
	return DayOf(t, time.UTC), nil
}

// MustParseDay is ParseDay for constants and tests.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns midnight UTC at the start of the day.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*secondsPerDay, 0).UTC()
}

// String formats the day as YYYY-MM-DD.
func (d Day) String() string {
	return d.Time().Format(time.DateOnly)
}

// AddDays returns the day n days after d.
func (d Day) AddDays(n int) Day {
	return d + Day(n)
}

// Clock is the source of "now" for services.
type Clock interface {
	Now() time.Time
	Today() Day
}

// SystemClock reads the wall clock. Days are computed in Location.
type SystemClock struct {
	Location *time.Location
}

// New returns a SystemClock for the named IANA zone ("" means UTC).
func New(zone string) (SystemClock, error) {
	if zone == "" {
		return SystemClock{Location: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return SystemClock{}, fmt.Errorf("load usage timezone %q: %w", zone, err)
	}
	return SystemClock{Location: loc}, nil
}

func (c SystemClock) Now() time.Time {
	return time.Now()
}

func (c SystemClock) Today() Day {
	return DayOf(time.Now(), c.Location)
}

// Fixed is a Clock frozen at a single instant until moved. It is safe for
// concurrent use.
type Fixed struct {
	mu  sync.Mutex
	at  time.Time
	loc *time.Location
}

// NewFixed returns a Fixed clock at noon UTC on the given YYYY-MM-DD day.
// It panics on a malformed day.
func NewFixed(day string) *Fixed {
	return &Fixed{at: MustParseDay(day).Time().Add(12 * time.Hour), loc: time.UTC}
}

// In returns a Fixed clock at t whose days are computed in loc.
func In(t time.Time, loc *time.Location) *Fixed {
	return &Fixed{at: t, loc: loc}
}

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *Fixed) Today() Day {
	c.mu.Lock()
	defer c.mu.Unlock()
	return DayOf(c.at, c.loc)
}

// Set moves the clock to t.
func (c *Fixed) Set(t time.Time) {
	c.mu.Lock()
	c.at = t
	c.mu.Unlock()
}

// AdvanceDays moves the clock forward n whole days.
func (c *Fixed) AdvanceDays(n int) {
	c.mu.Lock()
	c.at = c.at.AddDate(0, 0, n)
	c.mu.Unlock()
}

var (
	_ Clock = SystemClock{}
	_ Clock = (*Fixed)(nil)
)
