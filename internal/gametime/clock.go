// Package gametime maps wall-clock instants onto server days. A server day
// starts at ResetHour local time in a fixed UTC offset zone.
package gametime

import (
	"time"
)

type Clock struct {
	Offset    int // hours east of UTC
	ResetHour int // 0-23
	Now       func() time.Time
}

func New(offsetHours, resetHour int) *Clock {
	return &Clock{Offset: offsetHours, ResetHour: resetHour, Now: time.Now}
}

func (c *Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// NowMs returns the current unix time in milliseconds.
func (c *Clock) NowMs() int64 {
	return c.now().UnixMilli()
}

// ServerDate returns t in the server zone, shifted back by the reset hour so
// that its calendar date is the server day's date.
func (c *Clock) ServerDate(t time.Time) time.Time {
	zone := time.FixedZone("server", c.Offset*3600)
	return t.In(zone).Add(-time.Duration(c.ResetHour) * time.Hour)
}

// ServerDay returns the number of server days since the unix epoch.
func (c *Clock) ServerDay(t time.Time) int64 {
	d := c.ServerDate(t)
	y, m, day := d.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

// ServerWeek returns a week index with weeks starting on Monday.
func (c *Clock) ServerWeek(t time.Time) int64 {
	// 1970-01-01 was a Thursday.
	return (c.ServerDay(t) + 3) / 7
}

// DayOfMonth returns the server day's day of month.
func (c *Clock) DayOfMonth(t time.Time) int {
	return c.ServerDate(t).Day()
}

// IsNewDay reports whether nowMs falls on a later server day than prevMs.
// A zero prevMs counts as never.
func (c *Clock) IsNewDay(prevMs, nowMs int64) bool {
	if prevMs <= 0 {
		return true
	}
	return c.ServerDay(time.UnixMilli(nowMs)) > c.ServerDay(time.UnixMilli(prevMs))
}

func (c *Clock) IsNewWeek(prevMs, nowMs int64) bool {
	if prevMs <= 0 {
		return true
	}
	return c.ServerWeek(time.UnixMilli(nowMs)) > c.ServerWeek(time.UnixMilli(prevMs))
}

func (c *Clock) IsNewMonth(prevMs, nowMs int64) bool {
	if prevMs <= 0 {
		return true
	}
	p := c.ServerDate(time.UnixMilli(prevMs))
	n := c.ServerDate(time.UnixMilli(nowMs))
	return n.Year()*12+int(n.Month()) > p.Year()*12+int(p.Month())
}
