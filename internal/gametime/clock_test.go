package gametime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// UTC+8, reset at 05:00 local.
func testClock() *Clock {
	return New(8, 5)
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestServerDayRollsAtResetHour(t *testing.T) {
	c := testClock()
	before := at(t, "2026-03-10T04:59:00+08:00")
	after := at(t, "2026-03-10T05:00:00+08:00")

	assert.Equal(t, c.ServerDay(before)+1, c.ServerDay(after))
	assert.Equal(t, 9, c.DayOfMonth(before))
	assert.Equal(t, 10, c.DayOfMonth(after))
}

func TestIsNewDay(t *testing.T) {
	c := testClock()
	tests := []struct {
		name string
		prev string
		now  string
		want bool
	}{
		{"same day", "2026-03-10T06:00:00+08:00", "2026-03-10T23:00:00+08:00", false},
		{"past midnight before reset", "2026-03-10T06:00:00+08:00", "2026-03-11T04:00:00+08:00", false},
		{"after reset", "2026-03-10T06:00:00+08:00", "2026-03-11T05:30:00+08:00", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.IsNewDay(at(t, tt.prev).UnixMilli(), at(t, tt.now).UnixMilli())
			assert.Equal(t, tt.want, got)
		})
	}
	assert.True(t, c.IsNewDay(0, at(t, "2026-03-10T06:00:00+08:00").UnixMilli()))
}

func TestIsNewWeekStartsMonday(t *testing.T) {
	c := testClock()
	// 2026-03-15 is a Sunday, 2026-03-16 a Monday.
	sun := at(t, "2026-03-15T12:00:00+08:00").UnixMilli()
	monEarly := at(t, "2026-03-16T04:00:00+08:00").UnixMilli()
	mon := at(t, "2026-03-16T12:00:00+08:00").UnixMilli()

	assert.False(t, c.IsNewWeek(sun, monEarly))
	assert.True(t, c.IsNewWeek(sun, mon))
}

func TestIsNewMonth(t *testing.T) {
	c := testClock()
	prev := at(t, "2026-01-31T12:00:00+08:00").UnixMilli()
	assert.False(t, c.IsNewMonth(prev, at(t, "2026-02-01T04:00:00+08:00").UnixMilli()))
	assert.True(t, c.IsNewMonth(prev, at(t, "2026-02-01T06:00:00+08:00").UnixMilli()))
}

func TestNowMsUsesInjectedClock(t *testing.T) {
	c := testClock()
	fixed := at(t, "2026-03-10T06:00:00+08:00")
	c.Now = func() time.Time { return fixed }
	assert.Equal(t, fixed.UnixMilli(), c.NowMs())
}
