package player

import "github.com/sonettogo/server/internal/gametime"

// DailyReset reports which period boundaries a login crossed.
type DailyReset struct {
	NewDay   bool
	NewWeek  bool
	NewMonth bool
}

// ApplyLogin advances the state to a login at nowMs: daily counters are
// restored on a new server day, weekly ones cleared on a new week, and the
// login is counted toward the week.
func (s *State) ApplyLogin(clock *gametime.Clock, nowMs int64) DailyReset {
	r := DailyReset{
		NewDay:   clock.IsNewDay(s.LastLoginAt, nowMs),
		NewWeek:  clock.IsNewWeek(s.LastLoginAt, nowMs),
		NewMonth: clock.IsNewMonth(s.LastLoginAt, nowMs),
	}
	if r.NewWeek {
		s.ResetWeekly()
	}
	if r.NewDay {
		s.ResetDaily()
		s.WeekLoginDays++
	}
	s.LastLoginAt = nowMs
	return r
}

// SignedInToday reports whether the last sign-in falls on nowMs's server day.
func (s *State) SignedInToday(clock *gametime.Clock, nowMs int64) bool {
	return s.LastSignInAt > 0 && !clock.IsNewDay(s.LastSignInAt, nowMs)
}
