package player

import (
	"testing"
	"time"

	"github.com/sonettogo/server/internal/gametime"
	"github.com/stretchr/testify/assert"
)

func ms(s string) int64 {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t.UnixMilli()
}

func TestApplyLoginFirstLogin(t *testing.T) {
	clock := gametime.New(8, 5)
	s := &State{UserID: 1}

	r := s.ApplyLogin(clock, ms("2026-03-10T12:00:00+08:00"))
	assert.Equal(t, DailyReset{NewDay: true, NewWeek: true, NewMonth: true}, r)
	assert.Equal(t, DefaultTouchCount, s.TouchCountLeft)
	assert.Equal(t, int32(1), s.WeekLoginDays)
}

func TestApplyLoginSameDayKeepsCounters(t *testing.T) {
	clock := gametime.New(8, 5)
	s := &State{UserID: 1, LastLoginAt: ms("2026-03-10T06:00:00+08:00"), TouchCountLeft: 2, WeekLoginDays: 2}

	r := s.ApplyLogin(clock, ms("2026-03-10T22:00:00+08:00"))
	assert.Equal(t, DailyReset{}, r)
	assert.Equal(t, int32(2), s.TouchCountLeft)
	assert.Equal(t, int32(2), s.WeekLoginDays)
	assert.Equal(t, ms("2026-03-10T22:00:00+08:00"), s.LastLoginAt)
}

func TestApplyLoginNewWeekRestartsWeekCount(t *testing.T) {
	clock := gametime.New(8, 5)
	// Sunday then Monday.
	s := &State{UserID: 1, LastLoginAt: ms("2026-03-15T12:00:00+08:00"), WeekLoginDays: 6}

	r := s.ApplyLogin(clock, ms("2026-03-16T12:00:00+08:00"))
	assert.True(t, r.NewDay)
	assert.True(t, r.NewWeek)
	assert.False(t, r.NewMonth)
	assert.Equal(t, int32(1), s.WeekLoginDays)
}

func TestSignedInToday(t *testing.T) {
	clock := gametime.New(8, 5)
	s := &State{}
	now := ms("2026-03-10T12:00:00+08:00")
	assert.False(t, s.SignedInToday(clock, now))

	s.RecordSignIn(ms("2026-03-10T06:00:00+08:00"))
	assert.True(t, s.SignedInToday(clock, now))
	assert.False(t, s.SignedInToday(clock, ms("2026-03-11T06:00:00+08:00")))
}
