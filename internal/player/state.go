// Package player holds the per-player state a session loads at login and
// mutates while handling commands.
package player

// DefaultTouchCount is the number of hero touches granted per server day.
const DefaultTouchCount int32 = 5

// State is plain data. A session owns the only live copy; handlers read it
// through snapshots and change it through Session.UpdatePlayer.
type State struct {
	UserID         int64
	Nickname       string
	Level          int32
	Exp            int32
	Portrait       int32
	RegisterTime   int64 // ms
	LastLoginAt    int64 // ms
	LastSignInAt   int64 // ms, 0 = never
	SignInDays     int32 // total days signed in
	WeekLoginDays  int32
	TouchCountLeft int32
}

// New returns the state of a freshly created account.
func New(userID int64, nowMs int64) *State {
	return &State{
		UserID:         userID,
		Nickname:       "",
		Level:          1,
		RegisterTime:   nowMs,
		LastLoginAt:    nowMs,
		TouchCountLeft: DefaultTouchCount,
	}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// RecordSignIn marks a sign-in at nowMs. Callers decide whether the day was
// already signed; calling it twice counts twice.
func (s *State) RecordSignIn(nowMs int64) {
	s.LastSignInAt = nowMs
	s.SignInDays++
}

// UseTouch consumes one hero touch. It returns false and leaves the counter
// at zero when none are left.
func (s *State) UseTouch() bool {
	if s.TouchCountLeft <= 0 {
		s.TouchCountLeft = 0
		return false
	}
	s.TouchCountLeft--
	return true
}

// ResetDaily restores per-day counters.
func (s *State) ResetDaily() {
	s.TouchCountLeft = DefaultTouchCount
}

// ResetWeekly clears per-week counters.
func (s *State) ResetWeekly() {
	s.WeekLoginDays = 0
}
