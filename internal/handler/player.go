package handler

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/player"
)

// HandleClientStatBaseInfo pushes the account statistics and then sends an
// empty reply.
// StatInfoPush: 1 login_days, 2 total_online_ms, 3 first_login_at,
// 4 last_logout_at, 5 register_time
func HandleClientStatBaseInfo(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	stats, err := deps.Stats.Get(ctx, uid)
	if err != nil {
		return dbErr("stats", err)
	}

	w := packet.NewWriter()
	w.WriteInt32(1, stats.LoginDays)
	w.WriteInt64(2, stats.TotalOnlineMs)
	w.WriteInt64(3, stats.FirstLoginAt)
	w.WriteInt64(4, stats.LastLogoutAt)
	if st := sess.Player(); st != nil {
		w.WriteInt64(5, st.RegisterTime)
	}
	if err := sess.SendPush(packet.CmdStatInfoPush, w); err != nil {
		return err
	}
	return sess.SendReply(packet.CmdClientStatBaseInfo, nil, resultOK, req.UpTag)
}

// HandleUpdateClientStatBaseInfo acknowledges a client statistics report.
func HandleUpdateClientStatBaseInfo(_ context.Context, sess *net.Session, req *packet.Request, _ *Deps) error {
	if _, err := requireLogin(sess); err != nil {
		return err
	}
	return sess.SendReply(packet.CmdUpdateClientStatBaseInfo, nil, resultOK, req.UpTag)
}

// HandleGetAssistBonus sends the once-per-login state pushes, then replies.
// Reply: 1 assist_bonus, 2 has_receive_assist_bonus
func HandleGetAssistBonus(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	if err := sendStatePushes(ctx, sess, deps, uid, "GetAssistBonus"); err != nil {
		return err
	}
	w := packet.NewWriter()
	w.WriteInt32(1, 0)
	w.WriteInt32(2, 0)
	return sess.SendReply(packet.CmdGetAssistBonus, w, resultOK, req.UpTag)
}

// HandleSignIn records the sign-in once per server day, then replies with
// today's day of month and the owned heroes whose birthday it is, then sends
// the state pushes if this login has not had them yet. The session state only
// changes after the save succeeded.
// Reply: 1 day, 2 repeated birthday_hero_ids
func HandleSignIn(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireCurrent(sess, req, deps)
	if err != nil {
		return err
	}
	st := sess.Player()
	if st == nil {
		return ErrNotLoggedIn
	}
	now := deps.Clock.NowMs()
	date := deps.Clock.ServerDate(time.UnixMilli(now))

	birthday, err := ownedBirthdayHeroes(ctx, deps, uid, int(date.Month()), date.Day())
	if err != nil {
		return err
	}

	if !st.SignedInToday(deps.Clock, now) {
		st.RecordSignIn(now)
		if err := savePlayer(ctx, sess, deps, st); err != nil {
			return err
		}
		if _, err := sess.UpdatePlayer(func(s *player.State) {
			if !s.SignedInToday(deps.Clock, now) {
				s.RecordSignIn(now)
			}
		}); err != nil {
			return err
		}
		sess.Log().Info(fmt.Sprintf("玩家簽到  user=%d  day=%d  total=%d", uid, date.Day(), st.SignInDays))
	}

	w := packet.NewWriter()
	w.WriteInt32(1, int32(date.Day()))
	w.WritePackedInt32s(2, birthday)
	if err := sess.SendReply(packet.CmdSignIn, w, resultOK, req.UpTag); err != nil {
		return err
	}

	return sendStatePushes(ctx, sess, deps, uid, "SignIn")
}

// HandleGetSignInInfo replies with the sign-in summary.
// Reply: 1 sign_in_days, 2 signed_today, 3 day, 4 week_login_days
func HandleGetSignInInfo(_ context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	if _, err := requireLogin(sess); err != nil {
		return err
	}
	st := sess.Player()
	if st == nil {
		return ErrNotLoggedIn
	}
	now := deps.Clock.NowMs()

	w := packet.NewWriter()
	w.WriteInt32(1, st.SignInDays)
	w.WriteBool(2, st.SignedInToday(deps.Clock, now))
	w.WriteInt32(3, int32(deps.Clock.DayOfMonth(time.UnixMilli(now))))
	w.WriteInt32(4, st.WeekLoginDays)
	return sess.SendReply(packet.CmdGetSignInInfo, w, resultOK, req.UpTag)
}

func ownedBirthdayHeroes(ctx context.Context, deps *Deps, uid int64, month, day int) ([]int32, error) {
	candidates := deps.Characters.BirthdayOn(month, day)
	if len(candidates) == 0 {
		return nil, nil
	}
	heroes, err := deps.Heroes.List(ctx, uid)
	if err != nil {
		return nil, dbErr("hero list", err)
	}
	var out []int32
	for _, h := range heroes {
		if slices.Contains(candidates, h.HeroID) {
			out = append(out, h.HeroID)
		}
	}
	return out, nil
}
