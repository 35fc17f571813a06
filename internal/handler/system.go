package handler

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/player"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const maxNicknameRunes = 16

// HandleGetServerTime replies with the server clock. No login needed.
// Reply: 1 server_time, 2 offset_time, 3 server_start_time
func HandleGetServerTime(_ context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	w := packet.NewWriter()
	w.WriteInt64(1, deps.Clock.NowMs())
	w.WriteInt64(2, int64(deps.Clock.Offset)*3600*1000)
	w.WriteInt64(3, deps.Config.Server.StartTimeMs)
	return sess.SendReply(packet.CmdGetServerTime, w, resultOK, req.UpTag)
}

// HandleGetPlayerInfo replies with the session's player state.
func HandleGetPlayerInfo(_ context.Context, sess *net.Session, req *packet.Request, _ *Deps) error {
	if _, err := requireLogin(sess); err != nil {
		return err
	}
	st := sess.Player()
	if st == nil {
		return ErrNotLoggedIn
	}
	w := packet.NewWriter()
	writePlayerInfo(w, st)
	return sess.SendReply(packet.CmdGetPlayerInfo, w, resultOK, req.UpTag)
}

// PlayerInfo: 1 user_id, 2 name, 3 level, 4 exp, 5 portrait, 6 register_time,
// 7 last_login_time, 8 sign_in_days, 9 week_login_days, 10 touch_count_left
func writePlayerInfo(w *packet.Writer, st *player.State) {
	m := packet.NewWriter()
	m.WriteInt64(1, st.UserID)
	m.WriteString(2, st.Nickname)
	m.WriteInt32(3, st.Level)
	m.WriteInt32(4, st.Exp)
	m.WriteInt32(5, st.Portrait)
	m.WriteInt64(6, st.RegisterTime)
	m.WriteInt64(7, st.LastLoginAt)
	m.WriteInt32(8, st.SignInDays)
	m.WriteInt32(9, st.WeekLoginDays)
	m.WriteInt32(10, st.TouchCountLeft)
	w.WriteMessage(1, m)
}

// HandleRename sets the player's nickname.
// Payload: 1 name. Reply: 1 name
func HandleRename(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireCurrent(sess, req, deps)
	if err != nil {
		return err
	}
	r, err := decode(req)
	if err != nil {
		return err
	}
	raw, ok := r.String(1)
	if !ok {
		return ErrInvalidRequest
	}

	name, ok := normalizeNickname(raw)
	if !ok {
		return sess.SendReply(packet.CmdRename, nil, resultNameInvalid, req.UpTag)
	}
	renamed, err := deps.Players.Rename(ctx, uid, name)
	if err != nil {
		return dbErr("rename", err)
	}
	if !renamed {
		return sess.SendReply(packet.CmdRename, nil, resultNameTaken, req.UpTag)
	}
	if _, err := sess.UpdatePlayer(func(s *player.State) { s.Nickname = name }); err != nil {
		return err
	}

	sess.Log().Info(fmt.Sprintf("玩家改名  user=%d  name=%s", uid, name))
	w := packet.NewWriter()
	w.WriteString(1, name)
	return sess.SendReply(packet.CmdRename, w, resultOK, req.UpTag)
}

// normalizeNickname folds full/half-width variants, composes to NFC and trims
// surrounding space. Names must be 1-16 printable runes.
func normalizeNickname(raw string) (string, bool) {
	if !utf8.ValidString(raw) {
		return "", false
	}
	s := norm.NFC.String(width.Fold.String(raw))
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n == 0 || n > maxNicknameRunes {
		return "", false
	}
	for _, c := range s {
		if !unicode.IsPrint(c) {
			return "", false
		}
	}
	return s, true
}

