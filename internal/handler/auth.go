package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
	"go.uber.org/zap"
)

// accountPrefix is the channel prefix of SDK account ids ("200_<uid>").
const accountPrefix = "200"

// Red-dot define groups pushed right after a successful login, in order.
var loginRedDotGroups = [][]int32{
	{2218, 2220, 2221},
	{2240},
	{2230},
}

// HandleLogin processes LoginRequest.
// Payload: 1 account_id, 2 token
func HandleLogin(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	return handleLogin(ctx, sess, req, deps, packet.CmdLoginRequest)
}

// HandleReconnect processes ReconnectRequest. It verifies the same
// credentials as a login and restores the session without a new client
// bootstrap.
func HandleReconnect(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	return handleLogin(ctx, sess, req, deps, packet.CmdReconnectRequest)
}

func handleLogin(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps, cmd packet.CmdID) error {
	reject := func(reason string, cause error) error {
		if err := sess.SendRawReplyFixed(cmd, errorPayload(reason), resultError, req.UpTag); err != nil {
			sess.Log().Debug("登入失敗回覆無法送出", zap.Error(err))
		}
		if cause == nil {
			cause = &CustomError{Msg: reason}
		}
		return errors.Join(ErrAuthFailed, cause)
	}

	r, err := packet.NewReader(req.Payload)
	if err != nil {
		return reject("Invalid request", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	accountID, _ := r.String(1)
	token, _ := r.String(2)

	uid, err := extractUserID(accountID)
	if err != nil {
		sess.Log().Warn("帳號格式錯誤", zap.String("account", accountID))
		return reject("Invalid account format", err)
	}

	row, err := deps.Users.GetToken(ctx, uid)
	if err != nil {
		deps.Log.Error("登入查詢帳號資料庫錯誤", zap.Int64("user", uid), zap.Error(err))
		return reject("Database error", dbErr("get token", err))
	}
	if row == nil {
		sess.Log().Warn(fmt.Sprintf("登入失敗(帳號不存在)  user=%d  ip=%s", uid, sess.IP))
		return reject("User not found", nil)
	}
	if row.Token != token {
		sess.Log().Warn(fmt.Sprintf("登入失敗(憑證錯誤)  user=%d  ip=%s", uid, sess.IP))
		return reject("Invalid token", nil)
	}
	now := deps.Clock.NowMs()
	if row.ExpiresAt != nil && now > *row.ExpiresAt {
		sess.Log().Warn(fmt.Sprintf("登入失敗(憑證過期)  user=%d  ip=%s", uid, sess.IP))
		return reject("Token expired", nil)
	}

	// Everything below is fetched before the session is bound so that a
	// failure leaves the connection anonymous.
	state, err := deps.Players.Load(ctx, uid, now)
	if err != nil {
		deps.Log.Error("載入玩家資料庫錯誤", zap.Int64("user", uid), zap.Error(err))
		return reject("Database error", dbErr("load player", err))
	}
	reset, err := deps.Players.ProcessDailyLogin(ctx, state, deps.Clock, now)
	if err != nil {
		deps.Log.Error("每日登入處理資料庫錯誤", zap.Int64("user", uid), zap.Error(err))
		return reject("Database error", dbErr("daily login", err))
	}
	redDots := make([][]persist.RedDot, 0, len(loginRedDotGroups))
	for _, ids := range loginRedDotGroups {
		dots, err := fetchRedDots(ctx, deps, uid, ids)
		if err != nil {
			deps.Log.Error("讀取紅點資料庫錯誤", zap.Int64("user", uid), zap.Error(err))
			return reject("Database error", dbErr("red dots", err))
		}
		redDots = append(redDots, dots)
	}

	if err := sess.Login(uid, state); err != nil {
		sess.Log().Warn("連線已綁定其他帳號", zap.Int64("user", uid))
		return reject("Session bound to another account", err)
	}
	if old := deps.Sessions.Register(uid, sess); old != nil {
		deps.Log.Info(fmt.Sprintf("重複登入，取代舊連線  user=%d  old_session=%d  new_session=%d",
			uid, old.ID, sess.ID))
		deps.Metrics.Takeover()
	}

	for _, dots := range redDots {
		if err := pushRedDots(sess, dots); err != nil {
			return err
		}
	}

	// LoginReply: 1 user_id, 2 nickname, 3 server_time, 4 is_new_day, 5 register_time
	w := packet.NewWriter()
	w.WriteInt64(1, uid)
	w.WriteString(2, state.Nickname)
	w.WriteInt64(3, now)
	w.WriteBool(4, reset.NewDay)
	w.WriteInt64(5, state.RegisterTime)
	if err := sess.SendRawReplyFixed(cmd, w.Bytes(), resultOK, req.UpTag); err != nil {
		return err
	}

	deps.Log.Info(fmt.Sprintf("登入成功  user=%d  ip=%s  cmd=%s  new_day=%t", uid, sess.IP, cmd, reset.NewDay))
	return nil
}

// extractUserID parses an SDK account id of the form "200_<uid>".
func extractUserID(accountID string) (int64, error) {
	prefix, rest, ok := strings.Cut(accountID, "_")
	if !ok || prefix != accountPrefix {
		return 0, fmt.Errorf("%w: account id %q", ErrInvalidRequest, accountID)
	}
	uid, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || uid <= 0 {
		return 0, fmt.Errorf("%w: account id %q", ErrInvalidRequest, accountID)
	}
	return uid, nil
}
