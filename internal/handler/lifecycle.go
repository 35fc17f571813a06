package handler

import (
	"context"
	"time"

	"github.com/sonettogo/server/internal/net"
	"go.uber.org/zap"
)

const logoutSaveTimeout = 5 * time.Second

// OnSessionClose returns the connection finalizer hook: it saves the
// player's state and records the online time. A session that lost its
// registration to a newer login does not save, so the newer session's state
// is not overwritten.
func OnSessionClose(deps *Deps) func(*net.Session) {
	return func(sess *net.Session) {
		uid, err := sess.PlayerID()
		if err != nil {
			return
		}
		st := sess.Player()
		if st == nil {
			return
		}
		if cur, ok := deps.Sessions.Lookup(uid); ok && cur != sess {
			deps.Log.Debug("連線已被取代，略過離線存檔", zap.Int64("user", uid), zap.Uint64("session", sess.ID))
			return
		}

		timeout := logoutSaveTimeout
		if deps.Config != nil && deps.Config.Database.QueryTimeout > 0 {
			timeout = deps.Config.Database.QueryTimeout
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := deps.Players.Save(ctx, st); err != nil {
			deps.Log.Error("離線存檔失敗", zap.Int64("user", uid), zap.Error(err))
		}
		now := deps.Clock.NowMs()
		online := max(now-st.LastLoginAt, 0)
		if err := deps.Stats.RecordLogout(ctx, uid, online, now); err != nil {
			deps.Log.Error("離線統計寫入失敗", zap.Int64("user", uid), zap.Error(err))
		}
	}
}
