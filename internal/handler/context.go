package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/sonettogo/server/internal/config"
	"github.com/sonettogo/server/internal/data"
	"github.com/sonettogo/server/internal/gacha"
	"github.com/sonettogo/server/internal/gametime"
	"github.com/sonettogo/server/internal/metrics"
	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
	"github.com/sonettogo/server/internal/player"
	"go.uber.org/zap"
)

// Storage seen by the handlers. The persist repos implement these; tests
// substitute in-memory fakes.

type UserStore interface {
	GetToken(ctx context.Context, userID int64) (*persist.TokenRow, error)
}

type PlayerStore interface {
	Load(ctx context.Context, userID int64, nowMs int64) (*player.State, error)
	Save(ctx context.Context, s *player.State) error
	Rename(ctx context.Context, userID int64, nickname string) (bool, error)
	ProcessDailyLogin(ctx context.Context, s *player.State, clock *gametime.Clock, nowMs int64) (player.DailyReset, error)
}

type RedDotStore interface {
	List(ctx context.Context, userID int64) ([]persist.RedDot, error)
	ListByDefines(ctx context.Context, userID int64, defineIDs []int32) ([]persist.RedDot, error)
}

type ItemStore interface {
	List(ctx context.Context, userID int64) ([]persist.ItemRow, error)
}

type CurrencyStore interface {
	List(ctx context.Context, userID int64) ([]persist.CurrencyRow, error)
}

type HeroStore interface {
	List(ctx context.Context, userID int64) ([]persist.HeroRow, error)
	MarkSeen(ctx context.Context, userID int64, heroID int32) (bool, error)
}

type SummonStore interface {
	Pity(ctx context.Context, userID int64, bannerID int32) (uint32, error)
	SpUpHeroes(ctx context.Context, userID int64, bannerID int32) (string, error)
	SetSpUpHeroes(ctx context.Context, userID int64, bannerID int32, up string) error
	Commit(ctx context.Context, c persist.SummonCommit) ([]persist.PullResult, error)
}

type StatsStore interface {
	Get(ctx context.Context, userID int64) (*persist.StatsRow, error)
	RecordLogout(ctx context.Context, userID int64, onlineMs, nowMs int64) error
}

// Deps holds shared dependencies injected into all command handlers.
type Deps struct {
	Users      UserStore
	Players    PlayerStore
	RedDots    RedDotStore
	Items      ItemStore
	Currencies CurrencyStore
	Heroes     HeroStore
	Summons    SummonStore
	Stats      StatsStore

	Characters *data.CharacterTable
	Banners    *data.BannerTable

	Sessions *net.SessionStore
	Clock    *gametime.Clock
	Rand     gacha.Rand
	Metrics  *metrics.Metrics
	Config   *config.Config
	Log      *zap.Logger
}

type handlerFunc func(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error

// RegisterAll registers all command handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	bind := func(cmd packet.CmdID, fn handlerFunc) {
		reg.Register(cmd, func(ctx context.Context, sess any, req *packet.Request) error {
			return fn(ctx, sess.(*net.Session), req, deps)
		})
	}

	// System
	bind(packet.CmdLoginRequest, HandleLogin)
	bind(packet.CmdReconnectRequest, HandleReconnect)
	bind(packet.CmdGetServerTime, HandleGetServerTime)
	bind(packet.CmdGetPlayerInfo, HandleGetPlayerInfo)
	bind(packet.CmdRename, HandleRename)

	// Inventory and roster
	bind(packet.CmdGetCurrencyList, HandleGetCurrencyList)
	bind(packet.CmdGetItemList, HandleGetItemList)
	bind(packet.CmdHeroInfoList, HandleHeroInfoList)
	bind(packet.CmdGetRedDotInfos, HandleGetRedDotInfos)
	bind(packet.CmdHeroRedDotRead, HandleHeroRedDotRead)
	bind(packet.CmdHeroTouch, HandleHeroTouch)

	// Stats, bonuses and sign-in
	bind(packet.CmdClientStatBaseInfo, HandleClientStatBaseInfo)
	bind(packet.CmdUpdateClientStatBaseInfo, HandleUpdateClientStatBaseInfo)
	bind(packet.CmdGetAssistBonus, HandleGetAssistBonus)
	bind(packet.CmdSignIn, HandleSignIn)
	bind(packet.CmdGetSignInInfo, HandleGetSignInInfo)

	// Summon
	bind(packet.CmdGetSummonInfo, HandleGetSummonInfo)
	bind(packet.CmdSummon, HandleSummon)
	bind(packet.CmdSummonQueryToken, HandleSummonQueryToken)
	bind(packet.CmdChooseEnhancedPoolHero, HandleChooseEnhancedPoolHero)
}

// requireLogin returns the bound player id or ErrNotLoggedIn.
func requireLogin(sess *net.Session) (int64, error) {
	return sess.PlayerID()
}

// requireCurrent is requireLogin for commands that write player state. A
// session displaced by a newer login of the same player gets an error reply
// and an auth failure, so the connection loop drops it.
func requireCurrent(sess *net.Session, req *packet.Request, deps *Deps) (int64, error) {
	uid, err := sess.PlayerID()
	if err != nil {
		return 0, err
	}
	if err := checkCurrent(sess, deps, uid); err != nil {
		if sendErr := sess.SendRawReplyFixed(packet.CmdID(req.Cmd), errorPayload("Session replaced"), resultError, req.UpTag); sendErr != nil {
			sess.Log().Debug("取代通知無法送出", zap.Error(sendErr))
		}
		return 0, err
	}
	return uid, nil
}

func checkCurrent(sess *net.Session, deps *Deps, uid int64) error {
	if cur, ok := deps.Sessions.Lookup(uid); !ok || cur != sess {
		sess.Log().Warn("連線已被取代，拒絕寫入", zap.Int64("user", uid))
		return errors.Join(ErrAuthFailed, ErrSessionReplaced)
	}
	return nil
}

// savePlayer writes st unless the session lost its registration meanwhile.
func savePlayer(ctx context.Context, sess *net.Session, deps *Deps, st *player.State) error {
	if err := checkCurrent(sess, deps, st.UserID); err != nil {
		return err
	}
	if err := deps.Players.Save(ctx, st); err != nil {
		return dbErr("save player", err)
	}
	return nil
}

// decode parses a request payload. A malformed payload is an invalid request.
func decode(req *packet.Request) (*packet.Reader, error) {
	r, err := packet.NewReader(req.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return r, nil
}
