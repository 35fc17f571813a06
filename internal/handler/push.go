package handler

import (
	"context"

	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
	"go.uber.org/zap"
)

// fetchRedDots loads the player's red dots for defineIDs; an empty list
// loads all.
func fetchRedDots(ctx context.Context, deps *Deps, uid int64, defineIDs []int32) ([]persist.RedDot, error) {
	if len(defineIDs) == 0 {
		return deps.RedDots.List(ctx, uid)
	}
	return deps.RedDots.ListByDefines(ctx, uid, defineIDs)
}

// pushRedDots sends UpdateRedDotPush for dots. Nothing is sent for an empty set.
// UpdateRedDotPush: 1 repeated RedDotGroup, 2 replace_all
func pushRedDots(sess *net.Session, dots []persist.RedDot) error {
	if len(dots) == 0 {
		return nil
	}
	w := packet.NewWriter()
	writeRedDotGroups(w, persist.GroupRedDots(dots))
	w.WriteBool(2, true)
	return sess.SendPush(packet.CmdUpdateRedDotPush, w)
}

func sendRedDotPush(ctx context.Context, sess *net.Session, deps *Deps, uid int64, defineIDs []int32) error {
	dots, err := fetchRedDots(ctx, deps, uid, defineIDs)
	if err != nil {
		return dbErr("red dots", err)
	}
	return pushRedDots(sess, dots)
}

// sendStatePushes sends the currency, item and material summaries at most
// once per login. A storage failure re-arms the coordinator so a later
// command can retry.
func sendStatePushes(ctx context.Context, sess *net.Session, deps *Deps, uid int64, from string) error {
	if !sess.CheckAndMarkStatePushes() {
		sess.Log().Debug("狀態推送本次登入已送出", zap.String("from", from))
		return nil
	}

	currencies, err := deps.Currencies.List(ctx, uid)
	if err != nil {
		sess.ResetStatePushes()
		return dbErr("currency list", err)
	}
	items, err := deps.Items.List(ctx, uid)
	if err != nil {
		sess.ResetStatePushes()
		return dbErr("item list", err)
	}

	// CurrencyChangePush: 1 repeated Currency
	cw := packet.NewWriter()
	for _, c := range currencies {
		writeCurrency(cw, c)
	}
	if err := sess.SendPush(packet.CmdCurrencyChangePush, cw); err != nil {
		return err
	}

	// ItemChangePush: 1 repeated Item
	iw := packet.NewWriter()
	for _, it := range items {
		writeItem(iw, it)
	}
	if err := sess.SendPush(packet.CmdItemChangePush, iw); err != nil {
		return err
	}

	// MaterialChangePush: 1 repeated Material, 2 get_approach
	mw := packet.NewWriter()
	for _, c := range currencies {
		writeMaterial(mw, materialCurrency, c.CurrencyID, c.Quantity)
	}
	for _, it := range items {
		writeMaterial(mw, materialItem, it.ItemID, it.Quantity)
	}
	mw.WriteInt32(2, materialApproachLogin)
	if err := sess.SendPush(packet.CmdMaterialChangePush, mw); err != nil {
		return err
	}

	sess.Log().Info("狀態推送已送出",
		zap.String("from", from),
		zap.Int("currencies", len(currencies)),
		zap.Int("items", len(items)),
	)
	return nil
}
