package handler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sonettogo/server/internal/data"
	"github.com/sonettogo/server/internal/gacha"
	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
	"go.uber.org/zap"
)

// summonEndActivityID is the activity closed when the client opens the
// summon web view.
const summonEndActivityID int32 = 12716

// maxSummonAttempts bounds the redraws after a pity conflict.
const maxSummonAttempts = 3

// summonRedDotDefine is the red-dot group refreshed with the summon token.
const summonRedDotDefine int32 = 1908

// HandleGetSummonInfo replies with every open banner and the player's pity on it.
// Reply: 1 repeated PoolInfo
// PoolInfo: 1 pool_id, 2 type, 3 pity, 4 up_heroes, 5 start_time, 6 end_time,
// 7 cost_currency, 8 cost_per_pull
func HandleGetSummonInfo(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	now := deps.Clock.NowMs()

	w := packet.NewWriter()
	for _, b := range deps.Banners.All() {
		if !b.OpenAt(now) {
			continue
		}
		pity, err := deps.Summons.Pity(ctx, uid, b.ID)
		if err != nil {
			return dbErr("summon pity", err)
		}
		up, err := bannerUpHeroes(ctx, deps, uid, b)
		if err != nil {
			return err
		}
		m := packet.NewWriter()
		m.WriteInt32(1, b.ID)
		m.WriteInt32(2, int32(b.Type))
		m.WriteUint32(3, pity)
		m.WriteString(4, up)
		m.WriteInt64(5, b.StartTime)
		m.WriteInt64(6, b.EndTime)
		m.WriteInt32(7, b.CostCurrency)
		m.WriteInt32(8, b.CostPerPull)
		w.WriteMessage(1, m)
	}
	return sess.SendReply(packet.CmdGetSummonInfo, w, resultOK, req.UpTag)
}

// bannerUpHeroes returns the up-hero string in effect for the player: the
// player's own pick on an enhanced banner, the banner default otherwise.
func bannerUpHeroes(ctx context.Context, deps *Deps, uid int64, b *data.Banner) (string, error) {
	if b.Type != data.BannerEnhanced {
		return b.UpHeroes, nil
	}
	up, err := deps.Summons.SpUpHeroes(ctx, uid, b.ID)
	if err != nil {
		return "", dbErr("summon up heroes", err)
	}
	if up == "" {
		return b.UpHeroes, nil
	}
	return up, nil
}

// HandleSummon draws on a banner, charges the cost and grants the heroes.
// A closed banner or a short balance is answered with a result code.
// Payload: 1 pool_id, 2 count (1 or 10)
// Reply: 1 repeated SummonResult, 2 pool_id, 3 pity
// SummonResult: 1 hero_id, 2 rarity, 3 is_new, 4 duplicate_count, 5 is_up
func HandleSummon(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireCurrent(sess, req, deps)
	if err != nil {
		return err
	}
	r, err := decode(req)
	if err != nil {
		return err
	}
	poolID, ok := r.Int32(1)
	if !ok {
		return ErrInvalidRequest
	}
	count, ok := r.Int32(2)
	if !ok || (count != 1 && count != 10) {
		return fmt.Errorf("%w: summon count %d", ErrInvalidRequest, count)
	}

	now := deps.Clock.NowMs()
	banner, ok := deps.Banners.Get(poolID)
	if !ok || !banner.OpenAt(now) {
		return sess.SendReply(packet.CmdSummon, nil, resultPoolClosed, req.UpTag)
	}

	up, err := bannerUpHeroes(ctx, deps, uid, banner)
	if err != nil {
		return err
	}
	pool := banner.Pool(deps.Characters, up)

	var (
		pity, newPity uint32
		results       []persist.PullResult
	)
	for attempt := 1; ; attempt++ {
		pity, err = deps.Summons.Pity(ctx, uid, poolID)
		if err != nil {
			return dbErr("summon pity", err)
		}
		var pulls []gacha.Pull
		pulls, newPity, err = gacha.Draw(pool, pity, int(count), deps.Rand)
		if err != nil {
			return err
		}
		results, err = deps.Summons.Commit(ctx, persist.SummonCommit{
			UserID:     uid,
			BannerID:   poolID,
			CurrencyID: banner.CostCurrency,
			Cost:       banner.CostPerPull * count,
			PrevPity:   pity,
			Pity:       newPity,
			Pulls:      pulls,
			SkinOf:     deps.skinOf,
			NowMs:      now,
		})
		if errors.Is(err, persist.ErrPityConflict) && attempt < maxSummonAttempts {
			sess.Log().Debug("召喚保底衝突，重新抽取", zap.Int32("pool", poolID), zap.Int("attempt", attempt))
			continue
		}
		break
	}
	if errors.Is(err, persist.ErrInsufficient) {
		return sess.SendReply(packet.CmdSummon, nil, resultInsufficient, req.UpTag)
	}
	if err != nil {
		return dbErr("summon commit", err)
	}

	six := 0
	for _, p := range results {
		deps.Metrics.GachaPull(p.Rarity)
		if p.Rarity == 6 {
			six++
		}
	}

	if err := sendCurrencyPush(ctx, sess, deps, uid, banner.CostCurrency); err != nil {
		return err
	}

	w := packet.NewWriter()
	for _, p := range results {
		m := packet.NewWriter()
		m.WriteInt32(1, p.HeroID)
		m.WriteInt32(2, int32(p.Rarity))
		m.WriteBool(3, p.IsNew)
		m.WriteInt32(4, p.DuplicateCount)
		m.WriteBool(5, p.Up)
		w.WriteMessage(1, m)
	}
	w.WriteInt32(2, poolID)
	w.WriteUint32(3, newPity)
	if err := sess.SendReply(packet.CmdSummon, w, resultOK, req.UpTag); err != nil {
		return err
	}

	sess.Log().Info(fmt.Sprintf("玩家召喚  user=%d  pool=%d  count=%d  six=%d  pity=%d→%d",
		uid, poolID, count, six, pity, newPity))
	return nil
}

func (d *Deps) skinOf(heroID int32) int32 {
	if c, ok := d.Characters.Get(heroID); ok {
		return c.SkinID
	}
	return 0
}

// sendCurrencyPush pushes the current balance of one currency.
func sendCurrencyPush(ctx context.Context, sess *net.Session, deps *Deps, uid int64, currencyID int32) error {
	rows, err := deps.Currencies.List(ctx, uid)
	if err != nil {
		return dbErr("currency list", err)
	}
	w := packet.NewWriter()
	for _, c := range rows {
		if c.CurrencyID == currencyID {
			writeCurrency(w, c)
		}
	}
	return sess.SendPush(packet.CmdCurrencyChangePush, w)
}

// HandleSummonQueryToken closes the summon activity, refreshes its red dot
// and hands the client its web token.
// Reply: 1 token
func HandleSummonQueryToken(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	row, err := deps.Users.GetToken(ctx, uid)
	if err != nil {
		return dbErr("get token", err)
	}
	if row == nil {
		return &CustomError{Msg: "User not found"}
	}

	// EndActivityPush: 1 id
	ew := packet.NewWriter()
	ew.WriteInt32(1, summonEndActivityID)
	if err := sess.SendPush(packet.CmdEndActivityPush, ew); err != nil {
		return err
	}
	if err := sendRedDotPush(ctx, sess, deps, uid, []int32{summonRedDotDefine}); err != nil {
		return err
	}

	w := packet.NewWriter()
	w.WriteString(1, row.Token)
	return sess.SendReply(packet.CmdSummonQueryToken, w, resultOK, req.UpTag)
}

// HandleChooseEnhancedPoolHero stores the player's up hero for an enhanced banner.
// Payload: 1 pool_id, 2 hero_id. Reply: 1 pool_id, 2 hero_id
func HandleChooseEnhancedPoolHero(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	r, err := decode(req)
	if err != nil {
		return err
	}
	poolID, ok := r.Int32(1)
	if !ok {
		return ErrInvalidRequest
	}
	heroID, ok := r.Int32(2)
	if !ok {
		return ErrInvalidRequest
	}

	uid, err := requireCurrent(sess, req, deps)
	if err != nil {
		return err
	}

	banner, ok := deps.Banners.Get(poolID)
	if !ok || banner.Type != data.BannerEnhanced {
		return fmt.Errorf("%w: pool %d is not an enhanced banner", ErrInvalidRequest, poolID)
	}
	if c, ok := deps.Characters.Get(heroID); !ok || c.Rare != 6 {
		return fmt.Errorf("%w: hero %d is not a six-star", ErrInvalidRequest, heroID)
	}

	// The pick replaces the six-star up list; the banner's five-star ups stay.
	up := strconv.Itoa(int(heroID))
	if _, five, ok := strings.Cut(banner.UpHeroes, "|"); ok {
		up += "|" + five
	}
	if err := deps.Summons.SetSpUpHeroes(ctx, uid, poolID, up); err != nil {
		return dbErr("set up heroes", err)
	}
	sess.Log().Info("選擇強化卡池UP角色", zap.Int32("pool", poolID), zap.Int32("hero", heroID))

	w := packet.NewWriter()
	w.WriteInt32(1, poolID)
	w.WriteInt32(2, heroID)
	return sess.SendReply(packet.CmdChooseEnhancedPoolHero, w, resultOK, req.UpTag)
}
