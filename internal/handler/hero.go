package handler

import (
	"context"
	"fmt"

	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
	"github.com/sonettogo/server/internal/player"
	"go.uber.org/zap"
)

// HandleHeroInfoList replies with the owned heroes.
// Reply: 1 repeated Hero, 2 touch_count_left
func HandleHeroInfoList(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	heroes, err := deps.Heroes.List(ctx, uid)
	if err != nil {
		return dbErr("hero list", err)
	}
	w := packet.NewWriter()
	for _, h := range heroes {
		writeHero(w, h)
	}
	if st := sess.Player(); st != nil {
		w.WriteInt32(2, st.TouchCountLeft)
	}
	return sess.SendReply(packet.CmdHeroInfoList, w, resultOK, req.UpTag)
}

// HandleGetRedDotInfos replies with red dots grouped by define id.
// Payload: 1 repeated define_id (empty = all). Reply: 1 repeated RedDotGroup
func HandleGetRedDotInfos(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	r, err := decode(req)
	if err != nil {
		return err
	}
	ids, err := r.Int32s(1)
	if err != nil {
		return ErrInvalidRequest
	}
	if len(ids) > persist.MaxDefineIDs {
		return fmt.Errorf("%w: %d define ids exceeds limit %d", ErrInvalidRequest, len(ids), persist.MaxDefineIDs)
	}

	dots, err := fetchRedDots(ctx, deps, uid, ids)
	if err != nil {
		return dbErr("red dots", err)
	}
	w := packet.NewWriter()
	writeRedDotGroups(w, persist.GroupRedDots(dots))
	return sess.SendReply(packet.CmdGetRedDotInfos, w, resultOK, req.UpTag)
}

// HandleHeroRedDotRead clears a hero's new flag.
// Payload: 1 hero_id. Reply: 1 hero_id
func HandleHeroRedDotRead(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	r, err := decode(req)
	if err != nil {
		return err
	}
	heroID, ok := r.Int32(1)
	if !ok {
		return ErrInvalidRequest
	}
	if _, err := deps.Heroes.MarkSeen(ctx, uid, heroID); err != nil {
		return dbErr("hero mark seen", err)
	}
	w := packet.NewWriter()
	w.WriteInt32(1, heroID)
	return sess.SendReply(packet.CmdHeroRedDotRead, w, resultOK, req.UpTag)
}

// HandleHeroTouch spends one of the daily hero touches. Running out is not
// an error: the reply carries success=false and touch_count_left=0.
// Payload: 1 hero_id. Reply: 1 success, 2 touch_count_left
func HandleHeroTouch(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireCurrent(sess, req, deps)
	if err != nil {
		return err
	}
	r, err := decode(req)
	if err != nil {
		return err
	}
	heroID, ok := r.Int32(1)
	if !ok {
		return ErrInvalidRequest
	}
	if _, known := deps.Characters.Get(heroID); !known {
		return fmt.Errorf("%w: unknown hero %d", ErrInvalidRequest, heroID)
	}

	var touched bool
	st, err := sess.UpdatePlayer(func(s *player.State) { touched = s.UseTouch() })
	if err != nil {
		return err
	}
	if touched {
		if err := savePlayer(ctx, sess, deps, st); err != nil {
			return err
		}
	} else {
		sess.Log().Debug("觸摸次數已用完", zap.Int64("user", uid), zap.Int32("hero", heroID))
	}

	w := packet.NewWriter()
	w.WriteBool(1, touched)
	w.WriteInt32(2, st.TouchCountLeft)
	return sess.SendReply(packet.CmdHeroTouch, w, resultOK, req.UpTag)
}
