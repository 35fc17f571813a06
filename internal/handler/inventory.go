package handler

import (
	"context"
	"slices"

	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
)

// HandleGetCurrencyList replies with the player's currency balances.
// Payload: 1 repeated currency_id (empty = all). Reply: 1 repeated Currency
func HandleGetCurrencyList(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	r, err := decode(req)
	if err != nil {
		return err
	}
	filter, err := r.Int32s(1)
	if err != nil {
		return ErrInvalidRequest
	}

	rows, err := deps.Currencies.List(ctx, uid)
	if err != nil {
		return dbErr("currency list", err)
	}
	w := packet.NewWriter()
	for _, c := range rows {
		if len(filter) > 0 && !slices.Contains(filter, c.CurrencyID) {
			continue
		}
		writeCurrency(w, c)
	}
	return sess.SendReply(packet.CmdGetCurrencyList, w, resultOK, req.UpTag)
}

// HandleGetItemList replies with the player's bag.
// Reply: 1 repeated Item
func HandleGetItemList(ctx context.Context, sess *net.Session, req *packet.Request, deps *Deps) error {
	uid, err := requireLogin(sess)
	if err != nil {
		return err
	}
	rows, err := deps.Items.List(ctx, uid)
	if err != nil {
		return dbErr("item list", err)
	}
	w := packet.NewWriter()
	for _, it := range rows {
		writeItem(w, it)
	}
	return sess.SendReply(packet.CmdGetItemList, w, resultOK, req.UpTag)
}
