package handler

import (
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
)

// Reply result codes.
const (
	resultOK           int16 = 0
	resultError        int16 = 1
	resultNameInvalid  int16 = 2
	resultNameTaken    int16 = 3
	resultInsufficient int16 = 4
	resultPoolClosed   int16 = 5
)

// Material types of MaterialChangePush entries.
const (
	materialItem     int32 = 1
	materialCurrency int32 = 2
)

// materialApproachLogin tags the summary pushes sent once per login.
const materialApproachLogin int32 = 1

// Message layouts below are field-number order.

// Currency: 1 currency_id, 2 quantity, 3 last_recover_time, 4 expired_time
func writeCurrency(w *packet.Writer, c persist.CurrencyRow) {
	m := packet.NewWriter()
	m.WriteInt32(1, c.CurrencyID)
	m.WriteInt32(2, c.Quantity)
	m.WriteInt64(3, c.LastRecoverTime)
	m.WriteInt64(4, c.ExpiredTime)
	w.WriteMessage(1, m)
}

// Item: 1 item_id, 2 quantity, 3 last_use_time, 4 last_update_time
func writeItem(w *packet.Writer, it persist.ItemRow) {
	m := packet.NewWriter()
	m.WriteInt32(1, it.ItemID)
	m.WriteInt32(2, it.Quantity)
	m.WriteInt64(3, it.LastUseTime)
	m.WriteInt64(4, it.LastUpdateTime)
	w.WriteMessage(1, m)
}

// Material: 1 type, 2 id, 3 quantity
func writeMaterial(w *packet.Writer, typ, id, quantity int32) {
	m := packet.NewWriter()
	m.WriteInt32(1, typ)
	m.WriteInt32(2, id)
	m.WriteInt32(3, quantity)
	w.WriteMessage(1, m)
}

// Hero: 1 hero_id, 2 level, 3 rank, 4 exp, 5 duplicate_count, 6 skin,
// 7 is_new, 8 create_time
func writeHero(w *packet.Writer, h persist.HeroRow) {
	m := packet.NewWriter()
	m.WriteInt32(1, h.HeroID)
	m.WriteInt32(2, h.Level)
	m.WriteInt32(3, h.Rank)
	m.WriteInt32(4, h.Exp)
	m.WriteInt32(5, h.DuplicateCount)
	m.WriteInt32(6, h.SkinID)
	m.WriteBool(7, h.IsNew)
	m.WriteInt64(8, h.CreateTime)
	w.WriteMessage(1, m)
}

// RedDotGroup: 1 define_id, 2 repeated info, 3 replace_all
// info: 1 id, 2 value, 3 time, 4 ext
func writeRedDotGroups(w *packet.Writer, groups []persist.RedDotGroup) {
	for _, g := range groups {
		m := packet.NewWriter()
		m.WriteInt32(1, g.DefineID)
		for _, d := range g.Dots {
			info := packet.NewWriter()
			info.WriteInt64(1, d.InfoID)
			info.WriteInt32(2, d.Value)
			info.WriteInt64(3, d.Time)
			if d.Ext != "" {
				info.WriteString(4, d.Ext)
			}
			m.WriteMessage(2, info)
		}
		m.WriteBool(3, g.ReplaceAll)
		w.WriteMessage(1, m)
	}
}

// errorPayload is the body of a rejected login: 1 reason
func errorPayload(reason string) []byte {
	w := packet.NewWriter()
	w.WriteString(1, reason)
	return w.Bytes()
}
