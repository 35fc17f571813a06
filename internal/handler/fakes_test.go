package handler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sonettogo/server/internal/config"
	"github.com/sonettogo/server/internal/data"
	"github.com/sonettogo/server/internal/gacha"
	"github.com/sonettogo/server/internal/gametime"
	"github.com/sonettogo/server/internal/metrics"
	"github.com/sonettogo/server/internal/net"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/persist"
	"github.com/sonettogo/server/internal/player"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errFakeDB = errors.New("connection refused")

type fakeUsers struct {
	rows map[int64]*persist.TokenRow
	err  error
}

func (f *fakeUsers) GetToken(_ context.Context, uid int64) (*persist.TokenRow, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[uid], nil
}

type fakePlayers struct {
	states map[int64]*player.State
	names  map[string]int64
	saved   []*player.State
	err     error
	saveErr error
}

func (f *fakePlayers) Load(_ context.Context, uid int64, nowMs int64) (*player.State, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.states[uid]; ok {
		return s.Clone(), nil
	}
	s := player.New(uid, nowMs)
	f.states[uid] = s
	return s.Clone(), nil
}

func (f *fakePlayers) Save(_ context.Context, s *player.State) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, s.Clone())
	f.states[s.UserID] = s.Clone()
	return nil
}

func (f *fakePlayers) Rename(_ context.Context, uid int64, nickname string) (bool, error) {
	if owner, ok := f.names[nickname]; ok && owner != uid {
		return false, nil
	}
	f.names[nickname] = uid
	return true, nil
}

func (f *fakePlayers) ProcessDailyLogin(_ context.Context, s *player.State, clock *gametime.Clock, nowMs int64) (player.DailyReset, error) {
	return s.ApplyLogin(clock, nowMs), nil
}

type fakeRedDots struct {
	dots    map[int64][]persist.RedDot
	queries [][]int32
}

func (f *fakeRedDots) List(_ context.Context, uid int64) ([]persist.RedDot, error) {
	f.queries = append(f.queries, nil)
	return f.dots[uid], nil
}

func (f *fakeRedDots) ListByDefines(_ context.Context, uid int64, ids []int32) ([]persist.RedDot, error) {
	f.queries = append(f.queries, ids)
	var out []persist.RedDot
	for _, d := range f.dots[uid] {
		for _, id := range ids {
			if d.DefineID == id {
				out = append(out, d)
			}
		}
	}
	return out, nil
}

type fakeItems struct {
	rows map[int64][]persist.ItemRow
	err  error
}

func (f *fakeItems) List(_ context.Context, uid int64) ([]persist.ItemRow, error) {
	return f.rows[uid], f.err
}

type fakeCurrencies struct {
	rows map[int64][]persist.CurrencyRow
}

func (f *fakeCurrencies) List(_ context.Context, uid int64) ([]persist.CurrencyRow, error) {
	return f.rows[uid], nil
}

type fakeHeroes struct {
	rows map[int64][]persist.HeroRow
	seen []int32
}

func (f *fakeHeroes) List(_ context.Context, uid int64) ([]persist.HeroRow, error) {
	return f.rows[uid], nil
}

func (f *fakeHeroes) MarkSeen(_ context.Context, _ int64, heroID int32) (bool, error) {
	f.seen = append(f.seen, heroID)
	return true, nil
}

type fakeSummons struct {
	pity       map[int32]uint32
	up         map[int32]string
	commits    []persist.SummonCommit
	conflicts  int
	currencies *fakeCurrencies
	// beforeCommit runs at the start of every Commit, standing in for a
	// summon on another connection.
	beforeCommit func()
}

func (f *fakeSummons) Pity(_ context.Context, _ int64, bannerID int32) (uint32, error) {
	return f.pity[bannerID], nil
}

func (f *fakeSummons) SpUpHeroes(_ context.Context, _ int64, bannerID int32) (string, error) {
	return f.up[bannerID], nil
}

func (f *fakeSummons) SetSpUpHeroes(_ context.Context, _ int64, bannerID int32, up string) error {
	f.up[bannerID] = up
	return nil
}

func (f *fakeSummons) Commit(_ context.Context, c persist.SummonCommit) ([]persist.PullResult, error) {
	if f.beforeCommit != nil {
		f.beforeCommit()
	}
	if f.pity[c.BannerID] != c.PrevPity {
		f.conflicts++
		return nil, persist.ErrPityConflict
	}
	rows := f.currencies.rows[c.UserID]
	idx := -1
	for i := range rows {
		if rows[i].CurrencyID == c.CurrencyID {
			idx = i
		}
	}
	if idx < 0 || rows[idx].Quantity < c.Cost {
		return nil, persist.ErrInsufficient
	}
	rows[idx].Quantity -= c.Cost
	f.commits = append(f.commits, c)
	f.pity[c.BannerID] = c.Pity

	out := make([]persist.PullResult, 0, len(c.Pulls))
	for _, p := range c.Pulls {
		out = append(out, persist.PullResult{Pull: p, IsNew: true})
	}
	return out, nil
}

type fakeStats struct {
	row     persist.StatsRow
	logouts []int64
}

func (f *fakeStats) Get(context.Context, int64) (*persist.StatsRow, error) {
	r := f.row
	return &r, nil
}

func (f *fakeStats) RecordLogout(_ context.Context, _ int64, onlineMs, _ int64) error {
	f.logouts = append(f.logouts, onlineMs)
	return nil
}

// testEnv is a Deps wired to in-memory stores plus the shipped data tables.
type testEnv struct {
	deps       *Deps
	reg        *packet.Registry
	users      *fakeUsers
	players    *fakePlayers
	redDots    *fakeRedDots
	items      *fakeItems
	currencies *fakeCurrencies
	heroes     *fakeHeroes
	summons    *fakeSummons
	stats      *fakeStats
	now        time.Time
}

const testUID int64 = 69420

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	chars, err := data.LoadCharacterTable("../../data/yaml/character_list.yaml")
	require.NoError(t, err)
	banners, err := data.LoadBannerTable("../../data/yaml/banner_list.yaml")
	require.NoError(t, err)
	rng, err := gacha.NewRand(42)
	require.NoError(t, err)

	e := &testEnv{
		users:      &fakeUsers{rows: map[int64]*persist.TokenRow{testUID: {UserID: testUID, Token: "tok"}}},
		players:    &fakePlayers{states: map[int64]*player.State{}, names: map[string]int64{}},
		redDots:    &fakeRedDots{dots: map[int64][]persist.RedDot{}},
		items:      &fakeItems{rows: map[int64][]persist.ItemRow{}},
		currencies: &fakeCurrencies{rows: map[int64][]persist.CurrencyRow{}},
		heroes:     &fakeHeroes{rows: map[int64][]persist.HeroRow{}},
		stats:      &fakeStats{},
		// 2026-03-28 20:00 at UTC+8, server day 03/28.
		now: time.Date(2026, 3, 28, 12, 0, 0, 0, time.UTC),
	}
	e.summons = &fakeSummons{pity: map[int32]uint32{}, up: map[int32]string{}, currencies: e.currencies}

	clock := gametime.New(8, 5)
	clock.Now = func() time.Time { return e.now }

	e.deps = &Deps{
		Users:      e.users,
		Players:    e.players,
		RedDots:    e.redDots,
		Items:      e.items,
		Currencies: e.currencies,
		Heroes:     e.heroes,
		Summons:    e.summons,
		Stats:      e.stats,
		Characters: chars,
		Banners:    banners,
		Sessions:   net.NewSessionStore(),
		Clock:      clock,
		Rand:       rng,
		Metrics:    metrics.New(prometheus.NewRegistry()),
		Config:     &config.Config{Server: config.ServerConfig{StartTimeMs: 1000}},
		Log:        zap.NewNop(),
	}
	e.reg = packet.NewRegistry(zap.NewNop())
	RegisterAll(e.reg, e.deps)
	return e
}

var nextSessionID uint64

func (e *testEnv) newSession(t *testing.T) *net.Session {
	t.Helper()
	nextSessionID++
	s := net.NewSession(nil, nextSessionID, net.SessionOptions{OutQueueSize: 256}, zap.NewNop())
	t.Cleanup(s.Close)
	return s
}

func (e *testEnv) dispatch(sess *net.Session, cmd packet.CmdID, upTag uint8, payload *packet.Writer) error {
	req := &packet.Request{Cmd: uint16(cmd), UpTag: upTag}
	if payload != nil {
		req.Payload = payload.Bytes()
	}
	return e.reg.Dispatch(context.Background(), sess, req)
}

func loginPayload(account, token string) *packet.Writer {
	w := packet.NewWriter()
	w.WriteString(1, account)
	w.WriteString(2, token)
	return w
}

// login runs a successful LoginRequest and discards its output.
func (e *testEnv) login(t *testing.T, sess *net.Session) {
	t.Helper()
	require.NoError(t, e.dispatch(sess, packet.CmdLoginRequest, 1, loginPayload("200_69420", "tok")))
	drain(sess)
}

// drain returns everything queued on the session, in queue order.
func drain(sess *net.Session) []packet.Outbound {
	var out []packet.Outbound
	for {
		select {
		case body := <-sess.OutQueue:
			o, err := packet.DecodeOutbound(body)
			if err != nil {
				panic(err)
			}
			out = append(out, o)
		default:
			return out
		}
	}
}

func commands(out []packet.Outbound) []packet.CmdID {
	cmds := make([]packet.CmdID, 0, len(out))
	for _, o := range out {
		cmds = append(cmds, o.Command())
	}
	return cmds
}

func lastReply(t *testing.T, out []packet.Outbound) *packet.Reply {
	t.Helper()
	require.NotEmpty(t, out)
	r, ok := out[len(out)-1].(*packet.Reply)
	require.True(t, ok, "last outbound is not a reply")
	return r
}

func payloadOf(t *testing.T, b []byte) *packet.Reader {
	t.Helper()
	r, err := packet.NewReader(b)
	require.NoError(t, err)
	return r
}
