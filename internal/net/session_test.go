package net

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession(t *testing.T, opts SessionOptions) (*Session, net.Conn) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	s := NewSession(server, 1, opts, zap.NewNop())
	t.Cleanup(s.Close)
	return s, client
}

func nextOutbound(t *testing.T, s *Session) packet.Outbound {
	t.Helper()
	select {
	case body := <-s.OutQueue:
		out, err := packet.DecodeOutbound(body)
		require.NoError(t, err)
		return out
	default:
		t.Fatal("outbound queue empty")
		return nil
	}
}

func TestBindIdentity(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{})

	_, err := s.PlayerID()
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.BindIdentity(7))
	require.NoError(t, s.BindIdentity(7))
	assert.ErrorIs(t, s.BindIdentity(8), ErrAlreadyBound)

	id, err := s.PlayerID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestLoginInstallsStateAndStartsEpoch(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{})
	assert.Nil(t, s.Player())

	require.NoError(t, s.Login(7, player.New(7, 0)))
	assert.True(t, s.CheckAndMarkStatePushes())
	assert.False(t, s.CheckAndMarkStatePushes())

	require.NoError(t, s.Login(7, player.New(7, 0)))
	assert.True(t, s.CheckAndMarkStatePushes())

	assert.ErrorIs(t, s.Login(9, player.New(9, 0)), ErrAlreadyBound)
	assert.Equal(t, int64(7), s.Player().UserID)
}

func TestUpdatePlayer(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{})
	_, err := s.UpdatePlayer(func(*player.State) {})
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.Login(7, player.New(7, 0)))
	snap, err := s.UpdatePlayer(func(p *player.State) { p.Nickname = "Sonetto" })
	require.NoError(t, err)
	assert.Equal(t, "Sonetto", snap.Nickname)

	snap.Nickname = "mutated snapshot"
	assert.Equal(t, "Sonetto", s.Player().Nickname)
}

func TestReplyEchoesUpTag(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{})
	for _, code := range []int16{0, 1, -1} {
		require.NoError(t, s.SendReply(packet.CmdSignIn, nil, code, 99))
		reply, ok := nextOutbound(t, s).(*packet.Reply)
		require.True(t, ok)
		assert.Equal(t, uint8(99), reply.UpTag)
		assert.Equal(t, code, reply.ResultCode)
	}
}

func TestDownTagsFollowQueueOrder(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{OutQueueSize: 64})

	w := packet.NewWriter()
	w.WriteInt32(1, 5)
	require.NoError(t, s.SendPush(packet.CmdUpdateRedDotPush, w))
	require.NoError(t, s.SendReply(packet.CmdGetPlayerInfo, w, 0, 3))
	require.NoError(t, s.SendRawReplyFixed(packet.CmdLoginRequest, []byte{1}, 1, 4))

	var tags []uint8
	for range 3 {
		tags = append(tags, nextOutbound(t, s).DownTag())
	}
	assert.Equal(t, []uint8{1, 2, 3}, tags)
	assert.Equal(t, uint8(4), s.NextDownTag())
}

func TestDownTagsUnderConcurrentSenders(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{OutQueueSize: 200})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				assert.NoError(t, s.SendPush(packet.CmdItemChangePush, nil))
			}
		}()
	}
	wg.Wait()

	prev := uint8(0)
	for i := range 200 {
		tag := nextOutbound(t, s).DownTag()
		assert.Equal(t, prev+1, tag, "envelope %d", i)
		prev = tag
	}
}

func TestStatePushesOncePerEpochConcurrently(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{})
	require.NoError(t, s.Login(1, player.New(1, 0)))

	const callers = 64
	results := make(chan bool, callers)
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.CheckAndMarkStatePushes()
		}()
	}
	wg.Wait()
	close(results)

	trues := 0
	for r := range results {
		if r {
			trues++
		}
	}
	assert.Equal(t, 1, trues)

	s.ResetStatePushes()
	assert.True(t, s.CheckAndMarkStatePushes())
}

func TestFullQueueClosesSession(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{OutQueueSize: 1})

	require.NoError(t, s.SendPush(packet.CmdItemChangePush, nil))
	assert.ErrorIs(t, s.SendPush(packet.CmdItemChangePush, nil), ErrQueueFull)
	assert.True(t, s.IsClosed())
	assert.ErrorIs(t, s.SendPush(packet.CmdItemChangePush, nil), ErrSessionClosed)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestWriteLoopFramesQueuedBodies(t *testing.T) {
	s, client := newTestSession(t, SessionOptions{WriteTimeout: time.Second})
	s.Start()

	require.NoError(t, s.SendReply(packet.CmdGetServerTime, nil, 0, 11))
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	body, err := ReadFrame(client, 1024)
	require.NoError(t, err)

	out, err := packet.DecodeOutbound(body)
	require.NoError(t, err)
	reply := out.(*packet.Reply)
	assert.Equal(t, packet.CmdGetServerTime, reply.Cmd)
	assert.Equal(t, uint8(11), reply.UpTag)
}

func TestDrainFlushesBeforeClose(t *testing.T) {
	s, client := newTestSession(t, SessionOptions{WriteTimeout: time.Second})
	s.Start()

	require.NoError(t, s.SendRawReplyFixed(packet.CmdLoginRequest, []byte{0x0a, 0x01, 'x'}, 1, 5))

	got := make(chan []byte, 1)
	go func() {
		body, err := ReadFrame(client, 1024)
		if err == nil {
			got <- body
		}
		close(got)
	}()
	s.Drain(2 * time.Second)

	body, ok := <-got
	require.True(t, ok)
	out, err := packet.DecodeOutbound(body)
	require.NoError(t, err)
	assert.Equal(t, int16(1), out.(*packet.Reply).ResultCode)
	assert.True(t, s.IsClosed())
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestSession(t, SessionOptions{PacketsPerSecond: 1, Burst: 2})
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())
	assert.False(t, s.Allow())

	unlimited, _ := newTestSession(t, SessionOptions{})
	for range 1000 {
		require.True(t, unlimited.Allow())
	}
}
