package net

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errTestAuth = errors.New("auth failed")

type serverHarness struct {
	srv    *Server
	store  *SessionStore
	closed chan *Session
	done   chan error
}

func startServer(t *testing.T) *serverHarness {
	t.Helper()
	log := zap.NewNop()
	reg := packet.NewRegistry(log)
	store := NewSessionStore()

	reg.Register(packet.CmdGetServerTime, func(_ context.Context, sess any, req *packet.Request) error {
		w := packet.NewWriter()
		w.WriteInt64(1, 1234)
		return sess.(*Session).SendReply(packet.CmdGetServerTime, w, 0, req.UpTag)
	})
	reg.Register(packet.CmdLoginRequest, func(_ context.Context, sess any, req *packet.Request) error {
		s := sess.(*Session)
		if err := s.Login(77, player.New(77, 0)); err != nil {
			return err
		}
		store.Register(77, s)
		return s.SendReply(packet.CmdLoginRequest, nil, 0, req.UpTag)
	})
	reg.Register(packet.CmdReconnectRequest, func(_ context.Context, sess any, req *packet.Request) error {
		if err := sess.(*Session).SendRawReplyFixed(packet.CmdReconnectRequest, nil, 1, req.UpTag); err != nil {
			return err
		}
		return errTestAuth
	})

	h := &serverHarness{store: store, closed: make(chan *Session, 8), done: make(chan error, 1)}
	srv, err := NewServer(ServerOptions{
		BindAddress:      "127.0.0.1:0",
		MaxFrameSize:     4096,
		ReadTimeout:      5 * time.Second,
		HandlerTimeout:   time.Second,
		Session:          SessionOptions{OutQueueSize: 16, WriteTimeout: time.Second},
		ShouldDisconnect: func(err error) bool { return errors.Is(err, errTestAuth) },
		OnClose:          func(s *Session) { h.closed <- s },
	}, reg, store, nil, log)
	require.NoError(t, err)
	h.srv = srv

	go func() { h.done <- srv.Serve(context.Background()) }()
	t.Cleanup(func() {
		srv.Shutdown()
		<-h.done
	})
	return h
}

func dial(t *testing.T, h *serverHarness) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", h.srv.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, cmd packet.CmdID, upTag uint8) *packet.Reply {
	t.Helper()
	require.NoError(t, WriteFrame(conn, packet.EncodeRequest(&packet.Request{Cmd: uint16(cmd), UpTag: upTag})))
	body, err := ReadFrame(conn, 4096)
	require.NoError(t, err)
	out, err := packet.DecodeOutbound(body)
	require.NoError(t, err)
	reply, ok := out.(*packet.Reply)
	require.True(t, ok)
	return reply
}

func TestServerRepliesWithUpTag(t *testing.T) {
	h := startServer(t)
	conn := dial(t, h)

	reply := roundTrip(t, conn, packet.CmdGetServerTime, 21)
	assert.Equal(t, packet.CmdGetServerTime, reply.Cmd)
	assert.Equal(t, uint8(21), reply.UpTag)
	assert.Equal(t, uint8(1), reply.Down)

	r, err := packet.NewReader(reply.Payload)
	require.NoError(t, err)
	v, _ := r.Int64(1)
	assert.Equal(t, int64(1234), v)
}

func TestServerKeepsConnectionOnRoutingErrors(t *testing.T) {
	h := startServer(t)
	conn := dial(t, h)

	// Unknown id, then a known but unbound one: both are logged and dropped.
	require.NoError(t, WriteFrame(conn, packet.EncodeRequest(&packet.Request{Cmd: 60000, UpTag: 1})))
	require.NoError(t, WriteFrame(conn, packet.EncodeRequest(&packet.Request{Cmd: uint16(packet.CmdGetDungeon), UpTag: 2})))

	reply := roundTrip(t, conn, packet.CmdGetServerTime, 3)
	assert.Equal(t, uint8(3), reply.UpTag)
}

func TestServerDropsConnectionOnAuthFailure(t *testing.T) {
	h := startServer(t)
	conn := dial(t, h)

	reply := roundTrip(t, conn, packet.CmdReconnectRequest, 9)
	assert.Equal(t, int16(1), reply.ResultCode)
	assert.Equal(t, uint8(9), reply.UpTag)

	_, err := ReadFrame(conn, 4096)
	assert.Error(t, err)

	select {
	case <-h.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("finalizer did not run")
	}
}

func TestServerFinalizerUnregisters(t *testing.T) {
	h := startServer(t)
	conn := dial(t, h)

	roundTrip(t, conn, packet.CmdLoginRequest, 1)
	_, ok := h.store.Lookup(77)
	require.True(t, ok)

	conn.Close()
	select {
	case s := <-h.closed:
		assert.True(t, s.IsClosed())
	case <-time.After(5 * time.Second):
		t.Fatal("finalizer did not run")
	}
	_, ok = h.store.Lookup(77)
	assert.False(t, ok)
}

func TestServerTakeoverKeepsNewSessionRegistered(t *testing.T) {
	h := startServer(t)
	first := dial(t, h)
	roundTrip(t, first, packet.CmdLoginRequest, 1)
	second := dial(t, h)
	roundTrip(t, second, packet.CmdLoginRequest, 1)

	winner, ok := h.store.Lookup(77)
	require.True(t, ok)

	first.Close()
	select {
	case s := <-h.closed:
		assert.NotSame(t, winner, s)
	case <-time.After(5 * time.Second):
		t.Fatal("finalizer did not run")
	}

	got, ok := h.store.Lookup(77)
	require.True(t, ok)
	assert.Same(t, winner, got)
}

func TestServerRejectsOversizeFrame(t *testing.T) {
	h := startServer(t)
	conn := dial(t, h)

	require.NoError(t, WriteFrame(conn, make([]byte, 5000)))
	_, err := ReadFrame(conn, 4096)
	assert.Error(t, err)
}

func TestShutdownClosesLiveConnections(t *testing.T) {
	h := startServer(t)
	conn := dial(t, h)
	roundTrip(t, conn, packet.CmdGetServerTime, 1)

	h.srv.Shutdown()
	select {
	case err := <-h.done:
		assert.NoError(t, err)
		h.done <- err
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	_, err := ReadFrame(conn, 4096)
	assert.Error(t, err)
}
