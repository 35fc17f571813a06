package net

import (
	"sync"
	"testing"

	"github.com/sonettogo/server/internal/net/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func bareSession(id uint64) *Session {
	return NewSession(nil, id, SessionOptions{OutQueueSize: 8}, zap.NewNop())
}

func TestRegisterTwiceKeepsSecond(t *testing.T) {
	store := NewSessionStore()
	first, second := bareSession(1), bareSession(2)

	assert.Nil(t, store.Register(42, first))
	evicted := store.Register(42, second)
	assert.Same(t, first, evicted)

	got, ok := store.Lookup(42)
	require.True(t, ok)
	assert.Same(t, second, got)
	assert.Equal(t, 1, store.Count())

	assert.False(t, first.IsClosed(), "evicted session stays open")
}

func TestRegisterSameSessionIsNotEviction(t *testing.T) {
	store := NewSessionStore()
	s := bareSession(1)
	store.Register(42, s)
	assert.Nil(t, store.Register(42, s))
}

func TestUnregisterByEvictedSessionKeepsWinner(t *testing.T) {
	store := NewSessionStore()
	first, second := bareSession(1), bareSession(2)
	store.Register(42, first)
	store.Register(42, second)

	assert.False(t, store.Unregister(42, first))
	got, ok := store.Lookup(42)
	require.True(t, ok)
	assert.Same(t, second, got)

	assert.True(t, store.Unregister(42, second))
	_, ok = store.Lookup(42)
	assert.False(t, ok)
}

func TestConcurrentRegisterSettlesOnOneWinner(t *testing.T) {
	store := NewSessionStore()
	sessions := make([]*Session, 32)
	for i := range sessions {
		sessions[i] = bareSession(uint64(i + 1))
	}

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Register(7, s)
		}()
	}
	wg.Wait()

	winner, ok := store.Lookup(7)
	require.True(t, ok)
	assert.Contains(t, sessions, winner)
	assert.Equal(t, 1, store.Count())

	for _, s := range sessions {
		store.Unregister(7, s)
	}
	assert.Zero(t, store.Count())
}

func TestPushTo(t *testing.T) {
	store := NewSessionStore()
	s := bareSession(1)
	store.Register(5, s)

	ok, err := store.PushTo(5, packet.CmdUpdateRedDotPush, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, s.OutQueue, 1)

	ok, err = store.PushTo(6, packet.CmdUpdateRedDotPush, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRangeAndCloseAll(t *testing.T) {
	store := NewSessionStore()
	a, b := bareSession(1), bareSession(2)
	store.Register(1, a)
	store.Register(2, b)

	seen := map[int64]bool{}
	store.Range(func(id int64, _ *Session) bool {
		seen[id] = true
		return true
	})
	assert.Equal(t, map[int64]bool{1: true, 2: true}, seen)

	store.CloseAll()
	assert.True(t, a.IsClosed())
	assert.True(t, b.IsClosed())
}
