package net

import (
	"sync"

	"github.com/sonettogo/server/internal/net/packet"
)

// SessionStore is the process-wide directory of logged-in sessions keyed by
// player id. It holds non-owning handles: a session's lifetime is governed
// by its connection, and the connection finalizer removes it from here.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[int64]*Session)}
}

// Register makes s the addressable session for playerID and returns the
// session it replaced, if any. The evicted connection stays open.
func (ss *SessionStore) Register(playerID int64, s *Session) (evicted *Session) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	prev := ss.sessions[playerID]
	ss.sessions[playerID] = s
	if prev == s {
		return nil
	}
	return prev
}

// Lookup returns the current session for playerID.
func (ss *SessionStore) Lookup(playerID int64) (*Session, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s, ok := ss.sessions[playerID]
	return s, ok
}

// Unregister removes playerID only while the entry still points at s, so a
// closing connection that was already taken over cannot remove its successor.
// It reports whether an entry was removed.
func (ss *SessionStore) Unregister(playerID int64, s *Session) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if cur, ok := ss.sessions[playerID]; ok && cur == s {
		delete(ss.sessions, playerID)
		return true
	}
	return false
}

func (ss *SessionStore) Count() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Range calls fn for each registered session until fn returns false. fn runs
// on a snapshot, without the store lock held.
func (ss *SessionStore) Range(fn func(playerID int64, s *Session) bool) {
	ss.mu.RLock()
	snap := make(map[int64]*Session, len(ss.sessions))
	for id, s := range ss.sessions {
		snap[id] = s
	}
	ss.mu.RUnlock()

	for id, s := range snap {
		if !fn(id, s) {
			return
		}
	}
}

// PushTo sends a push to the player's current connection. It reports false
// when the player has no registered session.
func (ss *SessionStore) PushTo(playerID int64, cmd packet.CmdID, w *packet.Writer) (bool, error) {
	s, ok := ss.Lookup(playerID)
	if !ok {
		return false, nil
	}
	return true, s.SendPush(cmd, w)
}

// CloseAll closes every registered session. Used at shutdown.
func (ss *SessionStore) CloseAll() {
	ss.Range(func(_ int64, s *Session) bool {
		s.Close()
		return true
	})
}
