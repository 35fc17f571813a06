package net

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonettogo/server/internal/metrics"
	"github.com/sonettogo/server/internal/net/packet"
	"github.com/sonettogo/server/internal/player"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrAlreadyBound  = errors.New("session already bound to another player")
	ErrSessionClosed = errors.New("session closed")
	ErrQueueFull     = errors.New("outbound queue full")
)

// SessionOptions tune one connection.
type SessionOptions struct {
	OutQueueSize int
	WriteTimeout time.Duration
	// PacketsPerSecond <= 0 disables inbound rate limiting.
	PacketsPerSecond int
	Burst            int
	Metrics          *metrics.Metrics
}

// Session is the state of one client connection. Fields below mu are only
// touched under mu, in short sections that never span a storage call.
// Outbound bodies are queued on OutQueue in down-tag order and written by
// writeLoop.
type Session struct {
	ID   uint64
	IP   string
	conn net.Conn

	OutQueue chan []byte

	mu              sync.Mutex
	playerID        int64 // 0 = not bound
	player          *player.State
	downTag         uint8
	statePushesSent bool

	limiter      *rate.Limiter
	writeTimeout time.Duration
	metrics      *metrics.Metrics

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	drainCh   chan struct{}
	drainOnce sync.Once

	log *zap.Logger
}

func NewSession(conn net.Conn, id uint64, opts SessionOptions, log *zap.Logger) *Session {
	if opts.OutQueueSize <= 0 {
		opts.OutQueueSize = 256
	}
	s := &Session{
		ID:           id,
		conn:         conn,
		OutQueue:     make(chan []byte, opts.OutQueueSize),
		writeTimeout: opts.WriteTimeout,
		metrics:      opts.Metrics,
		closeCh:      make(chan struct{}),
		drainCh:      make(chan struct{}),
		log:          log.With(zap.Uint64("session", id)),
	}
	if conn != nil && conn.RemoteAddr() != nil {
		s.IP = conn.RemoteAddr().String()
	}
	if opts.PacketsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = opts.PacketsPerSecond
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.PacketsPerSecond), burst)
	}
	return s
}

// Start launches the writer goroutine.
func (s *Session) Start() {
	go s.writeLoop()
}

// Log returns the session logger, tagged with the player once bound.
func (s *Session) Log() *zap.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playerID != 0 {
		return s.log.With(zap.Int64("player", s.playerID))
	}
	return s.log
}

// BindIdentity binds the connection to a player. Rebinding the same id is a
// no-op; binding a different id fails.
func (s *Session) BindIdentity(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bindLocked(id)
}

func (s *Session) bindLocked(id int64) error {
	if s.playerID != 0 && s.playerID != id {
		return ErrAlreadyBound
	}
	s.playerID = id
	return nil
}

// Login binds id, installs its loaded state and starts a new state-push
// epoch in one critical section.
func (s *Session) Login(id int64, state *player.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.bindLocked(id); err != nil {
		return err
	}
	s.player = state
	s.statePushesSent = false
	return nil
}

// PlayerID returns the bound player or ErrNotLoggedIn.
func (s *Session) PlayerID() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playerID == 0 {
		return 0, ErrNotLoggedIn
	}
	return s.playerID, nil
}

// Player returns a snapshot of the loaded state, or nil before login.
func (s *Session) Player() *player.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.player.Clone()
}

// UpdatePlayer runs fn on the live state under the session lock and returns
// a snapshot of the result. fn must not block.
func (s *Session) UpdatePlayer(fn func(*player.State)) (*player.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil, ErrNotLoggedIn
	}
	fn(s.player)
	return s.player.Clone(), nil
}

// NextDownTag returns a fresh tag. Tags wrap after 255.
func (s *Session) NextDownTag() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextDownTagLocked()
}

func (s *Session) nextDownTagLocked() uint8 {
	s.downTag++
	return s.downTag
}

// SendReply encodes w as the reply payload and queues it with upTag echoed.
// A nil w sends an empty payload.
func (s *Session) SendReply(cmd packet.CmdID, w *packet.Writer, resultCode int16, upTag uint8) error {
	var payload []byte
	if w != nil {
		payload = w.Bytes()
	}
	return s.SendRawReplyFixed(cmd, payload, resultCode, upTag)
}

// SendRawReplyFixed queues a reply whose payload is already serialized.
func (s *Session) SendRawReplyFixed(cmd packet.CmdID, payload []byte, resultCode int16, upTag uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	body := packet.EncodeReply(&packet.Reply{
		Cmd:        cmd,
		Payload:    payload,
		ResultCode: resultCode,
		UpTag:      upTag,
		Down:       s.nextDownTagLocked(),
	})
	return s.enqueueLocked(body)
}

// SendPush queues a push stamped with the session's next down tag.
func (s *Session) SendPush(cmd packet.CmdID, w *packet.Writer) error {
	var payload []byte
	if w != nil {
		payload = w.Bytes()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	body := packet.EncodePush(&packet.Push{
		Cmd:     cmd,
		Payload: payload,
		Down:    s.nextDownTagLocked(),
	})
	if err := s.enqueueLocked(body); err != nil {
		return err
	}
	s.metrics.PushSent(cmd.String())
	return nil
}

// enqueueLocked must run under mu so that queue order matches tag order.
// A full queue disconnects the slow client.
func (s *Session) enqueueLocked(body []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	select {
	case s.OutQueue <- body:
		return nil
	default:
		s.log.Warn("輸出佇列已滿，斷開慢速連線")
		s.Close()
		return ErrQueueFull
	}
}

// CheckAndMarkStatePushes returns true the first time it is called in the
// current epoch and false afterwards. An epoch starts at Login or
// ResetStatePushes.
func (s *Session) CheckAndMarkStatePushes() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statePushesSent {
		return false
	}
	s.statePushesSent = true
	return true
}

func (s *Session) ResetStatePushes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statePushesSent = false
}

// Allow reports whether one more inbound packet fits the rate limit.
func (s *Session) Allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}

// Close shuts down the session. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.closeCh)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} {
	return s.closeCh
}

// Drain writes whatever is already queued and then closes the session. It
// returns once the session is closed, forcing the close after timeout.
func (s *Session) Drain(timeout time.Duration) {
	s.drainOnce.Do(func() { close(s.drainCh) })
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.closeCh:
	case <-t.C:
		s.Close()
	}
}

// writeLoop runs in its own goroutine and writes queued bodies as frames.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case body := <-s.OutQueue:
			if !s.writeOne(body) {
				return
			}
		case <-s.drainCh:
			for {
				select {
				case body := <-s.OutQueue:
					if !s.writeOne(body) {
						return
					}
				default:
					return
				}
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *Session) writeOne(body []byte) bool {
	if s.writeTimeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := WriteFrame(s.conn, body); err != nil {
		if !s.closed.Load() {
			s.log.Debug("寫入錯誤", zap.Error(err))
		}
		return false
	}
	return true
}
