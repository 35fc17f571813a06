package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sonettogo/server/internal/metrics"
	"github.com/sonettogo/server/internal/net/packet"
	"go.uber.org/zap"
)

// Dispatcher routes one decoded request. *packet.Registry implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, sess any, req *packet.Request) error
}

type ServerOptions struct {
	BindAddress    string
	MaxFrameSize   int
	ReadTimeout    time.Duration // 0 = no idle timeout
	HandlerTimeout time.Duration // 0 = no per-command deadline
	Session        SessionOptions

	// ShouldDisconnect decides whether a dispatch error drops the connection.
	// Nil keeps the connection on every error.
	ShouldDisconnect func(error) bool
	// OnClose runs in the connection finalizer after the session has been
	// closed and unregistered.
	OnClose func(*Session)
}

// Server accepts TCP connections and runs one read/dispatch goroutine per
// connection. Commands of one connection are handled in arrival order.
type Server struct {
	listener   net.Listener
	opts       ServerOptions
	dispatcher Dispatcher
	store      *SessionStore
	metrics    *metrics.Metrics
	log        *zap.Logger

	nextID atomic.Uint64

	mu    sync.Mutex
	conns map[uint64]*Session

	wg        sync.WaitGroup
	closeCh   chan struct{}
	closeOnce sync.Once
}

func NewServer(opts ServerOptions, d Dispatcher, store *SessionStore, m *metrics.Metrics, log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", opts.BindAddress)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", opts.BindAddress, err)
	}
	if opts.MaxFrameSize <= 0 {
		opts.MaxFrameSize = 1 << 20
	}
	opts.Session.Metrics = m
	return &Server{
		listener:   ln,
		opts:       opts,
		dispatcher: d,
		store:      store,
		metrics:    m,
		log:        log,
		conns:      make(map[uint64]*Session),
		closeCh:    make(chan struct{}),
	}, nil
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts connections until ctx is cancelled or Shutdown is called.
// It returns after every connection goroutine has exited.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.closeCh:
		}
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				s.wg.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.log.Error("連線接受失敗", zap.Error(err))
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.opts.Session, s.log)
		if !s.track(sess) {
			sess.Close()
			continue
		}
		s.metrics.SessionOpened()
		s.log.Info(fmt.Sprintf("玩家連線  session=%d  ip=%s", id, sess.IP))

		s.wg.Add(1)
		go s.handleConn(ctx, sess)
	}
}

func (s *Server) track(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closeCh:
		return false
	default:
	}
	s.conns[sess.ID] = sess
	return true
}

// handleConn is the per-connection task. The deferred finalizer runs on
// every exit path, panics included.
func (s *Server) handleConn(ctx context.Context, sess *Session) {
	defer s.wg.Done()
	defer s.finalize(sess)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-connCtx.Done():
		}
	}()

	sess.Start()
	for {
		if s.opts.ReadTimeout > 0 {
			sess.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		}
		body, err := ReadFrame(sess.conn, s.opts.MaxFrameSize)
		if err != nil {
			if !sess.IsClosed() {
				sess.log.Debug("讀取錯誤", zap.Error(err))
			}
			return
		}

		if !sess.Allow() {
			sess.log.Warn("封包速率超限，斷開連線")
			s.metrics.RateLimited()
			return
		}

		req, err := packet.DecodeRequest(body)
		if err != nil {
			sess.log.Warn("封包解碼失敗", zap.Error(err))
			continue
		}

		if err := s.dispatch(connCtx, sess, req); err != nil {
			if s.opts.ShouldDisconnect != nil && s.opts.ShouldDisconnect(err) {
				sess.Log().Info("驗證失敗，斷開連線", zap.Error(err))
				sess.Drain(s.opts.Session.WriteTimeout + time.Second)
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, sess *Session, req *packet.Request) error {
	if s.opts.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.HandlerTimeout)
		defer cancel()
	}

	cmd := packet.CmdID(req.Cmd)
	start := time.Now()
	err := s.dispatcher.Dispatch(ctx, sess, req)
	result := "ok"
	if err != nil {
		result = "error"
		sess.Log().Warn("指令處理失敗",
			zap.Stringer("cmd", cmd),
			zap.Uint8("up_tag", req.UpTag),
			zap.Error(err),
		)
	}
	s.metrics.ObserveCommand(cmd.String(), result, time.Since(start))
	return err
}

func (s *Server) finalize(sess *Session) {
	if rec := recover(); rec != nil {
		sess.log.Error("連線處理 panic 已恢復", zap.Any("panic", rec), zap.Stack("stack"))
	}
	sess.Close()

	pid, err := sess.PlayerID()
	if err == nil {
		s.store.Unregister(pid, sess)
	}

	s.mu.Lock()
	delete(s.conns, sess.ID)
	s.mu.Unlock()

	s.metrics.SessionClosed()
	if s.opts.OnClose != nil {
		s.opts.OnClose(sess)
	}
	s.log.Info(fmt.Sprintf("玩家斷線  session=%d  player=%d", sess.ID, pid))
}

// Shutdown stops accepting and closes every open connection. Serve returns
// once the connection goroutines have finished.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		close(s.closeCh)
		live := make([]*Session, 0, len(s.conns))
		for _, sess := range s.conns {
			live = append(live, sess)
		}
		s.mu.Unlock()

		s.listener.Close()
		for _, sess := range live {
			sess.Close()
		}
	})
}
