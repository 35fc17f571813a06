package packet

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// HandlerFunc is the callback signature for command handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(ctx context.Context, sess any, req *Request) error

// UnregisteredCmdError reports a wire id outside the CmdID enumeration.
type UnregisteredCmdError struct {
	ID uint16
}

func (e *UnregisteredCmdError) Error() string {
	return fmt.Sprintf("unregistered command id %d", e.ID)
}

// UnhandledCmdError reports an enumerated command with no bound handler.
type UnhandledCmdError struct {
	Cmd CmdID
}

func (e *UnhandledCmdError) Error() string {
	return fmt.Sprintf("unhandled command %s (%d)", e.Cmd, uint16(e.Cmd))
}

// Registry maps command ids to handlers. It is filled once at startup and
// only read afterwards.
type Registry struct {
	handlers map[CmdID]HandlerFunc
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[CmdID]HandlerFunc),
		log:      log,
	}
}

// Register binds cmd to fn. Binding a command twice is a programming error.
func (reg *Registry) Register(cmd CmdID, fn HandlerFunc) {
	if _, ok := cmdNames[cmd]; !ok {
		panic(fmt.Sprintf("packet: register unknown command %d", uint16(cmd)))
	}
	if _, dup := reg.handlers[cmd]; dup {
		panic(fmt.Sprintf("packet: command %s registered twice", cmd))
	}
	reg.handlers[cmd] = fn
}

// Commands returns the bound commands in ascending id order.
func (reg *Registry) Commands() []CmdID {
	out := make([]CmdID, 0, len(reg.handlers))
	for c := range reg.handlers {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Dispatch resolves req.Cmd and invokes exactly one handler, returning its
// error unchanged. Ids outside the enumeration and enumerated ids without a
// handler fail with distinct errors.
func (reg *Registry) Dispatch(ctx context.Context, sess any, req *Request) error {
	cmd, ok := LookupCmd(req.Cmd)
	if !ok {
		return &UnregisteredCmdError{ID: req.Cmd}
	}
	fn, ok := reg.handlers[cmd]
	if !ok {
		return &UnhandledCmdError{Cmd: cmd}
	}

	reg.log.Debug("收到封包",
		zap.Stringer("cmd", cmd),
		zap.Uint8("up_tag", req.UpTag),
		zap.Int("size", len(req.Payload)),
	)
	return reg.safeCall(ctx, fn, sess, req, cmd)
}

// safeCall executes a handler with panic recovery so one bad packet cannot
// take down the connection task.
func (reg *Registry) safeCall(ctx context.Context, fn HandlerFunc, sess any, req *Request, cmd CmdID) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("處理器 panic 已恢復",
				zap.Stringer("cmd", cmd),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			err = fmt.Errorf("handler panic for command %s: %v", cmd, rec)
		}
	}()
	return fn(ctx, sess, req)
}
