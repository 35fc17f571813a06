package handler

import (
	"errors"
	"fmt"

	"github.com/sonettogo/server/internal/net"
)

var (
	// ErrNotLoggedIn is returned by every command that needs a bound player.
	ErrNotLoggedIn = net.ErrNotLoggedIn
	// ErrInvalidRequest marks a payload that decoded but is missing required fields.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrAuthFailed is joined onto login and reconnect rejections.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrSessionReplaced is returned to a connection whose player has since
	// logged in on another connection.
	ErrSessionReplaced = errors.New("session replaced by a newer login")
)

// DatabaseError wraps a storage failure with the operation that hit it.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error: %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// CustomError is a domain rejection with a client-facing message.
type CustomError struct {
	Msg string
}

func (e *CustomError) Error() string { return e.Msg }

func dbErr(op string, err error) error {
	return &DatabaseError{Op: op, Err: err}
}

// ShouldDisconnect reports whether the connection loop must drop the
// connection after a handler returned err.
func ShouldDisconnect(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}
