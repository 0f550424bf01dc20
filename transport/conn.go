package transport

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrConnClosed       = errors.New("connection is closed")
	ErrConnReset        = errors.New("connection reset by peer")
	ErrBrokenPipe       = errors.New("broken pipe")
	ErrDeadLineExceeded = errors.New("deadline exceeded")
	ErrConnRefused      = errors.New("connection refused")

	ErrConnListenerClosed = errors.New("conn listener is closed")
	ErrAddrAlreadyInUse   = errors.New("address already in use")
)

type Conn interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error

	LocalAddr() Addr
	RemoteAddr() Addr

	SetReadDeadLine(t time.Time)
	SetWriteDeadLine(t time.Time)
}

// BufferedConn is a [Conn] whose writes land in a bounded buffer on the other side.
type BufferedConn interface {
	Conn
	ReadBufSize() uint
	WriteBufSize() uint
}

type ConnListener interface {
	Accept(ctx context.Context) (Conn, error)
	Close() error
}

type ConnDialer interface {
	Dial(ctx context.Context, addr Addr) (Conn, error)
}

// ConnDialerFunc lets an ordinary function act as a [ConnDialer].
type ConnDialerFunc func(ctx context.Context, addr Addr) (Conn, error)

func (f ConnDialerFunc) Dial(ctx context.Context, addr Addr) (Conn, error) { return f(ctx, addr) }
