package transport

import (
	"io"
	"net"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// Kind tags a transport failure so callers can branch on what happened
// instead of inspecting concrete error types.
type Kind uint8

const (
	KindNone       Kind = iota
	KindEOF             // peer finished the stream.
	KindReset           // peer aborted the stream.
	KindBrokenPipe      // write on a stream the peer no longer reads.
	KindClosed          // stream was closed locally.
	KindTimeout         // read or write deadline exceeded.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindEOF:
		return "eof"
	case KindReset:
		return "reset"
	case KindBrokenPipe:
		return "broken pipe"
	case KindClosed:
		return "closed"
	case KindTimeout:
		return "timeout"
	default:
		return "other"
	}
}

// KindOf classifies err. Wrapped errors are unwrapped.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, ErrConnClosed):
		return KindEOF
	case errors.Is(err, ErrConnReset), errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED):
		return KindReset
	case errors.Is(err, ErrBrokenPipe), errors.Is(err, syscall.EPIPE):
		return KindBrokenPipe
	case errors.Is(err, net.ErrClosed):
		return KindClosed
	case errors.Is(err, ErrDeadLineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindOther
}
