package client

import (
	"context"
	"io"
	"log/slog"
	"time"

	"http-keepalive/application/http"
	"http-keepalive/transport"
	"http-keepalive/transport/tcp"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type connState uint8

const (
	stateIdle connState = iota
	stateSending
	stateAwaitingResponse
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateSending:
		return "sending"
	case stateAwaitingResponse:
		return "awaiting response"
	}
	return "unknown"
}

// Conn is a HTTP/1.x client connection over a single transport.
// It carries one request-response cycle at a time and decides whether
// the transport can be reused afterwards.
//
// Conn is not safe for concurrent use.
type Conn struct {
	id string

	con    transport.Conn
	closed bool

	parser  Parser
	readBuf []byte

	persistent       bool
	keepAliveTimeout time.Duration
	bufferSize       int

	state     connState
	cycle     uint64 // incremented for each request.
	keepAlive bool
	decided   bool // keepAlive is decided for current cycle.
	truncated bool // stream ended before the current response completed.
	expiresAt time.Time

	logger *slog.Logger
	clock  clock.Clock
}

// New opens a connection to the host of req.
// The connection is upgraded to TLS when req is https and not sent to a proxy.
// Errors from dialing and handshaking are returned as they are.
func New(ctx context.Context, req Request, logger *slog.Logger, clock clock.Clock, opts Options) (*Conn, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clock == nil {
		clock = realClock()
	}
	opts = opts.withDefaults()

	id := uuid.NewString()
	logger = logger.With(slog.String("conn", id))

	addr := tcp.NewAddr(req.Host(), req.Port())
	con, err := opts.Dialer.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	logger.Debug("Dialed", slog.String("addr", addr.String()))

	if req.URI().Scheme == "https" && !req.UsingProxy() {
		upgraded, err := opts.TLS.Upgrader.Upgrade(ctx, con, req.Host(), opts.TLS.Config)
		if err != nil {
			_ = con.Close()
			return nil, err
		}
		con = upgraded
		logger.Debug("Upgraded to TLS", slog.String("server_name", req.Host()))
	}

	c := &Conn{
		id:               id,
		con:              con,
		parser:           opts.NewParser(),
		persistent:       opts.Persistent,
		keepAliveTimeout: opts.KeepAliveTimeout,
		bufferSize:       opts.BufferSize,
		logger:           logger,
		clock:            clock,
	}
	c.resetTimer()

	return c, nil
}

func realClock() clock.Clock { return clock.New() }

func (c *Conn) ID() string { return c.id }

// SendRequest writes req to the transport.
// The response must be read before sending the next request.
func (c *Conn) SendRequest(req Request) error {
	switch c.state {
	case stateAwaitingResponse:
		return ErrResponsePending
	case stateSending:
		return ErrRequestPending
	}

	if c.closed {
		return ErrConnClosed
	}

	c.state = stateSending
	c.cycle++
	c.decided = false
	c.truncated = false

	w := &countingWriter{w: c.con}
	if err := req.Stream(w); err != nil {
		c.state = stateIdle
		// Nothing reached the peer, e.g. the request was invalid. The stream is still clean.
		if w.n > 0 {
			_ = c.closeTransport()
		}
		return errors.Wrap(err, "sending request")
	}

	if !req.ExpectsResponseBody() {
		c.parser.ExpectNoBody()
	}
	c.state = stateAwaitingResponse
	c.logger.Debug("Request sent", slog.String("uri", req.URI().String()))

	return nil
}

// ReadHeaders reads from the transport until the response headers are complete.
func (c *Conn) ReadHeaders() error {
	if c.state != stateAwaitingResponse {
		return ErrNoResponsePending
	}

	buf := c.buffer(c.bufferSize)
	for !c.parser.HeadersComplete() {
		n, err := c.con.Read(buf)
		if n > 0 {
			if perr := c.parser.Feed(buf[:n]); perr != nil {
				_ = c.Close()
				return errors.Wrap(perr, "parsing response headers")
			}
		}

		if err != nil {
			// Stream might end right after the headers, body is read later on.
			if transport.KindOf(err) == transport.KindEOF && c.parser.HeadersComplete() {
				break
			}

			_ = c.Close()
			return &TransportError{Op: "read headers", Err: err}
		}
	}

	c.decide()

	c.logger.Debug("Headers read",
		slog.Uint64("status", uint64(c.parser.StatusCode())),
		slog.String("version", c.parser.Version().String()),
		slog.Bool("keep_alive", c.keepAlive),
	)

	return nil
}

// ReadPartial returns at most size bytes of the response body.
// size <= 0 means the buffer size from [Options].
//
// It returns nil without error when no response is pending.
// An empty result without error can also mean the body is finished;
// in that case the connection is ready for the next request.
func (c *Conn) ReadPartial(size int) ([]byte, error) {
	if c.state != stateAwaitingResponse {
		return nil, nil
	}

	if size <= 0 {
		size = c.bufferSize
	}

	if c.parser.Buffered() == 0 && !c.parser.Finished() {
		if err := c.readMore(size); err != nil {
			return nil, err
		}
	}

	chunk := c.parser.Read(size)

	if c.parser.Finished() && c.parser.Buffered() == 0 {
		c.finishResponse()
	}

	return chunk, nil
}

func (c *Conn) readMore(size int) error {
	buf := c.buffer(size)

	n, err := c.con.Read(buf)
	if n > 0 {
		if perr := c.parser.Feed(buf[:n]); perr != nil {
			_ = c.Close()
			return errors.Wrap(perr, "parsing response")
		}
	}

	if err == nil {
		return nil
	}

	if transport.KindOf(err) != transport.KindEOF {
		_ = c.Close()
		return &TransportError{Op: "read", Err: err}
	}

	// Peer closed the stream. It can't be reused anymore.
	// The response ends here, whether its framing was satisfied or not.
	_ = c.closeTransport()

	if terr := c.parser.Terminate(); terr != nil {
		c.truncated = true
		c.logger.Debug("Stream ended before response completed", slog.String("err", terr.Error()))
	}

	return nil
}

// finishResponse ends the current cycle.
func (c *Conn) finishResponse() {
	if !c.decided && c.parser.HeadersComplete() {
		c.decide()
	}

	if !c.keepAlive {
		_ = c.closeTransport()
	}

	c.parser.Reset()
	c.resetTimer()
	c.state = stateIdle

	c.logger.Debug("Response finished", slog.Bool("keep_alive", c.KeepAlive()))
}

func (c *Conn) decide() {
	headers := c.parser.Headers()
	c.keepAlive = decideKeepAlive(c.persistent, c.parser.Version(), headers.Values("Connection"))
	c.decided = true
}

func (c *Conn) resetTimer() {
	if c.persistent {
		c.expiresAt = c.clock.Now().Add(c.keepAliveTimeout)
	}
}

func (c *Conn) buffer(size int) []byte {
	if cap(c.readBuf) < size {
		c.readBuf = make([]byte, size)
	}
	return c.readBuf[:size]
}

// Close closes the transport. It is safe to call it more than once,
// only the first call may return an error.
func (c *Conn) Close() error {
	err := c.closeTransport()
	c.state = stateIdle
	return err
}

func (c *Conn) closeTransport() error {
	if c.closed {
		return nil
	}
	c.closed = true

	c.logger.Debug("Closing connection")

	if err := c.con.Close(); err != nil {
		return errors.Wrap(err, "closing transport")
	}
	return nil
}

// Truncated reports whether the stream ended before the last response was complete.
// Such a response is still finished normally.
func (c *Conn) Truncated() bool { return c.truncated }

// KeepAlive reports whether the connection can carry another request.
func (c *Conn) KeepAlive() bool { return c.keepAlive && !c.closed }

// Expired reports whether the keep-alive timeout has passed.
// Connections that are not persistent are always expired.
func (c *Conn) Expired() bool {
	return c.expiresAt.IsZero() || !c.clock.Now().Before(c.expiresAt)
}

// Status returns status code and reason phrase of the current response.
func (c *Conn) Status() (code uint, reason string) {
	return c.parser.StatusCode(), c.parser.ReasonPhrase()
}

func (c *Conn) Version() http.Version { return c.parser.Version() }
func (c *Conn) Headers() http.Headers { return c.parser.Headers() }

// Body returns a reader for the body of the current response.
// It returns [io.EOF] once the response is finished.
func (c *Conn) Body() io.Reader {
	return &bodyReader{c: c, cycle: c.cycle}
}

type bodyReader struct {
	c     *Conn
	cycle uint64
}

func (b *bodyReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if b.cycle != b.c.cycle || b.c.state != stateAwaitingResponse {
			return 0, io.EOF
		}

		chunk, err := b.c.ReadPartial(len(p))
		if err != nil {
			return 0, err
		}
		if len(chunk) > 0 {
			return copy(p, chunk), nil
		}
	}
}

// countingWriter counts bytes handed to the transport.
type countingWriter struct {
	w io.Writer
	n int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += n
	return n, err
}
