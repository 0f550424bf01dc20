package client

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"http-keepalive/application/http"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Response is a response whose body is streamed from the connection.
type Response struct {
	Status  uint
	Reason  string
	Version http.Version
	Headers http.Headers

	// Body must be read before the next request, or it is discarded then.
	Body io.Reader
}

// Client sends requests one by one, holding at most one [Conn].
// The connection is reused while it is kept alive and not expired,
// and the next request goes to the same scheme, host and port.
type Client struct {
	opts Options

	logger *slog.Logger
	clock  clock.Clock

	conn    *Conn
	connKey connKey
	last    *Response
	mu      sync.Mutex // guards the fields above
}

type connKey struct {
	scheme string
	host   string
	port   uint16
	proxy  bool
}

func keyOf(req Request) connKey {
	return connKey{
		scheme: req.URI().Scheme,
		host:   req.Host(),
		port:   req.Port(),
		proxy:  req.UsingProxy(),
	}
}

func NewClient(logger *slog.Logger, clock clock.Clock, opts Options) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if clock == nil {
		clock = realClock()
	}

	return &Client{
		opts:   opts,
		logger: logger,
		clock:  clock,
	}
}

// Do sends req and reads the response headers.
// ctx bounds dialing and, when it has a deadline, the transport operations of this request.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.releaseLocked(); err != nil {
		c.logger.Debug("Discarding previous body failed", slog.String("err", err.Error()))
	}

	conn, err := c.connLocked(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "getting connection")
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.con.SetReadDeadLine(deadline)
		conn.con.SetWriteDeadLine(deadline)
	} else {
		conn.con.SetReadDeadLine(time.Time{})
		conn.con.SetWriteDeadLine(time.Time{})
	}

	if err := conn.SendRequest(req); err != nil {
		c.dropLocked()
		return nil, errors.Wrap(err, "sending request")
	}

	if err := conn.ReadHeaders(); err != nil {
		c.dropLocked()
		return nil, errors.Wrap(err, "reading response headers")
	}

	code, reason := conn.Status()
	res := &Response{
		Status:  code,
		Reason:  reason,
		Version: conn.Version(),
		Headers: conn.Headers(),
		Body:    &lockedReader{mu: &c.mu, r: conn.Body()},
	}
	c.last = res

	return res, nil
}

// connLocked returns held connection if it can be reused, dials a new one otherwise.
func (c *Client) connLocked(ctx context.Context, req Request) (*Conn, error) {
	key := keyOf(req)

	if c.conn != nil {
		if c.connKey == key && c.conn.KeepAlive() && !c.conn.Expired() {
			c.logger.Debug("Reusing connection", slog.String("conn", c.conn.ID()))
			return c.conn, nil
		}
		c.dropLocked()
	}

	conn, err := New(ctx, req, c.logger, c.clock, c.opts)
	if err != nil {
		return nil, err
	}

	c.conn, c.connKey = conn, key
	return conn, nil
}

// releaseLocked discards the unread body of the last response.
func (c *Client) releaseLocked() error {
	if c.last == nil {
		return nil
	}

	body := c.last.Body.(*lockedReader).r
	c.last = nil

	if _, err := io.Copy(io.Discard, body); err != nil {
		c.dropLocked()
		return errors.Wrap(err, "reading body to discard all")
	}
	return nil
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Close(); err != nil {
		c.logger.Debug("Closing connection failed", slog.String("err", err.Error()))
	}
	c.conn = nil
}

// Close closes the held connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = nil
	if c.conn == nil {
		return nil
	}

	err := c.conn.Close()
	c.conn = nil
	return err
}

type lockedReader struct {
	mu *sync.Mutex
	r  io.Reader
}

func (r *lockedReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.r.Read(p)
}
