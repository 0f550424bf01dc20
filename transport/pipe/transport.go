package pipe

import (
	"context"
	"sync"

	"http-keepalive/transport"

	"github.com/benbjohnson/clock"
)

type dialRequest struct {
	conn     transport.Conn
	accepted chan struct{}
}

// Transport connects dialers and listeners in memory, keyed by the string form of an address.
// Every dial creates a new [BufferedPipe] pair.
type Transport struct {
	listeners map[string]*Listener
	clock     clock.Clock
	bufSize   uint

	mu sync.Mutex
}

var _ transport.ConnDialer = (*Transport)(nil)

func NewTransport(clock clock.Clock, bufSize uint) *Transport {
	return &Transport{
		listeners: make(map[string]*Listener),
		clock:     clock,
		bufSize:   bufSize,
	}
}

func (t *Transport) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	t.mu.Lock()
	listener, ok := t.listeners[addr.String()]
	t.mu.Unlock()

	if !ok {
		return nil, transport.ErrConnRefused
	}

	dialer, accepter := BufferedPipe("dialer", addr.String(), t.clock, t.bufSize)

	req := dialRequest{
		conn:     accepter,
		accepted: make(chan struct{}, 1),
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-listener.closed:
		return nil, transport.ErrConnRefused
	case listener.requests <- req:
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case _, accepted := <-req.accepted:
		if !accepted {
			return nil, transport.ErrConnRefused
		}
	}

	return dialer, nil
}

func (t *Transport) Listen(addr transport.Addr) (*Listener, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := addr.String()
	if _, ok := t.listeners[key]; ok {
		return nil, transport.ErrAddrAlreadyInUse
	}

	l := &Listener{
		key:       key,
		transport: t,
		requests:  make(chan dialRequest),
		closed:    make(chan struct{}),
	}
	t.listeners[key] = l

	return l, nil
}

type Listener struct {
	key       string
	transport *Transport

	requests chan dialRequest
	closed   chan struct{}
	once     sync.Once
}

var _ transport.ConnListener = (*Listener)(nil)

func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.closed:
		return nil, transport.ErrConnListenerClosed
	case req := <-l.requests:
		req.accepted <- struct{}{}
		return req.conn, nil
	}
}

func (l *Listener) Close() error {
	err := transport.ErrConnListenerClosed
	l.once.Do(func() {
		close(l.closed)

		l.transport.mu.Lock()
		delete(l.transport.listeners, l.key)
		l.transport.mu.Unlock()

		err = nil
	})
	return err
}
