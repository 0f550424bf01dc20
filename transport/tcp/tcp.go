// Package tcp dials Transmission Control Protocol (TCP) connections through the host's network stack.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9293
package tcp

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"time"

	"http-keepalive/application/util/domain"
	"http-keepalive/transport"

	"github.com/pkg/errors"
)

type Addr struct {
	host string
	port uint16
}

var _ transport.Addr = Addr{}

// NewAddr creates an address from a host name or ip literal and a port.
func NewAddr(host string, port uint16) Addr {
	return Addr{host: host, port: port}
}

func (a Addr) Host() string                { return a.host }
func (a Addr) Port() uint16                { return a.port }
func (a Addr) Network() transport.Protocol { return transport.TCP }
func (a Addr) Identifier() any             { return a.port }

func (a Addr) String() string {
	return net.JoinHostPort(a.host, strconv.FormatUint(uint64(a.port), 10))
}

// TimeoutOptions bounds each transport operation.
// Zero value means no limit.
type TimeoutOptions struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

type Dialer struct {
	lookuper domain.Lookuper
	timeout  TimeoutOptions
}

var _ transport.ConnDialer = (*Dialer)(nil)

// NewDialer creates a dialer. If lookuper is nil, host names are resolved by [net.Dialer].
func NewDialer(lookuper domain.Lookuper, timeout TimeoutOptions) *Dialer {
	return &Dialer{lookuper: lookuper, timeout: timeout}
}

func (d *Dialer) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	target := addr.String()

	if a, ok := addr.(Addr); ok && d.lookuper != nil {
		if _, err := netip.ParseAddr(a.host); err != nil {
			// Host is a domain name. Resolve it to the ip address.
			ips, err := d.lookuper.LookupIP(ctx, a.host)
			if err != nil {
				return nil, errors.Wrapf(err, "lookup for host(%s) failed", a.host)
			}
			if len(ips) == 0 {
				return nil, errors.Wrapf(domain.ErrDomainNotFound, "lookup for host(%s) failed", a.host)
			}

			// Lets simply use the first address.
			target = netip.AddrPortFrom(ips[0], a.port).String()
		}
	}

	nd := net.Dialer{Timeout: d.timeout.Connect}
	c, err := nd.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, err
	}

	return WrapConn(c, d.timeout), nil
}

// Conn applies [TimeoutOptions] to every read and write of the underlying [net.Conn].
type Conn struct {
	c       net.Conn
	timeout TimeoutOptions

	rdeadLine, wdeadLine time.Time
}

var _ transport.Conn = (*Conn)(nil)
var _ transport.NetConner = (*Conn)(nil)

// WrapConn wraps c. It is also used for conns upgraded to TLS.
func WrapConn(c net.Conn, timeout TimeoutOptions) *Conn {
	return &Conn{c: c, timeout: timeout}
}

func (c *Conn) NetConn() net.Conn { return c.c }

// Timeout returns the per-operation timeouts of c.
func (c *Conn) Timeout() TimeoutOptions { return c.timeout }

func (c *Conn) Read(p []byte) (int, error) {
	if err := c.c.SetReadDeadline(c.deadLine(c.rdeadLine, c.timeout.Read)); err != nil {
		return 0, err
	}
	return c.c.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.c.SetWriteDeadline(c.deadLine(c.wdeadLine, c.timeout.Write)); err != nil {
		return 0, err
	}
	return c.c.Write(p)
}

// deadLine picks the earlier one between explicit deadline and per-operation timeout.
func (c *Conn) deadLine(explicit time.Time, timeout time.Duration) time.Time {
	if timeout <= 0 {
		return explicit
	}

	t := time.Now().Add(timeout)
	if !explicit.IsZero() && explicit.Before(t) {
		return explicit
	}
	return t
}

func (c *Conn) Close() error { return c.c.Close() }

func (c *Conn) LocalAddr() transport.Addr  { return fromNetAddr(c.c.LocalAddr()) }
func (c *Conn) RemoteAddr() transport.Addr { return fromNetAddr(c.c.RemoteAddr()) }

func (c *Conn) SetReadDeadLine(t time.Time)  { c.rdeadLine = t }
func (c *Conn) SetWriteDeadLine(t time.Time) { c.wdeadLine = t }

func fromNetAddr(a net.Addr) transport.Addr {
	if a == nil {
		return nil
	}

	host, portStr, err := net.SplitHostPort(a.String())
	if err != nil {
		return Addr{host: a.String()}
	}

	port, _ := strconv.ParseUint(portStr, 10, 16)
	return Addr{host: host, port: uint16(port)}
}
