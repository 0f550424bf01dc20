package transport

import (
	"net"
	"time"
)

// NetConner is implemented by conns that already sit on top of a [net.Conn].
type NetConner interface {
	NetConn() net.Conn
}

// AsNetConn exposes c as a [net.Conn], mainly for TLS libraries that only accept one.
// If c already wraps a [net.Conn], it will be returned as is.
func AsNetConn(c Conn) net.Conn {
	if nc, ok := c.(NetConner); ok {
		return nc.NetConn()
	}
	return &netConn{c: c}
}

type netConn struct{ c Conn }

var _ net.Conn = (*netConn)(nil)

func (n *netConn) Read(b []byte) (int, error)  { return n.c.Read(b) }
func (n *netConn) Write(b []byte) (int, error) { return n.c.Write(b) }
func (n *netConn) Close() error                { return n.c.Close() }

func (n *netConn) LocalAddr() net.Addr  { return netAddr{n.c.LocalAddr()} }
func (n *netConn) RemoteAddr() net.Addr { return netAddr{n.c.RemoteAddr()} }

func (n *netConn) SetDeadline(t time.Time) error {
	n.c.SetReadDeadLine(t)
	n.c.SetWriteDeadLine(t)
	return nil
}

func (n *netConn) SetReadDeadline(t time.Time) error {
	n.c.SetReadDeadLine(t)
	return nil
}

func (n *netConn) SetWriteDeadline(t time.Time) error {
	n.c.SetWriteDeadLine(t)
	return nil
}

type netAddr struct{ a Addr }

func (a netAddr) Network() string {
	if a.a == nil {
		return ""
	}
	return string(a.a.Network())
}

func (a netAddr) String() string {
	if a.a == nil {
		return ""
	}
	return a.a.String()
}
