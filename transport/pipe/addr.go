// Package pipe provides in-memory transports.
// They stand in for the network in tests, with deadlines driven by an injected clock.
package pipe

import "http-keepalive/transport"

// Addr names one end of a pipe.
type Addr struct {
	Name string
}

var _ transport.Addr = Addr{}

func (p Addr) Network() transport.Protocol { return "pipe" }
func (p Addr) Identifier() any             { return p.Name }
func (p Addr) String() string              { return p.Name }
