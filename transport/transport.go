package transport

type Protocol string

const (
	TCP Protocol = "tcp"
	// UDP Protocol = "udp"
)

type Addr interface {
	Network() Protocol
	Identifier() any // Extra identifier (e.g. port)
	String() string
}
