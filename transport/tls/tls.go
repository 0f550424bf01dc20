// Package tls upgrades an already connected transport into a TLS client session.
package tls

import (
	"context"
	gotls "crypto/tls"
	"net"

	"http-keepalive/transport"
	"http-keepalive/transport/tcp"

	"github.com/pkg/errors"
)

// Upgrader performs a client handshake on top of conn.
// conn must not be used by the caller after a successful upgrade.
type Upgrader interface {
	Upgrade(ctx context.Context, conn transport.Conn, serverName string, config *gotls.Config) (transport.Conn, error)
}

// UpgraderFunc lets an ordinary function act as an [Upgrader].
type UpgraderFunc func(ctx context.Context, conn transport.Conn, serverName string, config *gotls.Config) (transport.Conn, error)

func (f UpgraderFunc) Upgrade(ctx context.Context, conn transport.Conn, serverName string, config *gotls.Config) (transport.Conn, error) {
	return f(ctx, conn, serverName, config)
}

type stdUpgrader struct{}

var _ Upgrader = stdUpgrader{}

// NewStdUpgrader upgrades with crypto/tls.
func NewStdUpgrader() Upgrader { return stdUpgrader{} }

func (stdUpgrader) Upgrade(ctx context.Context, conn transport.Conn, serverName string, config *gotls.Config) (transport.Conn, error) {
	cfg := clientConfig(config, serverName)

	tc := gotls.Client(transport.AsNetConn(conn), cfg)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrap(err, "tls handshake")
	}

	return rewrap(conn, tc), nil
}

// clientConfig fills ServerName and restricts ALPN to http/1.1.
func clientConfig(config *gotls.Config, serverName string) *gotls.Config {
	if config == nil {
		config = &gotls.Config{}
	}

	cfg := config.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	cfg.NextProtos = []string{"http/1.1"}

	return cfg
}

// rewrap keeps per-operation timeouts of the original conn on the upgraded one.
func rewrap(orig transport.Conn, upgraded net.Conn) transport.Conn {
	var timeout tcp.TimeoutOptions
	if c, ok := orig.(*tcp.Conn); ok {
		timeout = c.Timeout()
	}
	return tcp.WrapConn(upgraded, timeout)
}
