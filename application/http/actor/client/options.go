package client

import (
	gotls "crypto/tls"
	"time"

	"http-keepalive/application/http"
	"http-keepalive/application/util/domain"
	"http-keepalive/transport"
	"http-keepalive/transport/tcp"
	"http-keepalive/transport/tls"
)

const DefaultBufferSize = 16 * 1024

type Options struct {
	// Persistent allows reusing the connection after a response.
	Persistent bool
	// KeepAliveTimeout is how long an idle persistent connection stays reusable.
	// Zero makes it expire as soon as a response is finished.
	KeepAliveTimeout time.Duration

	// BufferSize is the read size used when the caller does not specify one.
	BufferSize int

	// Dialer opens transports. If nil, a [tcp.Dialer] with Lookuper and Timeout is used.
	Dialer   transport.ConnDialer
	Lookuper domain.Lookuper
	Timeout  tcp.TimeoutOptions

	TLS TLSOptions

	// NewParser creates the response parser. If nil, [http.ResponseParser] with Decode is used.
	NewParser func() Parser
	Decode    http.DecodeOptions
}

type TLSOptions struct {
	// Upgrader defaults to [tls.NewStdUpgrader].
	Upgrader tls.Upgrader
	Config   *gotls.Config
}

func DefaultOptions() Options {
	return Options{
		Persistent:       false,
		KeepAliveTimeout: 5 * time.Second,
		BufferSize:       DefaultBufferSize,
		Decode:           http.DefaultDecodeOptions,
	}
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Dialer == nil {
		o.Dialer = tcp.NewDialer(o.Lookuper, o.Timeout)
	}
	if o.TLS.Upgrader == nil {
		o.TLS.Upgrader = tls.NewStdUpgrader()
	}
	if o.NewParser == nil {
		decode := o.Decode
		o.NewParser = func() Parser { return http.NewResponseParser(decode) }
	}
	return o
}
