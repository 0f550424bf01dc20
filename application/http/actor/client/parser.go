package client

import (
	"io"
	"net/url"

	"http-keepalive/application/http"
)

// Parser is an incremental response parser owned by a [Conn].
type Parser interface {
	Feed(b []byte) error
	// Terminate signals the end of the stream.
	Terminate() error
	Reset()
	// ExpectNoBody makes the current response bodyless, as for HEAD.
	ExpectNoBody()

	HeadersComplete() bool
	Finished() bool

	Version() http.Version
	StatusCode() uint
	ReasonPhrase() string
	Headers() http.Headers

	// Read takes at most max decoded body bytes.
	Read(max int) []byte
	Buffered() int
}

var _ Parser = (*http.ResponseParser)(nil)

// Request is an outgoing request.
type Request interface {
	Host() string
	Port() uint16
	URI() *url.URL
	UsingProxy() bool
	// ExpectsResponseBody is false when the response carries no body whatever its framing fields say.
	ExpectsResponseBody() bool
	Stream(w io.Writer) error
}

var _ Request = (*http.Request)(nil)
