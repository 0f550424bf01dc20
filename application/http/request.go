package http

import (
	"bytes"
	"io"
	"net/url"
	"strconv"
	"strings"

	"http-keepalive/application/util/rule"
	iolib "http-keepalive/lib/io"

	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

var (
	ErrUnsupportedScheme = errors.New("scheme is not supported")
	ErrInvalidMethod     = errors.New("method is not a valid token")
	ErrInvalidField      = errors.New("header field is invalid")
	ErrMissingBody       = errors.New("body is missing for non-zero content length")
)

// Request is an outgoing HTTP/1.x request.
type Request struct {
	Method  string
	URL     *url.URL
	Version Version
	Headers Headers

	// Body is optional.
	Body io.Reader
	// ContentLength is the length of Body.
	// If nil with non-nil Body, the body is sent with chunked transfer coding.
	ContentLength *uint

	// Proxy makes the request target absolute-form, as in requests sent to a proxy.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3.2.2
	Proxy bool

	EncodeOptions EncodeOptions
}

// NewRequest creates HTTP/1.1 request.
// Content length is set when body is one of [bytes.Buffer], [bytes.Reader] or [strings.Reader].
func NewRequest(method, rawURL string, body io.Reader) (*Request, error) {
	if !rule.IsValidToken(method) {
		return nil, errors.Wrapf(ErrInvalidMethod, "%q", method)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing url")
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Wrapf(ErrUnsupportedScheme, "%q", u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, errors.Errorf("url has no host: %q", rawURL)
	}
	if p := u.Port(); p != "" {
		if _, err := strconv.ParseUint(p, 10, 16); err != nil {
			return nil, errors.Wrapf(err, "invalid port %q", p)
		}
	}

	req := &Request{
		Method:        method,
		URL:           u,
		Version:       Version11,
		Body:          body,
		EncodeOptions: DefaultEncodeOptions,
	}

	var length int
	switch b := body.(type) {
	case *bytes.Buffer:
		length = b.Len()
	case *bytes.Reader:
		length = b.Len()
	case *strings.Reader:
		length = b.Len()
	default:
		return req, nil
	}

	l := uint(length)
	req.ContentLength = &l

	return req, nil
}

func (r *Request) Host() string     { return r.URL.Hostname() }
func (r *Request) URI() *url.URL    { return r.URL }
func (r *Request) UsingProxy() bool { return r.Proxy }

// ExpectsResponseBody reports false for HEAD.
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-9.3.2
func (r *Request) ExpectsResponseBody() bool { return r.Method != "HEAD" }

// Port returns explicit port of the uri, or the default one of the scheme.
func (r *Request) Port() uint16 {
	if p, err := strconv.ParseUint(r.URL.Port(), 10, 16); err == nil {
		return uint16(p)
	}

	if r.URL.Scheme == "https" {
		return 443
	}
	return 80
}

func (r *Request) target() string {
	if r.Proxy {
		u := *r.URL
		u.Fragment, u.RawFragment = "", ""
		u.User = nil
		return u.String()
	}
	return r.URL.RequestURI()
}

// Stream writes the request to w.
// Host and body framing fields are filled when absent.
func (r *Request) Stream(w io.Writer) error {
	if !rule.IsValidToken(r.Method) {
		return errors.Wrapf(ErrInvalidMethod, "%q", r.Method)
	}

	headers := r.Headers.Clone()
	for _, field := range headers.Fields() {
		if !httpguts.ValidHeaderFieldName(string(field.Name)) {
			return errors.Wrapf(ErrInvalidField, "name %q", field.Name)
		}
		if !httpguts.ValidHeaderFieldValue(string(field.Value)) {
			return errors.Wrapf(ErrInvalidField, "value of %q", field.Name)
		}
	}

	if !headers.Has("Host") {
		headers.Set("Host", r.URL.Host)
	}

	body, err := r.framedBody(&headers)
	if err != nil {
		return err
	}

	reqLine := requestLine{Method: r.Method, Target: r.target(), Version: r.Version}

	enc := NewRequestEncoder(w, r.EncodeOptions)
	if err := enc.Encode(reqLine, headers.Fields(), body); err != nil {
		return errors.Wrap(err, "encoding request")
	}

	return nil
}

// framedBody sets framing fields on headers and returns the body to be written.
func (r *Request) framedBody(headers *Headers) (io.Reader, error) {
	switch {
	case r.ContentLength != nil:
		length := *r.ContentLength
		headers.Del("Transfer-Encoding")
		headers.Set("Content-Length", strconv.FormatUint(uint64(length), 10))

		if length == 0 {
			return nil, nil
		}
		if r.Body == nil {
			return nil, ErrMissingBody
		}
		return iolib.LimitReader(r.Body, length), nil

	case r.Body != nil:
		headers.Del("Content-Length")
		headers.Set("Transfer-Encoding", "chunked")

		return iolib.NewMiddlewareReader(r.Body, func(w io.WriteCloser) io.WriteCloser {
			return NewChunkedWriter(w, nil)
		}), nil
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9110#section-8.6-5
	switch r.Method {
	case "POST", "PUT", "PATCH":
		headers.Set("Content-Length", "0")
	}
	return nil, nil
}
