package http

import (
	"bytes"
	"strconv"
	"strings"

	"http-keepalive/application/util/rule"

	"github.com/pkg/errors"
)

type DecodeOptions struct {
	// AllowSoleLF specifies wheter a single LF character should be recognized as a valid line terminator.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-3
	AllowSoleLF bool

	// LenientWhitespace replaces all [whitespaces] into [SP].
	// And also trims preceding and trailinig whitespace.
	//
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-3-3
	LenientWhitespace bool

	// MaxFieldLineLength sets the limit of field line length on headers and trailers.
	// Zero means no limit.
	MaxFieldLineLength uint

	// MaxStatusLineLength sets the limit of status line length.
	// Zero means no limit.
	MaxStatusLineLength uint
}

var DefaultDecodeOptions = DecodeOptions{
	AllowSoleLF:         false,
	LenientWhitespace:   false,
	MaxFieldLineLength:  8192,
	MaxStatusLineLength: 8192,
}

var (
	errLineTooLong       = errors.New("line length exceeeds limit")
	ErrMissingCRBeforeLF = errors.New("missing CR before LF")

	ErrStatusLineTooLong   = errors.New("status line length exceeds limit")
	ErrMalformedStatusLine = errors.New("status line is malformed")

	ErrFieldLineTooLong   = errors.New("field line length exceeds limit")
	ErrMalformedFieldLine = errors.New("field line is malformed")

	ErrBadContentLength = errors.New("content-length is invalid")
	ErrMalformedChunk   = errors.New("chunk is malformed")

	ErrIncompleteMessage = errors.New("stream ended before message completed")
)

type parsePhase uint8

const (
	phaseStatusLine parsePhase = iota
	phaseHeaders
	phaseBody
	phaseDone
)

type framing uint8

const (
	framingNone framing = iota
	framingLength
	framingChunked
	framingClose // Body is delimited by the end of the stream.
)

// ResponseParser is an incremental HTTP/1.x response parser.
// Raw bytes are pushed with [ResponseParser.Feed] and the decoded body is
// pulled with [ResponseParser.Read]. It never reads from a stream by itself.
//
// Bytes fed after the message completed are kept for the next message, see [ResponseParser.Reset].
type ResponseParser struct {
	opts DecodeOptions

	in  []byte // Raw bytes not consumed yet.
	out []byte // Decoded body bytes not read yet.

	phase  parsePhase
	status statusLine
	fields []Field

	headers  Headers
	trailers []Field

	framing   framing
	remaining uint64 // Remaining bytes of content or current chunk.
	chunk     chunkPhase

	noBody bool // Response to a request like HEAD.

	err error // Sticky.
}

func NewResponseParser(opts DecodeOptions) *ResponseParser {
	return &ResponseParser{opts: opts}
}

// Feed pushes raw bytes into the parser.
// Once it fails, the parser keeps returning the same error until reset.
func (p *ResponseParser) Feed(b []byte) error {
	if p.err != nil {
		return p.err
	}

	p.in = append(p.in, b...)

	if p.phase == phaseDone {
		return nil
	}

	if err := p.process(); err != nil {
		p.err = err
		return err
	}

	return nil
}

// Terminate tells the parser that the stream has ended.
// A body delimited by the end of the stream completes here.
// Otherwise, an unfinished message results in [ErrIncompleteMessage].
func (p *ResponseParser) Terminate() error {
	if p.phase == phaseDone {
		return nil
	}

	incomplete := p.phase != phaseBody || p.framing != framingClose
	p.phase = phaseDone

	if incomplete {
		p.err = ErrIncompleteMessage
		return p.err
	}
	return nil
}

// Reset prepares the parser for the next message.
// Unconsumed raw bytes are kept and parsed as the start of it.
func (p *ResponseParser) Reset() {
	*p = ResponseParser{opts: p.opts, in: p.in}

	if len(p.in) > 0 {
		p.err = p.process()
	}
}

// ExpectNoBody makes the final response of the current message bodyless
// regardless of its framing fields, as for a response to HEAD.
// It must be called before the headers are parsed and is cleared by [ResponseParser.Reset].
//
// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3-2.1
func (p *ResponseParser) ExpectNoBody() { p.noBody = true }

func (p *ResponseParser) HeadersComplete() bool { return p.phase >= phaseBody }
func (p *ResponseParser) Finished() bool        { return p.phase == phaseDone }

func (p *ResponseParser) Version() Version     { return p.status.Version }
func (p *ResponseParser) StatusCode() uint     { return p.status.StatusCode }
func (p *ResponseParser) ReasonPhrase() string { return p.status.ReasonPhrase }

// Fields returns raw header fields in received order.
func (p *ResponseParser) Fields() []Field { return p.fields }
func (p *ResponseParser) Headers() Headers {
	return p.headers.Clone()
}

// Trailers returns fields received after the last chunk.
func (p *ResponseParser) Trailers() []Field { return p.trailers }

// Buffered returns the number of decoded body bytes waiting to be read.
func (p *ResponseParser) Buffered() int { return len(p.out) }

// Read takes at most max decoded body bytes. max <= 0 takes all of them.
func (p *ResponseParser) Read(max int) []byte {
	n := len(p.out)
	if max > 0 && max < n {
		n = max
	}
	if n == 0 {
		return nil
	}

	b := bytes.Clone(p.out[:n])
	p.out = p.out[n:]
	if len(p.out) == 0 {
		p.out = nil
	}
	return b
}

func (p *ResponseParser) process() error {
	for p.phase != phaseDone {
		progressed, err := p.step()
		if err != nil {
			return err
		}
		if !progressed {
			break
		}
	}
	return nil
}

func (p *ResponseParser) step() (bool, error) {
	switch p.phase {
	case phaseStatusLine:
		return p.parseStatusLine()
	case phaseHeaders:
		return p.parseFieldLine()
	case phaseBody:
		switch p.framing {
		case framingLength:
			return p.readContent(), nil
		case framingChunked:
			return p.readChunked()
		case framingClose:
			return p.readUntilClose(), nil
		}
	}
	return false, nil
}

func (p *ResponseParser) parseStatusLine() (bool, error) {
	line, ok, err := p.readLine(p.opts.MaxStatusLineLength)
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			return false, ErrStatusLineTooLong
		}
		return false, errors.Wrap(err, "reading status line")
	}
	if !ok {
		return false, nil
	}

	// An empty line can be received before message.
	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-6
	if len(line) == 0 {
		return true, nil
	}

	parsed, err := parseStatusLine(line)
	if err != nil {
		return false, ErrMalformedStatusLine
	}

	p.status = parsed
	p.phase = phaseHeaders
	return true, nil
}

func (p *ResponseParser) parseFieldLine() (bool, error) {
	line, ok, err := p.readLine(p.opts.MaxFieldLineLength)
	if err != nil {
		if errors.Is(err, errLineTooLong) {
			return false, ErrFieldLineTooLong
		}
		return false, errors.Wrap(err, "reading field line")
	}
	if !ok {
		return false, nil
	}

	if len(line) == 0 {
		// An empty line. This means that there are no more headers.
		return true, p.endHeaders()
	}

	field, err := ParseField(line)
	if err != nil {
		return false, ErrMalformedFieldLine
	}

	p.fields = append(p.fields, field)
	return true, nil
}

func (p *ResponseParser) endHeaders() error {
	code := p.status.StatusCode

	// Interim responses are skipped, the final one follows.
	// 101 is final for this connection.
	if code >= 100 && code < 200 && code != 101 {
		p.status = statusLine{}
		p.fields = nil
		p.phase = phaseStatusLine
		return nil
	}

	p.headers = HeadersFrom(p.fields)

	var (
		fr     framing
		length uint64
	)
	if !p.noBody {
		var err error
		if fr, length, err = bodyFraming(code, &p.headers); err != nil {
			return err
		}
	}

	p.framing, p.remaining = fr, length
	p.phase = phaseBody
	if fr == framingNone {
		p.phase = phaseDone
	}
	return nil
}

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-6.3
func bodyFraming(statusCode uint, headers *Headers) (framing, uint64, error) {
	if statusCode < 200 || statusCode == 204 || statusCode == 304 {
		return framingNone, 0, nil
	}

	if te := headers.Values("Transfer-Encoding"); len(te) > 0 {
		codings := splitList(te)
		if len(codings) > 0 && strings.EqualFold(codings[len(codings)-1], "chunked") {
			return framingChunked, 0, nil
		}
		return framingClose, 0, nil
	}

	if cl := headers.Values("Content-Length"); len(cl) > 0 {
		length, err := parseContentLength(cl)
		if err != nil {
			return framingNone, 0, err
		}
		if length == 0 {
			return framingNone, 0, nil
		}
		return framingLength, length, nil
	}

	return framingClose, 0, nil
}

// parseContentLength accepts repeated values only when they are all the same.
func parseContentLength(values []string) (uint64, error) {
	var (
		length uint64
		seen   bool
	)
	for _, v := range splitList(values) {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return 0, errors.Wrapf(ErrBadContentLength, "%q", v)
		}
		if seen && n != length {
			return 0, errors.Wrapf(ErrBadContentLength, "conflicting values %d and %d", length, n)
		}
		length, seen = n, true
	}
	if !seen {
		return 0, ErrBadContentLength
	}
	return length, nil
}

func splitList(values []string) []string {
	elems := make([]string, 0, len(values))
	for _, v := range values {
		for _, elem := range strings.Split(v, ",") {
			elem = strings.Trim(elem, string(rule.OWS))
			if elem != "" {
				elems = append(elems, elem)
			}
		}
	}
	return elems
}

func (p *ResponseParser) readContent() bool {
	if len(p.in) == 0 {
		return false
	}

	n := min(uint64(len(p.in)), p.remaining)
	p.out = append(p.out, p.in[:n]...)
	p.consume(int(n))

	p.remaining -= n
	if p.remaining == 0 {
		p.phase = phaseDone
	}
	return true
}

func (p *ResponseParser) readUntilClose() bool {
	if len(p.in) == 0 {
		return false
	}

	p.out = append(p.out, p.in...)
	p.consume(len(p.in))
	return true
}

// readLine takes a line from the raw input, without its terminator.
// ok is false when a whole line is not fed yet.
func (p *ResponseParser) readLine(limit uint) (line []byte, ok bool, err error) {
	i := bytes.IndexByte(p.in, rule.LF)
	if i < 0 {
		if limit > 0 && uint(len(p.in)) > limit {
			return nil, false, errLineTooLong
		}
		return nil, false, nil
	}

	if limit > 0 && uint(i+1) > limit {
		return nil, false, errLineTooLong
	}

	b := p.in[:i] // Remove LF.
	p.consume(i + 1)

	if len(b) > 0 && b[len(b)-1] == rule.CR {
		b = b[:len(b)-1] // Remove CR.
	} else if !p.opts.AllowSoleLF {
		return nil, false, ErrMissingCRBeforeLF
	}

	if p.opts.LenientWhitespace {
		for _, c := range rule.Whitespaces {
			b = bytes.ReplaceAll(b, []byte{c}, []byte{rule.SP})
		}
		b = bytes.Trim(b, string([]byte{rule.SP}))

		return b, true, nil
	}

	// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-2.2-4
	b = bytes.ReplaceAll(b, []byte{rule.CR}, []byte{rule.SP})

	return b, true, nil
}

func (p *ResponseParser) consume(n int) {
	p.in = p.in[n:]
	if len(p.in) == 0 {
		p.in = nil
	}
}
