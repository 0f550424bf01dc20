package http

import (
	"bytes"
	"io"
	"math/big"
	"strconv"

	"http-keepalive/application/util/rule"

	"github.com/pkg/errors"
)

// Reference: https://datatracker.ietf.org/doc/html/rfc9112#section-7.1
type chunkPhase uint8

const (
	chunkSize chunkPhase = iota
	chunkData
	chunkDelimiter
	chunkTrailers
)

// readChunked decodes chunked body. Extensions are ignored, trailers are kept.
func (p *ResponseParser) readChunked() (bool, error) {
	switch p.chunk {
	case chunkSize:
		line, ok, err := p.readLine(p.opts.MaxFieldLineLength)
		if err != nil {
			return false, errors.Wrap(ErrMalformedChunk, err.Error())
		}
		if !ok {
			return false, nil
		}

		size, _, err := decodeChunkHeader(line)
		if err != nil {
			return false, errors.Wrap(ErrMalformedChunk, err.Error())
		}

		if size == 0 {
			// Last chunk.
			p.chunk = chunkTrailers
			return true, nil
		}

		p.remaining = size
		p.chunk = chunkData

	case chunkData:
		if len(p.in) == 0 {
			return false, nil
		}

		n := min(uint64(len(p.in)), p.remaining)
		p.out = append(p.out, p.in[:n]...)
		p.consume(int(n))

		p.remaining -= n
		if p.remaining == 0 {
			p.chunk = chunkDelimiter
		}

	case chunkDelimiter:
		line, ok, err := p.readLine(uint(len(rule.CRLF)))
		if err != nil {
			return false, errors.Wrap(ErrMalformedChunk, "CRLF delimiter not found")
		}
		if !ok {
			return false, nil
		}
		if len(line) != 0 {
			return false, errors.Wrap(ErrMalformedChunk, "CRLF delimiter not found")
		}

		p.chunk = chunkSize

	case chunkTrailers:
		line, ok, err := p.readLine(p.opts.MaxFieldLineLength)
		if err != nil {
			if errors.Is(err, errLineTooLong) {
				return false, ErrFieldLineTooLong
			}
			return false, errors.Wrap(err, "reading trailer")
		}
		if !ok {
			return false, nil
		}

		if len(line) == 0 {
			// Last field.
			p.phase = phaseDone
			return true, nil
		}

		field, err := ParseField(line)
		if err != nil {
			return false, ErrMalformedFieldLine
		}

		p.trailers = append(p.trailers, field)
	}

	return true, nil
}

// decodeChunkHeader parses chunk-size and chunk-ext.
func decodeChunkHeader(line []byte) (uint64, [][2]string, error) {
	parts := bytes.Split(line, []byte{';'})

	sizeRaw := bytes.TrimFunc(parts[0], rule.IsWhitespace)
	size, err := decodeChunkSize(sizeRaw)
	if err != nil {
		return 0, nil, errors.Wrap(err, "decoding chunk size")
	}

	extensions := make([][2]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		k, v, _ := bytes.Cut(part, []byte{'='})
		// Trim BWS.
		k = bytes.TrimFunc(k, rule.IsWhitespace)
		v = bytes.TrimFunc(v, rule.IsWhitespace)

		if !rule.IsValidToken(string(k)) {
			return 0, nil, errors.Errorf("invalid extension name: %q", string(k))
		}

		extensions = append(extensions, [2]string{
			string(k),
			string(rule.Unquote(v)),
		})
	}

	return size, extensions, nil
}

func decodeChunkSize(b []byte) (uint64, error) {
	// big.Int accepts sign, but chunk-size is 1*HEXDIG.
	if len(b) == 0 || b[0] == '+' || b[0] == '-' {
		return 0, errors.Errorf("failed to deocode hex: %q", string(b))
	}

	n, ok := new(big.Int).SetString(string(b), 16)
	if !ok {
		return 0, errors.Errorf("failed to deocode hex: %q", string(b))
	}

	if n.BitLen() > 64 {
		return 0, errors.Errorf("chunk size larger than 64bit: %dbits", n.BitLen())
	}

	return n.Uint64(), nil
}


// ChunkedWriter encodes written bytes into chunks.
// Close writes the last chunk and trailers.
type ChunkedWriter struct {
	w         io.Writer
	headerBuf *bytes.Buffer

	extensions [][2]string
	trailers   []Field
}

var _ io.WriteCloser = (*ChunkedWriter)(nil)

func NewChunkedWriter(w io.Writer, trailers []Field) *ChunkedWriter {
	return &ChunkedWriter{
		w:         w,
		headerBuf: bytes.NewBuffer(nil),
		trailers:  trailers,
	}
}

// SetExtensions sets extension to the chunk.
// extension lives until [ChunkedWriter.Write].
func (cw *ChunkedWriter) SetExtensions(extensions [][2]string) {
	cw.extensions = extensions
}

func (cw *ChunkedWriter) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		// We should ignore 0 length chunks since it means EOF.
		return 0, nil
	}

	n, err = cw.encodeChunk(p)
	cw.extensions = nil
	if err != nil {
		return n, errors.Wrap(err, "encoding chunk")
	}

	return n, nil
}

func (cw *ChunkedWriter) Close() error {
	if _, err := cw.encodeChunk(nil); err != nil {
		return errors.Wrap(err, "encoding last chunk")
	}

	for _, field := range cw.trailers {
		if err := writeLine(cw.w, field.Text()); err != nil {
			return errors.Wrap(err, "writing trailer")
		}
	}

	if err := writeLine(cw.w, nil); err != nil {
		return errors.Wrap(err, "writing last trailer line")
	}

	return nil
}

func (cw *ChunkedWriter) encodeChunk(data []byte) (int, error) {
	// size and extensions
	buf := cw.headerBuf
	buf.Reset()
	buf.WriteString(strconv.FormatUint(uint64(len(data)), 16))
	for _, ext := range cw.extensions {
		buf.WriteByte(';')
		buf.WriteString(ext[0])
		buf.WriteByte('=')
		buf.WriteString(ext[1])
	}

	if err := writeLine(cw.w, buf.Bytes()); err != nil {
		return 0, errors.Wrap(err, "writing chunk header")
	}

	if len(data) == 0 {
		// Last chunk. only write header.
		return 0, nil
	}

	n, err := cw.w.Write(data)
	if err != nil {
		return n, errors.Wrap(err, "writing data")
	}

	if _, err := cw.w.Write(rule.CRLF); err != nil {
		return n, errors.Wrap(err, "writing chunk delimiter")
	}

	return n, nil
}

func writeLine(w io.Writer, line []byte) error {
	if _, err := w.Write(append(bytes.Clone(line), rule.CRLF...)); err != nil {
		return errors.Wrap(err, "writing line")
	}
	return nil
}
