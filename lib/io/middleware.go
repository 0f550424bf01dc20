package iolib

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// MiddlewareReader reads src through a writer middleware, such as a transfer coding.
// The middleware is closed once src is drained.
type MiddlewareReader struct {
	src  io.Reader
	buf  *bytes.Buffer
	bufw io.WriteCloser

	srcDone bool
}

func NewMiddlewareReader(
	src io.Reader, middleware func(io.WriteCloser) io.WriteCloser,
) *MiddlewareReader {
	mr := &MiddlewareReader{
		src: src,
		buf: bytes.NewBuffer(nil),
	}
	mr.bufw = middleware(NopWriteCloser(mr.buf))
	return mr
}

func (mr *MiddlewareReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}

	for mr.buf.Len() == 0 && !mr.srcDone {
		n, err := mr.src.Read(p)
		if err != nil && err != io.EOF {
			return 0, errors.Wrap(err, "reading from source")
		}

		for written := 0; written < n; {
			nn, err := mr.bufw.Write(p[written:n])
			if err != nil {
				return 0, errors.Wrap(err, "failed to write")
			}
			written += nn
		}

		if err == io.EOF {
			mr.srcDone = true
			if err := mr.bufw.Close(); err != nil {
				return 0, errors.Wrap(err, "failed to close middleware")
			}
		}
	}

	return mr.buf.Read(p)
}
