package http

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type MessageEncoderTestSuite struct {
	suite.Suite
}

func TestMessageEncoderTestSuite(t *testing.T) {
	suite.Run(t, new(MessageEncoderTestSuite))
}

func (s *MessageEncoderTestSuite) TestWriteLine() {
	testcases := []struct {
		desc     string
		input    []byte
		opts     EncodeOptions
		expected string
		wantErr  bool
	}{
		{
			desc:     "simple line with CRLF",
			input:    []byte("Hello"),
			expected: "Hello\r\n",
		},
		{
			desc:     "simple line with LF",
			input:    []byte("Hello"),
			opts:     EncodeOptions{UseSoleLF: true},
			expected: "Hello\n",
		},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			var buf bytes.Buffer
			me := MessageEncoder{
				bw:   bufio.NewWriter(&buf),
				opts: tc.opts,
			}

			err := me.writeLine(tc.input)
			if tc.wantErr {
				s.Error(err)
				return
			}

			s.NoError(err)
			s.NoError(me.bw.Flush())

			s.Equal(tc.expected, buf.String())
		})
	}
}

func (s *MessageEncoderTestSuite) TestEncodeHeaders() {
	testcases := []struct {
		desc     string
		headers  []Field
		opts     EncodeOptions
		expected string
		wantErr  bool
	}{
		{
			desc: "simple headers with CRLF",
			headers: []Field{
				{Name: []byte("Host"), Value: []byte("example.com")},
			},
			expected: "" +
				"Host: example.com\r\n" +
				"\r\n",
		},
		{
			desc: "headers with LF",
			headers: []Field{
				{Name: []byte("Host"), Value: []byte("example.com")},
				{Name: []byte("Accept"), Value: []byte("*/*")},
			},
			opts: EncodeOptions{UseSoleLF: true},
			expected: "" +
				"Host: example.com\n" +
				"Accept: */*\n" +
				"\n",
		},
		{
			desc:     "empty headers",
			headers:  nil,
			expected: "\r\n",
		},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			var buf bytes.Buffer
			me := MessageEncoder{
				bw:   bufio.NewWriter(&buf),
				opts: tc.opts,
			}

			err := me.encodeHeaders(tc.headers)
			if tc.wantErr {
				s.Error(err)
				return
			}

			s.NoError(err)
			s.NoError(me.bw.Flush())

			s.Equal(tc.expected, buf.String())
		})
	}
}

type RequestEncoderTestSuite struct {
	suite.Suite
}

func TestRequestEncoderTestSuite(t *testing.T) {
	suite.Run(t, new(RequestEncoderTestSuite))
}

func (s *RequestEncoderTestSuite) TestEncode() {
	body := "field1=value1"

	reqLine := requestLine{
		Method:  "POST",
		Target:  "/example",
		Version: Version{1, 1},
	}
	headers := []Field{{Name: []byte("Host"), Value: []byte("example.com")}}

	expected := "" +
		"POST /example HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"\r\n" +
		body

	buf := bytes.NewBuffer(nil)
	re := NewRequestEncoder(buf, DefaultEncodeOptions)

	s.NoError(re.Encode(reqLine, headers, strings.NewReader(body)))

	s.Equal(expected, buf.String())
}

func (s *RequestEncoderTestSuite) TestEncodeWithoutBody() {
	reqLine := requestLine{Method: "GET", Target: "/", Version: Version10}

	buf := bytes.NewBuffer(nil)
	re := NewRequestEncoder(buf, DefaultEncodeOptions)

	s.NoError(re.Encode(reqLine, nil, nil))
	s.Equal("GET / HTTP/1.0\r\n\r\n", buf.String())
}

func (s *RequestEncoderTestSuite) TestEncodeRequestLine() {
	input := requestLine{
		Method:  "GET",
		Target:  "/example",
		Version: Version{1, 1},
	}

	expected := "GET /example HTTP/1.1\r\n"

	buf := bytes.NewBuffer(nil)
	re := NewRequestEncoder(buf, DefaultEncodeOptions)

	s.NoError(re.encodeRequestLine(input))
	s.NoError(re.bw.Flush())

	s.Equal(expected, buf.String())
}

type ResponseEncoderTestSuite struct {
	suite.Suite
}

func TestResponseEncoderTestSuite(t *testing.T) {
	suite.Run(t, new(ResponseEncoderTestSuite))
}

func (s *ResponseEncoderTestSuite) TestEncode() {
	body := "field1=value1"

	input := Response{
		Version:      Version{1, 1},
		StatusCode:   200,
		ReasonPhrase: "OK",
		Headers:      NewHeaders(map[string][]string{"Host": {"example.com"}}),
		Body:         strings.NewReader(body),
	}

	expected := "" +
		"HTTP/1.1 200 OK\r\n" +
		"Host: example.com\r\n" +
		"\r\n" +
		body

	buf := bytes.NewBuffer(nil)
	re := NewResponseEncoder(buf, DefaultEncodeOptions)

	s.NoError(re.Encode(input))

	s.Equal(expected, buf.String())
}

func (s *ResponseEncoderTestSuite) TestEncodeStatusLine() {
	input := statusLine{
		Version:      Version{1, 1},
		StatusCode:   200,
		ReasonPhrase: "OK",
	}

	expected := "HTTP/1.1 200 OK\r\n"

	buf := bytes.NewBuffer(nil)
	re := NewResponseEncoder(buf, DefaultEncodeOptions)

	s.NoError(re.encodeStatusLine(input))
	s.NoError(re.bw.Flush())

	s.Equal(expected, buf.String())
}

func (s *ResponseEncoderTestSuite) TestEncodeDefaultReason() {
	buf := bytes.NewBuffer(nil)
	re := NewResponseEncoder(buf, DefaultEncodeOptions)

	s.NoError(re.Encode(Response{Version: Version11, StatusCode: 404}))
	s.Equal("HTTP/1.1 404 Not Found\r\n\r\n", buf.String())

	buf.Reset()
	s.NoError(re.Encode(Response{Version: Version11, StatusCode: 299}))
	s.Equal("HTTP/1.1 299 \r\n\r\n", buf.String())
}
