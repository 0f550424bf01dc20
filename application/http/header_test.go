package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

func TestToCanonicalFieldName(t *testing.T) {
	testcases := []struct {
		input, expected string
	}{
		{input: "content-type", expected: "Content-Type"},
		{input: "CONNECTION", expected: "Connection"},
		{input: "x-FORWARDED-for", expected: "X-Forwarded-For"},
		{input: "te", expected: "Te"},
	}
	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, toCanonicalFieldName(tc.input))
		})
	}
}

type HeadersTestSuite struct {
	suite.Suite

	headers Headers
}

func TestHeadersTestSuite(t *testing.T) {
	suite.Run(t, new(HeadersTestSuite))
}

func (s *HeadersTestSuite) SetupTest() {
	s.headers = HeadersFrom([]Field{
		{Name: []byte("connection"), Value: []byte("keep-alive")},
		{Name: []byte("Set-Cookie"), Value: []byte("a=1")},
		{Name: []byte("set-cookie"), Value: []byte("b=2")},
	})
}

func (s *HeadersTestSuite) TestGet() {
	v, ok := s.headers.Get("CONNECTION")
	s.True(ok)
	s.Equal("keep-alive", v)

	v, ok = s.headers.Get("Set-Cookie")
	s.True(ok)
	s.Equal("a=1", v)

	_, ok = s.headers.Get("Host")
	s.False(ok)
}

func (s *HeadersTestSuite) TestValues() {
	s.Equal([]string{"a=1", "b=2"}, s.headers.Values("set-cookie"))
	s.Nil(s.headers.Values("Host"))
}

func (s *HeadersTestSuite) TestSetAddDel() {
	s.headers.Set("Set-Cookie", "c=3")
	s.Equal([]string{"c=3"}, s.headers.Values("Set-Cookie"))

	s.headers.Add("Host", "example.com")
	s.True(s.headers.Has("host"))
	s.Equal(3, s.headers.Len())

	s.headers.Del("connection")
	s.False(s.headers.Has("Connection"))
	s.Equal(2, s.headers.Len())
}

func (s *HeadersTestSuite) TestFieldsOrder() {
	fields := s.headers.Fields()
	s.Equal([]Field{
		{Name: []byte("Connection"), Value: []byte("keep-alive")},
		{Name: []byte("Set-Cookie"), Value: []byte("a=1")},
		{Name: []byte("Set-Cookie"), Value: []byte("b=2")},
	}, fields)
}

func (s *HeadersTestSuite) TestCloneIsDeep() {
	clone := s.headers.Clone()
	clone.Add("Set-Cookie", "z=9")

	s.Len(s.headers.Values("Set-Cookie"), 2)
	s.Len(clone.Values("Set-Cookie"), 3)
}

func (s *HeadersTestSuite) TestZeroValue() {
	var h Headers
	_, ok := h.Get("Host")
	s.False(ok)

	h.Set("Host", "example.com")
	v, ok := h.Get("host")
	s.True(ok)
	s.Equal("example.com", v)
}

func TestNewHeadersIsSorted(t *testing.T) {
	h := NewHeaders(map[string][]string{
		"b-field": {"2"},
		"a-field": {"1"},
	})

	fields := h.Fields()
	assert.Equal(t, "A-Field", string(fields[0].Name))
	assert.Equal(t, "B-Field", string(fields[1].Name))
}
