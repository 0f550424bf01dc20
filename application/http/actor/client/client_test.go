package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"http-keepalive/application/http"
	"http-keepalive/transport"
	"http-keepalive/transport/pipe"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

// testServer answers requests on a pipe listener.
// "/close" gets "Connection: close" and the connection is closed after the response.
// HEAD gets the headers of GET without the body.
type testServer struct {
	listener *pipe.Listener
	accepted atomic.Int32

	mu       sync.Mutex
	requests []string

	wg sync.WaitGroup
}

func startTestServer(tp *pipe.Transport, name string) (*testServer, error) {
	lis, err := tp.Listen(pipe.Addr{Name: name})
	if err != nil {
		return nil, err
	}

	srv := &testServer{listener: lis}
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		for {
			conn, err := lis.Accept(context.Background())
			if err != nil {
				return
			}
			srv.accepted.Add(1)

			srv.wg.Add(1)
			go func() {
				defer srv.wg.Done()
				srv.serve(conn)
			}()
		}
	}()

	return srv, nil
}

func (srv *testServer) serve(conn transport.Conn) {
	defer conn.Close()

	br := bufio.NewReader(conn)
	for {
		reqLine, err := br.ReadString('\n')
		if err != nil {
			return
		}
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if line == "\r\n" {
				break
			}
		}

		reqLine = strings.TrimSpace(reqLine)
		srv.mu.Lock()
		srv.requests = append(srv.requests, reqLine)
		srv.mu.Unlock()

		method, target := strings.Fields(reqLine)[0], strings.Fields(reqLine)[1]
		body := "you asked " + target

		closing := target == "/close"
		connection := "keep-alive"
		if closing {
			connection = "close"
		}

		res := fmt.Sprintf("HTTP/1.1 200 OK\r\nConnection: %s\r\nContent-Length: %d\r\n\r\n", connection, len(body))
		if method != "HEAD" {
			res += body
		}
		if _, err := io.WriteString(conn, res); err != nil {
			return
		}

		if closing {
			return
		}
	}
}

func (srv *testServer) close() {
	_ = srv.listener.Close()
	srv.wg.Wait()
}

type ClientTestSuite struct {
	suite.Suite

	ctx   context.Context
	clock *clock.Mock
	opts  Options

	transport *pipe.Transport
	server    *testServer
	client    *Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewMock()
	s.transport = pipe.NewTransport(s.clock, 4096)

	srv, err := startTestServer(s.transport, "example.com:80")
	s.Require().NoError(err)
	s.server = srv

	s.opts = DefaultOptions()
	s.opts.Persistent = true
	s.opts.Dialer = s.transport
	s.client = NewClient(nil, s.clock, s.opts)
}

func (s *ClientTestSuite) TearDownTest() {
	s.NoError(s.client.Close())
	s.server.close()
	goleak.VerifyNone(s.T())
}

func (s *ClientTestSuite) do(rawURL string) *Response {
	req, err := http.NewRequest("GET", rawURL, nil)
	s.Require().NoError(err)

	res, err := s.client.Do(s.ctx, req)
	s.Require().NoError(err)
	return res
}

func (s *ClientTestSuite) readAll(res *Response) string {
	b, err := io.ReadAll(res.Body)
	s.Require().NoError(err)
	return string(b)
}

func (s *ClientTestSuite) TestReuse() {
	res := s.do("http://example.com/a")
	s.Equal(uint(200), res.Status)
	s.Equal("OK", res.Reason)
	s.Equal(http.Version11, res.Version)
	s.Equal("you asked /a", s.readAll(res))

	res = s.do("http://example.com/b")
	s.Equal("you asked /b", s.readAll(res))

	s.Equal(int32(1), s.server.accepted.Load())
}

func (s *ClientTestSuite) TestHeadThenReuse() {
	req, err := http.NewRequest("HEAD", "http://example.com/head", nil)
	s.Require().NoError(err)

	res, err := s.client.Do(s.ctx, req)
	s.Require().NoError(err)
	s.Equal(uint(200), res.Status)
	length, _ := res.Headers.Get("Content-Length")
	s.Equal("15", length)
	s.Empty(s.readAll(res))

	res = s.do("http://example.com/next")
	s.Equal("you asked /next", s.readAll(res))

	s.Equal(int32(1), s.server.accepted.Load())
}

func (s *ClientTestSuite) TestUnreadBodyIsDiscarded() {
	s.do("http://example.com/unread")

	res := s.do("http://example.com/next")
	s.Equal("you asked /next", s.readAll(res))

	s.Equal(int32(1), s.server.accepted.Load())
}

func (s *ClientTestSuite) TestConnectionClose() {
	res := s.do("http://example.com/close")
	s.Equal("you asked /close", s.readAll(res))

	connection, _ := res.Headers.Get("Connection")
	s.Equal("close", connection)

	res = s.do("http://example.com/after")
	s.Equal("you asked /after", s.readAll(res))

	s.Equal(int32(2), s.server.accepted.Load())
}

func (s *ClientTestSuite) TestNotPersistent() {
	s.opts.Persistent = false
	s.client = NewClient(nil, s.clock, s.opts)

	s.readAll(s.do("http://example.com/1"))
	s.readAll(s.do("http://example.com/2"))

	s.Equal(int32(2), s.server.accepted.Load())
}

func (s *ClientTestSuite) TestExpired() {
	s.opts.KeepAliveTimeout = time.Second
	s.client = NewClient(nil, s.clock, s.opts)

	s.readAll(s.do("http://example.com/1"))
	s.clock.Add(2 * time.Second)
	s.readAll(s.do("http://example.com/2"))

	s.Equal(int32(2), s.server.accepted.Load())
}

func (s *ClientTestSuite) TestDifferentHost() {
	other, err := startTestServer(s.transport, "other.test:80")
	s.Require().NoError(err)
	defer other.close()

	s.readAll(s.do("http://example.com/1"))
	s.Equal("you asked /2", s.readAll(s.do("http://other.test/2")))

	s.Equal(int32(1), s.server.accepted.Load())
	s.Equal(int32(1), other.accepted.Load())

	// Connection to other.test must be closed before its server stops.
	s.NoError(s.client.Close())
}

func (s *ClientTestSuite) TestDialRefused() {
	req, err := http.NewRequest("GET", "http://nowhere.test/", nil)
	s.Require().NoError(err)

	res, err := s.client.Do(s.ctx, req)
	s.Nil(res)
	s.ErrorIs(err, transport.ErrConnRefused)
}

func (s *ClientTestSuite) TestBodyAfterClose() {
	res := s.do("http://example.com/a")
	s.NoError(s.client.Close())

	b, err := io.ReadAll(res.Body)
	s.NoError(err)
	s.Empty(b)
}
