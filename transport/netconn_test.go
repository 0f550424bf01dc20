package transport_test

import (
	"net"
	"testing"
	"time"

	"http-keepalive/transport"
	"http-keepalive/transport/pipe"
	"http-keepalive/transport/tcp"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsNetConnWrapsPipe(t *testing.T) {
	mock := clock.NewMock()
	c1, c2 := pipe.BufferedPipe("client", "server", mock, 64)
	defer c2.Close()

	nc := transport.AsNetConn(c1)
	assert.Equal(t, "pipe", nc.LocalAddr().Network())
	assert.Equal(t, "client", nc.LocalAddr().String())
	assert.Equal(t, "server", nc.RemoteAddr().String())

	_, err := nc.Write([]byte("hi"))
	require.NoError(t, err)

	b := make([]byte, 2)
	_, err = c2.Read(b)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(b))

	// Deadlines reach the underlying conn.
	require.NoError(t, nc.SetReadDeadline(mock.Now().Add(time.Second)))
	mock.Add(time.Second)
	_, err = nc.Read(b)
	assert.Equal(t, transport.KindTimeout, transport.KindOf(err))

	require.NoError(t, nc.Close())
}

func TestAsNetConnUnwraps(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()

	wrapped := tcp.WrapConn(a, tcp.TimeoutOptions{})
	assert.Same(t, a, transport.AsNetConn(wrapped))
	require.NoError(t, wrapped.Close())
}
