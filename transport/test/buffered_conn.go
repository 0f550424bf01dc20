package test

import (
	"http-keepalive/transport"
)

type BufferedConnTestSuite struct {
	ConnTestSuite
}

func (s *BufferedConnTestSuite) TestWriteWithoutReader() {
	c1 := s.C1.(transport.BufferedConn)

	n, err := s.C1.Write(make([]byte, c1.WriteBufSize()))
	s.Require().NoError(err)
	s.Equal(int(c1.WriteBufSize()), n)
}

func (s *BufferedConnTestSuite) TestReadAfterClose() {
	c1 := s.C1.(transport.BufferedConn)
	size := int(c1.ReadBufSize())

	n, err := s.C2.Write(make([]byte, size))
	s.Require().NoError(err)
	s.Require().Equal(size, n)

	s.Require().NoError(s.C2.Close())

	n, err = s.C1.Read(make([]byte, size))
	s.Require().NoError(err)
	s.Equal(size, n)

	n, err = s.C1.Read(make([]byte, 1))
	s.ErrorIs(err, transport.ErrConnClosed)
	s.Zero(n)
}
