package domain

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/suite"
)

type LookuperTestSuite struct {
	suite.Suite

	initial  map[string][]netip.Addr
	lookuper Lookuper
}

func (s *LookuperTestSuite) SetupTest() {
	s.initial = map[string][]netip.Addr{
		"localhost":   {netip.MustParseAddr("127.0.0.1")},
		"example.com": {netip.MustParseAddr("1.1.1.1")}, // It's actually cloudflare. But who cares?
	}
}

func (s *LookuperTestSuite) TestLookup() {
	ctx := context.Background()

	addrs, err := s.lookuper.LookupIP(ctx, "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)

	addrs, err = s.lookuper.LookupIP(ctx, "example.com")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("1.1.1.1")}, addrs)

	// Non-existent.
	addrs, err = s.lookuper.LookupIP(ctx, "non-existent.com")
	s.ErrorIs(err, ErrDomainNotFound)
	s.Empty(addrs)
}

type mapLookuperTestSuite struct{ LookuperTestSuite }

func TestMapLookuperTestSuite(t *testing.T) {
	suite.Run(t, new(mapLookuperTestSuite))
}

func (s *mapLookuperTestSuite) SetupTest() {
	s.LookuperTestSuite.SetupTest()
	s.lookuper = NewMapLookuper(s.initial)
}

func (s *mapLookuperTestSuite) TestLookupInitCopied() {
	s.initial["localhost"] = []netip.Addr{netip.MustParseAddr("10.0.0.1")}

	addrs, err := s.lookuper.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)
}

func (s *mapLookuperTestSuite) TestSetDel() {
	m := s.lookuper.(*mapLookuper)
	m.Set("new.com", []netip.Addr{netip.MustParseAddr("2.2.2.2")})
	m.Set("empty.com", nil)

	addrs, err := m.LookupIP(context.Background(), "new.com")
	s.NoError(err)
	s.Len(addrs, 1)

	_, err = m.LookupIP(context.Background(), "empty.com")
	s.ErrorIs(err, ErrDomainNotFound)

	m.Del("new.com")
	_, err = m.LookupIP(context.Background(), "new.com")
	s.ErrorIs(err, ErrDomainNotFound)
}

// chainLookuperTestSuite splits the table into two lookupers.
type chainLookuperTestSuite struct{ LookuperTestSuite }

func TestChainLookuperTestSuite(t *testing.T) {
	suite.Run(t, new(chainLookuperTestSuite))
}

func (s *chainLookuperTestSuite) SetupTest() {
	s.LookuperTestSuite.SetupTest()

	first := NewMapLookuper(map[string][]netip.Addr{"localhost": s.initial["localhost"]})
	second := NewMapLookuper(s.initial)
	s.lookuper = NewChainLookuper(first, second)
}

func (s *chainLookuperTestSuite) TestFirstWins() {
	first := NewMapLookuper(map[string][]netip.Addr{"localhost": {netip.MustParseAddr("::1")}})
	l := NewChainLookuper(first, NewMapLookuper(s.initial))

	addrs, err := l.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("::1")}, addrs)
}
