// Package domain resolves host names into ip addresses for dialers.
package domain

import (
	"context"
	"maps"
	"net/netip"

	"github.com/pkg/errors"
)

var ErrDomainNotFound = errors.New("domain not found")

type Lookuper interface {
	LookupIP(ctx context.Context, domain string) (addrs []netip.Addr, err error)
}

type mapLookuper struct {
	set map[string][]netip.Addr
}

var _ Lookuper = (*mapLookuper)(nil)

// NewMapLookuper answers from a static table. The table is copied.
func NewMapLookuper(set map[string][]netip.Addr) *mapLookuper {
	if set == nil {
		set = make(map[string][]netip.Addr)
	}
	return &mapLookuper{set: maps.Clone(set)}
}

func (m *mapLookuper) LookupIP(ctx context.Context, domain string) (addrs []netip.Addr, err error) {
	addrs, ok := m.set[domain]
	if !ok || len(addrs) == 0 {
		return nil, ErrDomainNotFound
	}
	return addrs, nil
}

func (m *mapLookuper) Set(domain string, addrs []netip.Addr) {
	if len(addrs) == 0 {
		return
	}
	m.set[domain] = addrs
}

func (m *mapLookuper) Del(domain string) { delete(m.set, domain) }

type chainLookuper struct {
	lookupers []Lookuper
}

// NewChainLookuper asks lookupers in order.
// It moves on to the next one only when the domain is not found.
func NewChainLookuper(lookupers ...Lookuper) Lookuper {
	return &chainLookuper{lookupers: lookupers}
}

func (c *chainLookuper) LookupIP(ctx context.Context, domain string) ([]netip.Addr, error) {
	for _, l := range c.lookupers {
		addrs, err := l.LookupIP(ctx, domain)
		if errors.Is(err, ErrDomainNotFound) {
			continue
		}
		return addrs, err
	}
	return nil, ErrDomainNotFound
}
