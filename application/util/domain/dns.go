package domain

import (
	"context"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"github.com/pkg/errors"
)

type dnsLookuper struct {
	server string
	client *dns.Client
}

var _ Lookuper = (*dnsLookuper)(nil)

// NewDNSLookuper queries server(host:port) directly over udp.
// A records are asked first, AAAA records only when there is no A record.
func NewDNSLookuper(server string, timeout time.Duration) *dnsLookuper {
	return &dnsLookuper{
		server: server,
		client: &dns.Client{Net: "udp", Timeout: timeout},
	}
}

func (l *dnsLookuper) LookupIP(ctx context.Context, domain string) ([]netip.Addr, error) {
	addrs, err := l.query(ctx, domain, dns.TypeA)
	if err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		return addrs, nil
	}

	addrs, err = l.query(ctx, domain, dns.TypeAAAA)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrDomainNotFound
	}

	return addrs, nil
}

func (l *dnsLookuper) query(ctx context.Context, domain string, qtype uint16) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), qtype)
	m.RecursionDesired = true

	res, _, err := l.client.ExchangeContext(ctx, m, l.server)
	if err != nil {
		return nil, errors.Wrapf(err, "querying %s", dns.TypeToString[qtype])
	}

	switch res.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, ErrDomainNotFound
	default:
		return nil, errors.Errorf("dns server answered %s", dns.RcodeToString[res.Rcode])
	}

	addrs := make([]netip.Addr, 0, len(res.Answer))
	for _, rr := range res.Answer {
		var ip []byte
		switch rr := rr.(type) {
		case *dns.A:
			ip = rr.A
		case *dns.AAAA:
			ip = rr.AAAA
		default:
			// e.g. CNAME. The resolver already followed it.
			continue
		}

		if addr, ok := netip.AddrFromSlice(ip); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}

	return addrs, nil
}
