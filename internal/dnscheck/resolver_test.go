package dnscheck

import (
	"context"
	"errors"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"

	"github.com/pratamalabs/domaindesk/internal/logger"
)

func newTestResolver(exchange exchangeFunc) *Resolver {
	return &Resolver{
		server:   "198.51.100.1:53",
		exchange: exchange,
		logger:   logger.NewNopLogger(),
	}
}

func nsAnswer(question string, servers ...string) *dns.Msg {
	reply := new(dns.Msg)
	reply.Rcode = dns.RcodeSuccess
	for _, s := range servers {
		reply.Answer = append(reply.Answer, &dns.NS{
			Hdr: dns.RR_Header{Name: question, Rrtype: dns.TypeNS, Class: dns.ClassINET, Ttl: 300},
			Ns:  s,
		})
	}
	return reply
}

func TestResolver_LookupNS(t *testing.T) {
	t.Run("strips trailing dots", func(t *testing.T) {
		resolver := newTestResolver(func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			assert.Equal(t, "example.com.", msg.Question[0].Name)
			assert.Equal(t, dns.TypeNS, msg.Question[0].Qtype)
			return nsAnswer("example.com.", "ns1.example.net.", "ns2.example.net."), nil
		})

		servers := resolver.LookupNS(context.Background(), "example.com")

		assert.Equal(t, []string{"ns1.example.net", "ns2.example.net"}, servers)
	})

	t.Run("network error yields empty slice", func(t *testing.T) {
		resolver := newTestResolver(func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			return nil, errors.New("i/o timeout")
		})

		servers := resolver.LookupNS(context.Background(), "example.com")

		assert.NotNil(t, servers)
		assert.Empty(t, servers)
	})

	t.Run("nxdomain yields empty slice", func(t *testing.T) {
		resolver := newTestResolver(func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			reply := new(dns.Msg)
			reply.Rcode = dns.RcodeNameError
			return reply, nil
		})

		servers := resolver.LookupNS(context.Background(), "no-such-domain.example")

		assert.Empty(t, servers)
	})

	t.Run("success with no NS records yields empty slice", func(t *testing.T) {
		resolver := newTestResolver(func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			return nsAnswer("example.com."), nil
		})

		servers := resolver.LookupNS(context.Background(), "example.com")

		assert.Empty(t, servers)
	})
}
