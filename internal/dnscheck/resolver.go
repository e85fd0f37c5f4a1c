// Package dnscheck resolves the authoritative nameservers of domains.
package dnscheck

import (
	"context"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/logger"
)

const defaultResolvConf = "/etc/resolv.conf"

// exchangeFunc is the wire-level query, injectable for tests.
type exchangeFunc func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error)

// Resolver looks up NS records. Lookups never return an error to callers:
// any failure (timeout, SERVFAIL, NXDOMAIN, empty answer) comes back as an
// empty slice so a flaky resolver cannot clobber stored nameservers.
type Resolver struct {
	server   string
	exchange exchangeFunc
	logger   logger.Logger
}

func NewResolver(cfg config.DNSConfig, log logger.Logger) *Resolver {
	server := cfg.Server
	if server == "" {
		if conf, err := dns.ClientConfigFromFile(defaultResolvConf); err == nil && len(conf.Servers) > 0 {
			server = conf.Servers[0] + ":" + conf.Port
		} else {
			server = "8.8.8.8:53"
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := &dns.Client{Timeout: timeout}

	return &Resolver{
		server: server,
		exchange: func(ctx context.Context, msg *dns.Msg, server string) (*dns.Msg, error) {
			reply, _, err := client.ExchangeContext(ctx, msg, server)
			return reply, err
		},
		logger: log,
	}
}

// LookupNS returns the domain's NS records with trailing dots stripped,
// or an empty slice when anything goes wrong.
func (r *Resolver) LookupNS(ctx context.Context, domain string) []string {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeNS)
	msg.RecursionDesired = true

	reply, err := r.exchange(ctx, msg, r.server)
	if err != nil {
		r.logger.Debug("NS lookup failed",
			logger.String("domain", domain),
			logger.Error(err),
		)
		return []string{}
	}
	if reply.Rcode != dns.RcodeSuccess {
		r.logger.Debug("NS lookup returned non-success rcode",
			logger.String("domain", domain),
			logger.String("rcode", dns.RcodeToString[reply.Rcode]),
		)
		return []string{}
	}

	servers := make([]string, 0, len(reply.Answer))
	for _, rr := range reply.Answer {
		if ns, ok := rr.(*dns.NS); ok {
			servers = append(servers, strings.TrimSuffix(ns.Ns, "."))
		}
	}
	return servers
}
