package probe

import (
	"context"
	"net"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DNSDiagnoser explains connection errors by classifying the target host's
// DNS resolution.
type DNSDiagnoser struct {
	Logger   *zap.Logger
	Resolver *net.Resolver
	Timeout  time.Duration
}

func NewDNSDiagnoser(log *zap.Logger) *DNSDiagnoser {
	if log == nil {
		log = zap.NewNop()
	}
	return &DNSDiagnoser{Logger: log, Timeout: defaultDNSTimeout}
}

// Diagnose returns the DNS class of rawURL's host.
func (d *DNSDiagnoser) Diagnose(ctx context.Context, rawURL string) string {
	host := extractHost(rawURL)
	dns := CheckDNS(ctx, d.Resolver, host, d.Timeout)

	d.Logger.Info("dns_check",
		zap.String("domain", dns.Domain),
		zap.String("class", dns.Class),
		zap.Bool("has_a_or_aaaa", dns.HasAOrAAAA),
		zap.Strings("nameservers", dns.Nameservers),
		zap.String("cname", dns.CNAME),
		zap.String("resolver_error", dns.ResolverError),
	)
	return dns.Class
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
