package probe

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCheckDNS_InvalidName(t *testing.T) {
	for _, in := range []string{"", "  ", "https://example.com"} {
		if got := CheckDNS(context.Background(), nil, in, time.Second); got.Class != DNSInvalidName {
			t.Fatalf("CheckDNS(%q).Class = %s", in, got.Class)
		}
	}
}

func TestCheckDNS_IPLiteralResolves(t *testing.T) {
	got := CheckDNS(context.Background(), nil, "127.0.0.1", time.Second)
	if got.Class != DNSResolves || !got.HasAOrAAAA {
		t.Fatalf("ip literal should resolve, got %+v", got)
	}
}

func TestDNSDiagnoser_UsesURLHost(t *testing.T) {
	d := NewDNSDiagnoser(zap.NewNop())
	if class := d.Diagnose(context.Background(), "http://127.0.0.1:9/health"); class != DNSResolves {
		t.Fatalf("want %s, got %s", DNSResolves, class)
	}
}

func TestExtractHost(t *testing.T) {
	if h := extractHost("https://api.example.com:8443/x"); h != "api.example.com" {
		t.Fatalf("extractHost = %q", h)
	}
	if h := extractHost("not a url"); h != "not a url" {
		t.Fatalf("extractHost fallback = %q", h)
	}
}
