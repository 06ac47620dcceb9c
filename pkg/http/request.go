package http

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// UnknownIP is returned when no source yields a valid address
const UnknownIP = "0.0.0.0"

// Recognised client IP sources
const (
	SourceClientIP      = "Client-IP"
	SourceXForwardedFor = "X-Forwarded-For"
	SourceXRealIP       = "X-Real-IP"
	SourceRemoteAddr    = "RemoteAddr"
)

// DefaultIPSources is the lookup order used when none is configured
var DefaultIPSources = []string{SourceClientIP, SourceXForwardedFor, SourceRemoteAddr}

// ErrNoValidClientIP is returned alongside UnknownIP
var ErrNoValidClientIP = errors.New("no valid client ip")

// IPResolver extracts the client address from a request by walking Sources in order.
//
// Header sources can be forged by the client. When TrustedProxies is set they are
// only consulted for connections whose RemoteAddr falls inside one of the ranges.
// When it is empty headers are taken at face value.
type IPResolver struct {
	sources []string
	trusted []netip.Prefix
}

// NewIPResolver validates the source names and proxy CIDRs
func NewIPResolver(sources, trustedProxies []string) (*IPResolver, error) {
	if len(sources) == 0 {
		sources = DefaultIPSources
	}

	canonical := make([]string, 0, len(sources))
	for _, s := range sources {
		name, ok := canonicalSource(s)
		if !ok {
			return nil, fmt.Errorf("unknown client ip source %q", s)
		}
		canonical = append(canonical, name)
	}

	trusted := make([]netip.Prefix, 0, len(trustedProxies))
	for _, cidr := range trustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", cidr, err)
		}
		trusted = append(trusted, prefix.Masked())
	}

	return &IPResolver{sources: canonical, trusted: trusted}, nil
}

// TrustsAllHeaders reports whether header sources are honoured for every peer
func (res *IPResolver) TrustsAllHeaders() bool {
	return len(res.trusted) == 0
}

// Resolve returns the first valid address found. When nothing validates it
// returns UnknownIP and ErrNoValidClientIP.
func (res *IPResolver) Resolve(r *http.Request) (string, error) {
	remote := remoteAddr(r)
	headersTrusted := res.TrustsAllHeaders() || res.isTrustedProxy(remote)

	for _, source := range res.sources {
		var candidate string
		switch source {
		case SourceRemoteAddr:
			candidate = remote
		case SourceXForwardedFor:
			if !headersTrusted {
				continue
			}
			candidate = firstValidForwarded(r.Header.Get(SourceXForwardedFor))
		default:
			if !headersTrusted {
				continue
			}
			candidate = strings.TrimSpace(r.Header.Get(source))
		}

		if addr, ok := parseIP(candidate); ok {
			return addr, nil
		}
	}

	return UnknownIP, ErrNoValidClientIP
}

// KeyFunc adapts Resolve for per-IP rate limiting. Unresolvable clients share UnknownIP.
func (res *IPResolver) KeyFunc(r *http.Request) (string, error) {
	ip, _ := res.Resolve(r)
	return ip, nil
}

func (res *IPResolver) isTrustedProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range res.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func canonicalSource(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, known := range []string{SourceClientIP, SourceXForwardedFor, SourceXRealIP, SourceRemoteAddr} {
		if strings.EqualFold(s, known) {
			return known, true
		}
	}
	return "", false
}

// remoteAddr strips the port from RemoteAddr when present
func remoteAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// firstValidForwarded returns the first entry of a comma-separated list that parses
func firstValidForwarded(header string) string {
	for _, part := range strings.Split(header, ",") {
		if addr, ok := parseIP(strings.TrimSpace(part)); ok {
			return addr
		}
	}
	return ""
}

// parseIP validates an IPv4 or IPv6 literal and returns its canonical form
func parseIP(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return "", false
	}
	return addr.Unmap().WithZone("").String(), true
}
