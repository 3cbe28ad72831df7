package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// DefaultTrustedProxies are the loopback and private ranges.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"::1/128",
}

// IPExtractor resolves the client address of a request. Forwarding
// headers are honoured only when the direct peer is a trusted proxy.
type IPExtractor struct {
	trusted []*net.IPNet
}

// NewIPExtractor trusts the given CIDRs, or DefaultTrustedProxies when
// none are given.
func NewIPExtractor(cidrs ...string) (*IPExtractor, error) {
	if len(cidrs) == 0 {
		cidrs = DefaultTrustedProxies
	}
	e := &IPExtractor{}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("parse trusted proxy CIDR %s: %w", cidr, err)
		}
		e.trusted = append(e.trusted, network)
	}
	return e, nil
}

// MustNewIPExtractor is NewIPExtractor for fixed CIDR lists; it panics on
// a malformed CIDR.
func MustNewIPExtractor(cidrs ...string) *IPExtractor {
	e, err := NewIPExtractor(cidrs...)
	if err != nil {
		panic(err)
	}
	return e
}

// ClientIP returns the first valid X-Forwarded-For entry, then X-Real-IP,
// when the peer is trusted, and the peer address otherwise.
func (e *IPExtractor) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	peer := net.ParseIP(directIP)
	if peer == nil || !e.isTrusted(peer) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (e *IPExtractor) isTrusted(ip net.IP) bool {
	for _, network := range e.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
