// Package security resolves client addresses behind proxies and sets the
// response headers every endpoint carries.
package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// IPResolver finds the real client address of a request. Forwarding headers
// are honoured only when the direct peer is a trusted proxy.
type IPResolver struct {
	trustedProxies []*net.IPNet
}

// NewIPResolver trusts loopback and private ranges, where a reverse proxy
// in front of the bot normally lives.
func NewIPResolver() *IPResolver {
	r := &IPResolver{}
	for _, cidr := range []string{"127.0.0.0/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"} {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("bad built-in CIDR %s: %v", cidr, err))
		}
		r.trustedProxies = append(r.trustedProxies, network)
	}
	return r
}

// AddTrustedProxy adds a trusted proxy network
func (ipr *IPResolver) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	ipr.trustedProxies = append(ipr.trustedProxies, network)
	return nil
}

func (ipr *IPResolver) ClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !ipr.trusted(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (ipr *IPResolver) trusted(ip net.IP) bool {
	for _, network := range ipr.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Headers sets conservative headers for a JSON/XML-only API.
func Headers(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		if r.TLS != nil {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}
