package gateway

import (
	"net"
	"net/http"
	"strings"
)

// ClientIPExtractor extracts the real client IP from requests, handling
// X-Forwarded-For with trusted proxy validation. With no trusted proxies
// configured only RemoteAddr is used, so clients cannot spoof their IP and
// dodge the login limiter.
type ClientIPExtractor struct {
	trustedCIDRs []*net.IPNet
}

// NewClientIPExtractor creates an extractor trusting the given proxy CIDRs
// (single IPs accepted too). Invalid entries are skipped; config
// validation has already reported them.
func NewClientIPExtractor(trustedProxies []string) *ClientIPExtractor {
	cidrs := make([]*net.IPNet, 0, len(trustedProxies))
	for _, proxy := range trustedProxies {
		_, cidr, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				continue
			}
			cidr = singleIPToCIDR(ip)
		}
		cidrs = append(cidrs, cidr)
	}
	return &ClientIPExtractor{trustedCIDRs: cidrs}
}

// singleIPToCIDR converts a single IP address to a /32 or /128 CIDR.
func singleIPToCIDR(ip net.IP) *net.IPNet {
	bits := 32
	if ip.To4() == nil {
		bits = 128
	}
	return &net.IPNet{
		IP:   ip,
		Mask: net.CIDRMask(bits, bits),
	}
}

// Extract returns the real client IP. When RemoteAddr is a trusted proxy
// it walks X-Forwarded-For right-to-left and returns the first untrusted
// IP; otherwise RemoteAddr wins.
func (e *ClientIPExtractor) Extract(r *http.Request) string {
	remoteIP := stripPort(r.RemoteAddr)

	if len(e.trustedCIDRs) == 0 || !e.isTrusted(remoteIP) {
		return remoteIP
	}

	xff := r.Header.Get("X-Forwarded-For")
	if xff == "" {
		return remoteIP
	}

	ips := strings.Split(xff, ",")
	for i := len(ips) - 1; i >= 0; i-- {
		ip := strings.TrimSpace(ips[i])
		if ip == "" {
			continue
		}
		if !e.isTrusted(ip) {
			return ip
		}
	}
	return remoteIP
}

// isTrusted checks if the given IP string is within any trusted CIDR.
func (e *ClientIPExtractor) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, cidr := range e.trustedCIDRs {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// stripPort removes the port from an address string, handling both
// "192.168.1.1:8080" and "[::1]:8080".
func stripPort(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
