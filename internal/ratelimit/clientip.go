package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// clientKey derives the rate-limit key for a request. Forwarded headers are
// only trusted when the direct peer is a configured proxy.
func clientKey(r *http.Request, trustedProxies []*net.IPNet) string {
	remoteHost := remoteAddrHost(r.RemoteAddr)
	if remoteHost == "" {
		return "unknown"
	}
	if len(trustedProxies) == 0 {
		return remoteHost
	}
	remoteIP := parseIP(remoteHost)
	if remoteIP == nil || !ipInNets(remoteIP, trustedProxies) {
		return remoteHost
	}
	if ip := selectClientIP(parseXForwardedFor(r.Header.Get("X-Forwarded-For")), trustedProxies); ip != "" {
		return ip
	}
	if ip := parseIP(r.Header.Get("X-Real-IP")); ip != nil {
		return ip.String()
	}
	return remoteHost
}

func remoteAddrHost(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err == nil && host != "" {
		return host
	}
	return addr
}

// selectClientIP walks the chain right to left and returns the first hop that
// is not a trusted proxy.
func selectClientIP(ips []net.IP, trustedProxies []*net.IPNet) string {
	for i := len(ips) - 1; i >= 0; i-- {
		if !ipInNets(ips[i], trustedProxies) {
			return ips[i].String()
		}
	}
	if len(ips) > 0 {
		return ips[0].String()
	}
	return ""
}

func parseXForwardedFor(header string) []net.IP {
	if header == "" {
		return nil
	}
	parts := strings.Split(header, ",")
	ips := make([]net.IP, 0, len(parts))
	for _, part := range parts {
		if ip := parseIP(part); ip != nil {
			ips = append(ips, ip)
		}
	}
	return ips
}

func parseIP(value string) net.IP {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if idx := strings.IndexByte(value, '%'); idx != -1 {
		value = value[:idx]
	}
	ip := net.ParseIP(value)
	if ip == nil {
		return nil
	}
	if ip4 := ip.To4(); ip4 != nil {
		return ip4
	}
	return ip
}

func ipInNets(ip net.IP, nets []*net.IPNet) bool {
	for _, ipNet := range nets {
		if ipNet != nil && ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

func parseTrustedProxyCIDRs(values []string) ([]*net.IPNet, []string) {
	var trusted []*net.IPNet
	var invalid []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if strings.Contains(value, "/") {
			_, ipNet, err := net.ParseCIDR(value)
			if err != nil {
				invalid = append(invalid, value)
				continue
			}
			trusted = append(trusted, ipNet)
			continue
		}
		ip := parseIP(value)
		if ip == nil {
			invalid = append(invalid, value)
			continue
		}
		bits := 128
		if ip.To4() != nil {
			bits = 32
		}
		trusted = append(trusted, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return trusted, invalid
}
