package provider

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ValidateBaseURL checks that raw is an absolute http(s) URL without userinfo,
// query or fragment. Loopback, private and link-local hosts are rejected unless
// allowPrivate is set, which local setups (an inference server on localhost)
// need.
func ValidateBaseURL(raw string, allowPrivate bool) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}

	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("invalid base_url scheme %q (must be http or https)", u.Scheme)
	case u.Hostname() == "":
		return fmt.Errorf("invalid base_url host %q", u.Host)
	case u.User != nil:
		return fmt.Errorf("base_url must not contain userinfo")
	case u.RawQuery != "" || u.Fragment != "":
		return fmt.Errorf("base_url must not contain a query or fragment")
	}

	if !allowPrivate && isInternalHost(u.Hostname()) {
		return fmt.Errorf("base_url host %q is private (set allow_private_base_url to override)", u.Hostname())
	}
	return nil
}

func isInternalHost(host string) bool {
	h := strings.ToLower(strings.TrimSpace(host))
	if h == "localhost" || strings.HasSuffix(h, ".localhost") {
		return true
	}

	ip := net.ParseIP(h)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
		return true
	}
	return !ip.IsGlobalUnicast()
}
