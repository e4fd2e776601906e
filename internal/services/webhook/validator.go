package webhook

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validator is the SSRF defense for outbound webhook calls. It runs before
// every delivery attempt, not just at rule-save time, because DNS answers
// can change between saves and sends.
type Validator struct {
	allowInsecureHTTP bool

	// resolve is swappable in tests; defaults to net.LookupIP.
	resolve func(host string) ([]net.IP, error)
}

// NewValidator builds a validator. allowInsecureHTTP is the development
// override that permits plain http targets.
func NewValidator(allowInsecureHTTP bool) *Validator {
	return &Validator{
		allowInsecureHTTP: allowInsecureHTTP,
		resolve:           net.LookupIP,
	}
}

// blockedHostnames are rejected before any DNS lookup.
var blockedHostnames = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
	"0.0.0.0":   true,
}

// Validate rejects URLs that could reach internal infrastructure: bad
// schemes, missing hosts, loopback literals, and hostnames resolving into
// private, loopback or link-local ranges.
func (v *Validator) Validate(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !v.allowInsecureHTTP {
			return fmt.Errorf("plain http webhook URLs are not allowed")
		}
	default:
		return fmt.Errorf("unsupported webhook URL scheme %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("webhook URL has no hostname")
	}
	if blockedHostnames[strings.ToLower(host)] {
		return fmt.Errorf("webhook hostname %q is blocked", host)
	}

	// A literal IP skips DNS; a hostname is resolved and every answer is
	// checked.
	if ip := net.ParseIP(host); ip != nil {
		if reason := blockedRange(ip); reason != "" {
			return fmt.Errorf("webhook address %s is blocked: %s", ip, reason)
		}
		return nil
	}

	ips, err := v.resolve(host)
	if err != nil {
		return fmt.Errorf("failed to resolve webhook hostname %q: %w", host, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("webhook hostname %q resolved to no addresses", host)
	}
	for _, ip := range ips {
		if reason := blockedRange(ip); reason != "" {
			return fmt.Errorf("webhook hostname %q resolves to blocked address %s: %s", host, ip, reason)
		}
	}
	return nil
}

// blockedRange classifies addresses the pipeline must never call out to:
// loopback (127/8, ::1), private (10/8, 172.16/12, 192.168/16, fc00::/7),
// link-local (169.254/16, fe80::/10) and the unspecified address.
func blockedRange(ip net.IP) string {
	switch {
	case ip.IsLoopback():
		return "loopback range"
	case ip.IsPrivate():
		return "private range"
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return "link-local range"
	case ip.IsUnspecified():
		return "unspecified address"
	}
	return ""
}
