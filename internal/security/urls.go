package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/rmitchellscott/creativeforge/internal/config"
)

var (
	ErrInvalidURL         = errors.New("invalid URL format")
	ErrInvalidScheme      = errors.New("URL scheme must be http or https")
	ErrPrivateIP          = errors.New("URL points to private/local IP address")
	ErrBlockedDomain      = errors.New("domain is in blocklist")
	ErrEmptyURL           = errors.New("URL cannot be empty")
	ErrIPResolutionFailed = errors.New("failed to resolve domain")
)

// URLPolicy decides which destinations may be shortened or fetched.
type URLPolicy struct {
	BlockedDomains  []string
	BlockPrivateIPs bool
	// LookupIP is swapped in tests.
	LookupIP func(host string) ([]net.IP, error)
}

// URLPolicyFromEnv reads BLOCKED_DOMAINS and BLOCK_PRIVATE_IPS.
func URLPolicyFromEnv() URLPolicy {
	var domains []string
	for _, d := range strings.Split(config.Get("BLOCKED_DOMAINS", ""), ",") {
		if d = strings.TrimSpace(strings.ToLower(d)); d != "" {
			domains = append(domains, d)
		}
	}
	return URLPolicy{
		BlockedDomains:  domains,
		BlockPrivateIPs: config.GetBool("BLOCK_PRIVATE_IPS", false),
	}
}

// Validate returns nil when rawURL is an absolute http(s) URL allowed by the
// policy.
func (p URLPolicy) Validate(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ErrEmptyURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidScheme
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	for _, d := range p.BlockedDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return fmt.Errorf("%w: %s", ErrBlockedDomain, host)
		}
	}

	if p.BlockPrivateIPs {
		return p.checkPrivate(host)
	}
	return nil
}

func (p URLPolicy) checkPrivate(host string) error {
	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s", ErrPrivateIP, ip)
		}
		return nil
	}

	lookup := p.LookupIP
	if lookup == nil {
		lookup = net.LookupIP
	}
	ips, err := lookup(host)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIPResolutionFailed, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("%w: no IPs found for hostname", ErrIPResolutionFailed)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s resolves to %s", ErrPrivateIP, host, ip)
		}
	}
	return nil
}

var reservedV4 = []*net.IPNet{
	mustCIDR("100.64.0.0/10"),
	mustCIDR("198.18.0.0/15"),
	mustCIDR("198.51.100.0/24"),
	mustCIDR("203.0.113.0/24"),
}

func mustCIDR(s string) *net.IPNet {
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return n
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range reservedV4 {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
