package security

import (
	"errors"
	"net"
	"testing"
)

func TestURLPolicyValidate(t *testing.T) {
	resolver := func(host string) ([]net.IP, error) {
		switch host {
		case "intranet.example":
			return []net.IP{net.ParseIP("10.1.2.3")}, nil
		case "public.example":
			return []net.IP{net.ParseIP("93.184.216.34")}, nil
		}
		return nil, errors.New("no such host")
	}

	tests := []struct {
		name    string
		policy  URLPolicy
		url     string
		wantErr error
	}{
		{"https ok", URLPolicy{}, "https://example.com/page", nil},
		{"http ok", URLPolicy{}, "http://example.com", nil},
		{"empty", URLPolicy{}, "  ", ErrEmptyURL},
		{"ftp", URLPolicy{}, "ftp://example.com/file", ErrInvalidScheme},
		{"no scheme", URLPolicy{}, "example.com", ErrInvalidScheme},
		{"missing host", URLPolicy{}, "https:///file", ErrInvalidURL},
		{"blocked domain", URLPolicy{BlockedDomains: []string{"evil.com"}}, "https://evil.com/x", ErrBlockedDomain},
		{"blocked subdomain", URLPolicy{BlockedDomains: []string{"evil.com"}}, "https://a.EVIL.com/x", ErrBlockedDomain},
		{"lookalike allowed", URLPolicy{BlockedDomains: []string{"evil.com"}}, "https://notevil.com/x", nil},
		{"loopback allowed by default", URLPolicy{}, "http://127.0.0.1/", nil},
		{"loopback blocked", URLPolicy{BlockPrivateIPs: true}, "http://127.0.0.1/", ErrPrivateIP},
		{"ipv6 ula blocked", URLPolicy{BlockPrivateIPs: true}, "http://[fd00::1]/", ErrPrivateIP},
		{"resolved private", URLPolicy{BlockPrivateIPs: true, LookupIP: resolver}, "http://intranet.example/", ErrPrivateIP},
		{"resolved public", URLPolicy{BlockPrivateIPs: true, LookupIP: resolver}, "http://public.example/", nil},
		{"unresolvable", URLPolicy{BlockPrivateIPs: true, LookupIP: resolver}, "http://nowhere.example/", ErrIPResolutionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate(tt.url)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate(%q) unexpected error: %v", tt.url, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate(%q) = %v, want %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestURLPolicyFromEnv(t *testing.T) {
	t.Setenv("BLOCKED_DOMAINS", " Evil.com, ,bad.org")
	t.Setenv("BLOCK_PRIVATE_IPS", "yes")

	p := URLPolicyFromEnv()
	if len(p.BlockedDomains) != 2 || p.BlockedDomains[0] != "evil.com" {
		t.Errorf("BlockedDomains = %v", p.BlockedDomains)
	}
	if !p.BlockPrivateIPs {
		t.Error("BlockPrivateIPs = false, want true")
	}
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"10.0.0.1", true},
		{"172.31.255.255", true},
		{"192.168.1.1", true},
		{"169.254.1.1", true},
		{"100.64.0.1", true},
		{"198.18.0.1", true},
		{"198.51.100.1", true},
		{"203.0.113.1", true},
		{"8.8.8.8", false},
		{"::1", true},
		{"fc00::1", true},
		{"fe80::1", true},
		{"2001:4860:4860::8888", false},
	}

	for _, tt := range tests {
		if got := isPrivateIP(net.ParseIP(tt.ip)); got != tt.want {
			t.Errorf("isPrivateIP(%s) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}
