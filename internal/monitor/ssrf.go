package monitor

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var (
	// Always refused, even when private addresses are allowed.
	metadataHosts = []string{
		"169.254.169.254", // AWS, Azure, GCP metadata
		"metadata.google.internal",
		"169.254.170.2", // AWS ECS metadata
		"fd00:ec2::254", // AWS IMDSv2 IPv6
	}

	localHosts = []string{"localhost", "localhost.localdomain"}

	privatePrefixes = mustPrefixes(
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"100.64.0.0/10",
		"169.254.0.0/16",
		"127.0.0.0/8",
		"fc00::/7",
		"fe80::/10",
	)
)

func mustPrefixes(cidrs ...string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, c := range cidrs {
		prefixes = append(prefixes, netip.MustParsePrefix(c))
	}
	return prefixes
}

// SSRFProtection screens probe targets so that a hosted instance cannot be
// used to reach internal networks.
type SSRFProtection struct {
	allowPrivateIPs bool
	resolver        *net.Resolver
}

// NewSSRFProtection creates a new SSRF protection validator
func NewSSRFProtection(allowPrivateIPs bool) *SSRFProtection {
	return &SSRFProtection{
		allowPrivateIPs: allowPrivateIPs,
		resolver:        net.DefaultResolver,
	}
}

// ValidateURL validates the host of an http(s) URL
func (s *SSRFProtection) ValidateURL(ctx context.Context, rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only http and https schemes are allowed")
	}
	return s.ValidateHost(ctx, parsedURL.Hostname())
}

// ValidateHost resolves hostname and rejects it if any address is refused.
func (s *SSRFProtection) ValidateHost(ctx context.Context, hostname string) error {
	hostname = strings.ToLower(strings.Trim(hostname, "[]"))
	if hostname == "" {
		return fmt.Errorf("target must have a hostname")
	}

	for _, blocked := range metadataHosts {
		if hostname == blocked || strings.HasSuffix(hostname, "."+blocked) {
			return fmt.Errorf("access to this hostname is not allowed")
		}
	}
	if s.allowPrivateIPs {
		return nil
	}
	for _, local := range localHosts {
		if hostname == local {
			return fmt.Errorf("access to this hostname is not allowed")
		}
	}

	addrs, err := s.resolver.LookupNetIP(ctx, "ip", hostname)
	if err != nil {
		return fmt.Errorf("failed to resolve hostname: %w", err)
	}
	if len(addrs) == 0 {
		return fmt.Errorf("hostname does not resolve to any IP address")
	}

	for _, addr := range addrs {
		if err := checkAddr(addr.Unmap()); err != nil {
			return fmt.Errorf("IP address %s is not allowed: %w", addr, err)
		}
	}
	return nil
}

func checkAddr(addr netip.Addr) error {
	switch {
	case addr.IsLoopback():
		return fmt.Errorf("loopback address")
	case addr.IsLinkLocalUnicast(), addr.IsLinkLocalMulticast():
		return fmt.Errorf("link-local address")
	case addr.IsMulticast():
		return fmt.Errorf("multicast address")
	case addr.IsUnspecified():
		return fmt.Errorf("unspecified address")
	}
	for _, p := range privatePrefixes {
		if p.Contains(addr) {
			return fmt.Errorf("private address")
		}
	}
	return nil
}
