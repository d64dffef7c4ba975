package netguard

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"

	"github.com/cavendo/go-dispatch/core"
)

// Address space an outbound delivery must never reach. Loopback, RFC1918,
// link-local, CGNAT, benchmark, multicast and reserved ranges for v4,
// the equivalent set for v6 plus v4-mapped and documentation prefixes.
var ipv4Blocked = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

var ipv6Blocked = []netip.Prefix{
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("::/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("::ffff:0:0/96"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("ff00::/8"),
}

// IsBlockedAddr reports whether the address falls in private or otherwise
// unreachable space. v4-mapped v6 addresses are unmapped first so they
// cannot smuggle a private v4 target past the v6 table.
func IsBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() || addr.IsUnspecified() {
		return true
	}
	prefixes := ipv4Blocked
	if addr.Is6() {
		prefixes = ipv6Blocked
	}
	for _, prefix := range prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// LookupFunc resolves a hostname. Overridable for tests.
type LookupFunc func(ctx context.Context, host string) ([]net.IP, error)

func defaultLookup(ctx context.Context, host string) ([]net.IP, error) {
	var resolver net.Resolver
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		ips = append(ips, addr.IP)
	}
	return ips, nil
}

// Validator enforces the outbound URL policy. The zero value blocks private
// space and rejects custom provider endpoints, the safe default.
type Validator struct {
	// AllowLocal disables the private-address rejection for outbound
	// deliveries. Development use only.
	AllowLocal bool

	// AllowCustomRemote permits operator-supplied provider base URLs that
	// resolve to public space.
	AllowCustomRemote bool

	// Allowlist restricts custom provider hosts to these host[:port]
	// entries when non-empty.
	Allowlist []string

	// Lookup resolves hostnames, defaulting to the system resolver.
	Lookup LookupFunc
}

func NewValidator(allowLocal bool, allowCustomRemote bool, allowlist []string) *Validator {
	return &Validator{
		AllowLocal:        allowLocal,
		AllowCustomRemote: allowCustomRemote,
		Allowlist:         append([]string(nil), allowlist...),
	}
}

// ValidateOutboundURL rejects destination URLs that do not use http or
// https, or that resolve to any blocked address. Resolution failures reject
// too: a host that cannot be resolved now cannot be verified safe, and the
// same check runs again at delivery time.
func (v *Validator) ValidateOutboundURL(ctx context.Context, rawURL string) error {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}
	if v.AllowLocal {
		return nil
	}

	addrs, err := v.resolve(ctx, parsed.Hostname())
	if err != nil {
		return fmt.Errorf("netguard: cannot verify destination host %q: %w", parsed.Hostname(), err)
	}
	for _, addr := range addrs {
		if IsBlockedAddr(addr) {
			return fmt.Errorf("netguard: destination %q resolves to blocked address %s", parsed.Hostname(), addr)
		}
	}
	return nil
}

// ValidateProviderBaseURL checks an operator-supplied provider endpoint. The
// URL must be an origin, scheme and host only. Allowlisted host[:port]
// entries skip locality resolution and the https requirement entirely.
// Endpoints resolving entirely to private space count as local deployments
// and may use http, anything reaching public space must use https.
func (v *Validator) ValidateProviderBaseURL(ctx context.Context, rawURL string) error {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}
	if parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("netguard: provider base url must not carry a path")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("netguard: provider base url must not carry a query or fragment")
	}
	if parsed.User != nil {
		return fmt.Errorf("netguard: provider base url must not carry credentials")
	}

	if v.hostAllowed(parsed.Host) {
		return nil
	}

	addrs, err := v.resolve(ctx, parsed.Hostname())
	if err != nil {
		return fmt.Errorf("netguard: cannot verify provider host %q: %w", parsed.Hostname(), err)
	}

	local := len(addrs) > 0
	for _, addr := range addrs {
		if !IsBlockedAddr(addr) {
			local = false
			break
		}
	}
	if local {
		return nil
	}

	if !v.AllowCustomRemote {
		return fmt.Errorf("netguard: custom remote provider endpoints are disabled")
	}
	if parsed.Scheme != "https" {
		return fmt.Errorf("netguard: remote provider endpoints require https")
	}
	return nil
}

func (v *Validator) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	bare := host
	if h, _, err := net.SplitHostPort(host); err == nil {
		bare = h
	}
	for _, entry := range v.Allowlist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry == "" {
			continue
		}
		if entry == host || entry == bare {
			return true
		}
	}
	return false
}

func (v *Validator) resolve(ctx context.Context, host string) ([]netip.Addr, error) {
	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return []netip.Addr{addr}, nil
	}
	lookup := v.Lookup
	if lookup == nil {
		lookup = defaultLookup
	}
	ips, err := lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("no addresses")
	}
	addrs := make([]netip.Addr, 0, len(ips))
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if !ok {
			return nil, fmt.Errorf("unparseable address %v", ip)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, fmt.Errorf("netguard: url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("netguard: invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("netguard: unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("netguard: url host is required")
	}
	return parsed, nil
}

var _ core.URLValidator = (*Validator)(nil)
