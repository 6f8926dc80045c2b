package deliverer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var presets = map[string][]string{
	"@private": {
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
	},
	"@loopback": {
		"127.0.0.0/8",
		"::1/128",
	},
	"@linklocal": {
		"169.254.0.0/16",
		"fe80::/10",
	},
	"@reserved": {
		"0.0.0.0/8",
		"100.64.0.0/10",
		"192.0.0.0/24",
		"224.0.0.0/4",
		"240.0.0.0/4",
		"fc00::/7",
	},
	"@default": {
		"@private",
		"@loopback",
		"@linklocal",
		"@reserved",
	},
}

type AclOptions struct {
	Rules []string
}

// ACL is a deny list. A destination is allowed unless one rule matches.
type ACL struct {
	IP     []netip.Addr
	CIDR   []netip.Prefix
	Domain []Domain
}

func expandPreset(rules []string) []string {
	var expanded []string
	for _, r := range rules {
		if set, ok := presets[r]; ok {
			expanded = append(expanded, expandPreset(set)...)
		} else {
			expanded = append(expanded, r)
		}
	}
	return expanded
}

func NewACL(opts AclOptions) *ACL {
	acl := &ACL{}

	rules := expandPreset(opts.Rules)
	for _, rule := range rules {
		if addr, err := netip.ParseAddr(rule); err == nil {
			acl.IP = append(acl.IP, addr)
			continue
		}
		if cidr, err := netip.ParsePrefix(rule); err == nil {
			acl.CIDR = append(acl.CIDR, cidr)
			continue
		}
		acl.Domain = append(acl.Domain, Domain(rule))
	}
	return acl
}

func (acl *ACL) Allow(host string, addr netip.Addr) bool {
	return acl.AllowAddr(addr) && acl.AllowHost(host)
}

func (acl *ACL) AllowAddr(addr netip.Addr) bool {
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	for _, ip := range acl.IP {
		if ip == addr {
			return false
		}
	}
	for _, cidr := range acl.CIDR {
		if cidr.Contains(addr) {
			return false
		}
	}
	return true
}

// AllowHost checks the hostname rules, or the address rules when host is
// an IP literal.
func (acl *ACL) AllowHost(host string) bool {
	if addr, err := netip.ParseAddr(strings.Trim(host, "[]")); err == nil {
		return acl.AllowAddr(addr)
	}
	for _, domain := range acl.Domain {
		if domain.Match(host) {
			return false
		}
	}
	return true
}

type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// CheckResolved resolves host and denies it if any address is denied.
func (acl *ACL) CheckResolved(ctx context.Context, resolver Resolver, host string) error {
	if !acl.AllowHost(host) {
		return ErrDenied
	}
	if _, err := netip.ParseAddr(host); err == nil {
		return nil
	}
	addrs, err := resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	for _, addr := range addrs {
		if !acl.AllowAddr(addr) {
			return ErrDenied
		}
	}
	return nil
}

var ErrInvalidURL = errors.New("url must be http or https with a host")

// ValidateURL checks scheme and host of a destination and, when acl is
// not nil, every address the host resolves to.
func ValidateURL(ctx context.Context, rawURL string, acl *ACL, resolver Resolver) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return ErrInvalidURL
	}
	if acl == nil {
		return nil
	}
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return acl.CheckResolved(ctx, resolver, u.Hostname())
}

type Domain string

func (d Domain) Match(host string) bool {
	if host == "" {
		return false
	}

	pattern := strings.ToLower(string(d))
	host = strings.ToLower(host)

	// exact match
	if !strings.HasPrefix(pattern, "*.") {
		return pattern == host
	}
	// wildcard match
	suffix := pattern[1:]
	return strings.HasSuffix(host, suffix)
}
