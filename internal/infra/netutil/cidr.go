package netutil

import (
	"net/netip"
	"strings"
)

// ParseCIDRs parses prefixes such as "127.0.0.0/8". Bare addresses are
// accepted as single-host prefixes. Invalid entries are returned separately
// so the caller can log them.
func ParseCIDRs(cidrs []string) (out []netip.Prefix, invalid []string) {
	for _, s := range cidrs {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			out = append(out, netip.PrefixFrom(a, a.BitLen()))
			continue
		}
		invalid = append(invalid, s)
	}
	return
}
