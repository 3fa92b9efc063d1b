package auth

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// Proxies is the set of reverse proxies allowed to announce the original
// scheme of a request. A nil *Proxies trusts nobody.
type Proxies struct {
	prefixes []netip.Prefix
}

// NewProxies accepts addresses and CIDR ranges. Entries that parse as
// neither are logged and skipped. It returns nil when nothing is trusted.
func NewProxies(entries []string, logger *slog.Logger) *Proxies {
	var p Proxies
	for _, entry := range entries {
		if entry = strings.TrimSpace(entry); entry == "" {
			continue
		}
		prefix, err := parseProxy(entry)
		if err != nil {
			if logger != nil {
				logger.Warn("ignoring trusted proxy", "entry", entry, "error", err)
			}
			continue
		}
		p.prefixes = append(p.prefixes, prefix)
	}
	if len(p.prefixes) == 0 {
		return nil
	}
	return &p
}

func parseProxy(entry string) (netip.Prefix, error) {
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		return prefix.Masked(), err
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Trusted reports whether addr is one of the proxies.
func (p *Proxies) Trusted(addr netip.Addr) bool {
	if p == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range p.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// IsSecure reports whether the browser reached the application over TLS.
// Forwarded and X-Forwarded-Proto are honored only from trusted proxies,
// and Forwarded takes precedence.
func IsSecure(r *http.Request, proxies *Proxies) bool {
	switch {
	case r == nil:
		return false
	case r.TLS != nil:
		return true
	case !proxies.Trusted(RemoteIP(r)):
		return false
	}

	proto := forwardedProto(r.Header.Get("Forwarded"))
	if proto == "" {
		proto = firstValue(r.Header.Get("X-Forwarded-Proto"))
	}
	return proto == "https" || proto == "wss"
}

// RemoteIP returns the peer address of r without port or zone. The zero
// Addr means RemoteAddr could not be parsed.
func RemoteIP(r *http.Request) netip.Addr {
	raw := strings.TrimSpace(r.RemoteAddr)
	if ap, err := netip.ParseAddrPort(raw); err == nil {
		return ap.Addr().WithZone("").Unmap()
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}
	}
	return addr.WithZone("").Unmap()
}

// forwardedProto reads proto from the first element of an RFC 7239
// Forwarded header.
func forwardedProto(header string) string {
	first, _, _ := strings.Cut(header, ",")
	for _, pair := range strings.Split(first, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if ok && strings.EqualFold(k, "proto") {
			return unquoteLower(v)
		}
	}
	return ""
}

func firstValue(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return unquoteLower(first)
}

func unquoteLower(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), `"`))
}
