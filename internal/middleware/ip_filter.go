package middleware

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/sirupsen/logrus"
)

// IPFilter restricts the console to an allowlist of addresses and CIDR
// ranges. An empty allowlist allows everyone. Entries that do not parse are
// logged and ignored.
func IPFilter(allowed []string) func(http.Handler) http.Handler {
	prefixes := parseAllowlist(allowed)

	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := clientAddr(r)
			if !contains(prefixes, clientIP) {
				logrus.WithField("client_ip", clientIP).Warn("Rejected request from address outside allowlist")
				http.Error(w, "Forbidden: Source IP not allowed", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func parseAllowlist(allowed []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(allowed))
	for _, entry := range allowed {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				logrus.Warnf("Ignoring invalid allowlist range %q: %v", entry, err)
				continue
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}

		addr, err := netip.ParseAddr(entry)
		if err != nil {
			logrus.Warnf("Ignoring invalid allowlist address %q: %v", entry, err)
			continue
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes
}

// clientAddr reads the client address. chi's RealIP middleware has already
// copied X-Real-IP / X-Forwarded-For into RemoteAddr.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func contains(prefixes []netip.Prefix, ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
