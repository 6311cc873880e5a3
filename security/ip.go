package security

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the client address of r. With trustProxy set, the gate
// is assumed to sit behind exactly one reverse proxy: the rightmost
// X-Forwarded-For entry (appended by that proxy) wins, then X-Real-IP.
// Earlier X-Forwarded-For entries are client-controlled and ignored.
func GetClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := lastForwardedFor(r.Header.Values("X-Forwarded-For")); ip != "" {
			return ip
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// lastForwardedFor returns the rightmost address across all X-Forwarded-For
// header lines, or "" when it is not an IP.
func lastForwardedFor(values []string) string {
	if len(values) == 0 {
		return ""
	}
	entries := strings.Split(values[len(values)-1], ",")
	ip := strings.TrimSpace(entries[len(entries)-1])
	if net.ParseIP(ip) == nil {
		return ""
	}
	return ip
}

type clientIPContextKey struct{}

// WithClientIP stores the resolved client address in ctx so that audit
// events raised deeper in the stack can carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// ClientIPFromContext returns the address stored by WithClientIP.
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPContextKey{}).(string); ok {
		return ip
	}
	return ""
}
