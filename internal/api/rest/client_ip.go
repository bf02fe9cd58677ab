package rest

import (
	"net/http"
	"strings"
)

// clientIP resolves the originating client address. Proxy headers take
// precedence in a fixed order; the bare RemoteAddr is never trusted because
// every deployment sits behind at least one proxy.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("cf-connecting-ip")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("x-real-ip")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("x-forwarded-for"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	return "unknown"
}
