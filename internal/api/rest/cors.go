package rest

import (
	"net/http"
	"strings"
)

// handleCORS attaches CORS headers when the request origin is on the allow
// list and answers preflight requests directly. Returns true when the
// request was fully handled and the chain must stop. The allowed origin is
// echoed back rather than wildcarded so credentialed requests work.
func (p *Pipeline) handleCORS(w http.ResponseWriter, r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

	if !p.originAllowed(origin) {
		if preflight {
			w.WriteHeader(http.StatusForbidden)
			return true
		}
		// Browsers block the response themselves when the headers are absent.
		return false
	}

	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Credentials", "true")
	h.Add("Vary", "Origin")

	if preflight {
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		h.Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
		return true
	}
	return false
}

func (p *Pipeline) originAllowed(origin string) bool {
	for _, allowed := range p.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
