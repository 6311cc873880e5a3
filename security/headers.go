package security

import (
	"net/http"
	"strings"
)

// securityHeaders are set on every response of the OAuth endpoints. None of
// them render HTML, so the content policy forbids everything.
var securityHeaders = [][2]string{
	{"X-Frame-Options", "DENY"},
	{"X-Content-Type-Options", "nosniff"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	{"Cache-Control", "no-store"},
	{"Pragma", "no-cache"},
}

// SetSecurityHeaders sets the security headers. HSTS is only sent when the
// service is reachable over https.
func SetSecurityHeaders(w http.ResponseWriter, serverURL string) {
	h := w.Header()
	for _, kv := range securityHeaders {
		h.Set(kv[0], kv[1])
	}
	if strings.HasPrefix(strings.ToLower(serverURL), "https://") {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}
