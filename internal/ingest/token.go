package ingest

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenFromRequest returns the shared secret presented in the X-Webhook-Token
// header or as a bearer token.
func TokenFromRequest(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("X-Webhook-Token")); v != "" {
		return v
	}
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// tokenMatches compares in constant time. An empty expected secret disables
// the check.
func tokenMatches(expected, got string) bool {
	if expected == "" {
		return true
	}
	if got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
