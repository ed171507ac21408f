package middleware

import (
	"net/http"
	"strings"
)

// apiPolicy is the Content-Security-Policy for JSON responses: nothing may
// load, frame or submit from an api document.
var apiPolicy = strings.Join([]string{
	"default-src 'none'",
	"connect-src 'self'",
	"frame-ancestors 'none'",
	"base-uri 'self'",
	"form-action 'self'",
}, "; ")

// SecurityHeaders sets the CSP and the usual hardening headers on every
// response. With reportOnly the policy is sent as
// Content-Security-Policy-Report-Only.
func SecurityHeaders(reportOnly bool) func(http.Handler) http.Handler {
	header := "Content-Security-Policy"
	if reportOnly {
		header = "Content-Security-Policy-Report-Only"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set(header, apiPolicy)
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			next.ServeHTTP(w, r)
		})
	}
}
