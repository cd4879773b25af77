package middleware

import "net/http"

const (
	headerXContentTypeOptions     = "X-Content-Type-Options"
	headerXFrameOptions           = "X-Frame-Options"
	headerReferrerPolicy          = "Referrer-Policy"
	headerContentSecurityPolicy   = "Content-Security-Policy"
	headerStrictTransportSecurity = "Strict-Transport-Security"
	headerCrossOriginOpenerPolicy = "Cross-Origin-Opener-Policy"
)

// SecurityHeaders sets the response headers a helmet-style default would.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(headerXContentTypeOptions, "nosniff")
		h.Set(headerXFrameOptions, "SAMEORIGIN")
		h.Set(headerReferrerPolicy, "no-referrer")
		h.Set(headerContentSecurityPolicy, "default-src 'self'")
		h.Set(headerStrictTransportSecurity, "max-age=15552000; includeSubDomains")
		h.Set(headerCrossOriginOpenerPolicy, "same-origin")
		next.ServeHTTP(w, r)
	})
}
