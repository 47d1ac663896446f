package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/Everest18/claude-code-telegram-control/internal/security"
)

// authMiddleware returns a chi-compatible middleware that validates
// Bearer token or Basic auth credentials using constant-time comparison.
// Denied attempts land in the audit trail when an AuditLogger is
// provided; a RateLimiter throttles attempts through the shared "auth"
// bucket.
func authMiddleware(cfg AuthConfig, auditLogger *security.AuditLogger, rateLimiter *security.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rateLimiter != nil {
				if err := rateLimiter.Allow("auth"); err != nil {
					http.Error(w, "too many requests", http.StatusTooManyRequests)
					return
				}
			}

			if reason := denyReason(cfg, r); reason != "" {
				emitAuthDenied(auditLogger, r, reason)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// denyReason checks the request's credentials against every configured
// method. Empty means authorized.
func denyReason(cfg AuthConfig, r *http.Request) string {
	if r.Header.Get("Authorization") == "" {
		return "missing authorization header"
	}
	if bearerOK(cfg, r) || basicOK(cfg, r) {
		return ""
	}
	return "invalid credentials"
}

func bearerOK(cfg AuthConfig, r *http.Request) bool {
	if cfg.BearerToken == "" {
		return false
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && constantTimeEqual(token, cfg.BearerToken)
}

func basicOK(cfg AuthConfig, r *http.Request) bool {
	if cfg.BasicUser == "" || cfg.BasicPass == "" {
		return false
	}
	user, pass, ok := r.BasicAuth()
	return ok && constantTimeEqual(user, cfg.BasicUser) && constantTimeEqual(pass, cfg.BasicPass)
}

// emitAuthDenied logs a denied auth attempt to the audit trail if
// available.
func emitAuthDenied(logger *security.AuditLogger, r *http.Request, detail string) {
	if logger == nil {
		return
	}
	logger.Log(security.AuditEvent{
		Type:   security.EventAuthDenied,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}

// constantTimeEqual compares two strings in constant time.
func constantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
