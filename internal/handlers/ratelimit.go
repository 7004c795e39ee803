package handlers

import (
	"net"
	"net/http"
	"strings"
)

// RateLimiter gates abuse-prone endpoints (register, login, upload).
type RateLimiter interface {
	Allow(key string) bool
}

// allowRequest checks the limiter for the request's client, bucketed per scope
// so a burst of logins does not consume the upload budget. A nil limiter
// disables the check.
func allowRequest(limiter RateLimiter, r *http.Request, scope string) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(rateLimitKey(r, scope))
}

func rateLimitKey(r *http.Request, scope string) string {
	ip := clientIP(r)
	if scope == "" {
		return ip
	}
	return scope + ":" + ip
}

// clientIP prefers the first X-Forwarded-For hop so limits hold behind a
// reverse proxy, falling back to the socket address.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	return remote
}
