package server

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// AuthMiddleware returns a middleware that validates X-API-Key or
// Authorization: Bearer <key> against the configured key list. An empty key
// list disables auth.
func AuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	if len(apiKeys) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					key = strings.TrimPrefix(auth, "Bearer ")
				}
			}
			if key == "" || !keyMatches(apiKeys, key) {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func keyMatches(apiKeys []string, key string) bool {
	for _, k := range apiKeys {
		if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
			return true
		}
	}
	return false
}

// rateLimiter enforces a global cap and a per-client-IP cap, both expressed
// as requests per minute. Per-client limiters are created lazily and kept for
// the process lifetime; the client population behind a deployment is small.
type rateLimiter struct {
	global *rate.Limiter

	mu        sync.Mutex
	perClient map[string]*rate.Limiter
	clientRPM int
}

func newRateLimiter(globalRPM, perClientRPM int) *rateLimiter {
	rl := &rateLimiter{
		perClient: make(map[string]*rate.Limiter),
		clientRPM: perClientRPM,
	}
	if globalRPM > 0 {
		rl.global = rate.NewLimiter(rate.Limit(float64(globalRPM)/60), globalRPM/10+1)
	}
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	if rl.global != nil && !rl.global.Allow() {
		return false
	}
	if rl.clientRPM <= 0 {
		return true
	}
	rl.mu.Lock()
	lim, ok := rl.perClient[clientIP]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(float64(rl.clientRPM)/60), rl.clientRPM/6+1)
		rl.perClient[clientIP] = lim
	}
	rl.mu.Unlock()
	return lim.Allow()
}

// RateLimitMiddleware returns a middleware that enforces the configured
// limits keyed by client IP (RealIP runs earlier in the chain). Returns 429
// with Retry-After when exceeded.
func RateLimitMiddleware(rl *rateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// SplitHostPort keeps IPv6 addresses intact; a RemoteAddr
			// without a port (RealIP may rewrite it) is used as-is.
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
			if !rl.allow(ip) {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORSMiddleware returns a middleware that sets CORS headers. allowedOrigins
// can be ["*"] for any.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	allowAll := false
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
			break
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				for _, o := range allowedOrigins {
					if o == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						break
					}
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-API-Key")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
