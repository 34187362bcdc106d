package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/certops/certbot-ui/internal/api/response"
	"github.com/certops/certbot-ui/internal/cache"
)

const (
	defaultRequestsPerMinute = 100
	defaultAuthPerMinute     = 10

	rateWindow = 60 * time.Second
)

// RateLimit provides fixed-window rate limiting via Redis. Authenticated
// traffic is limited per user; the login surface gets a stricter per-address
// limit since it is reachable without credentials.
type RateLimit struct {
	cache          cache.Cache
	requestsPerMin int
	authPerMin     int
}

// NewRateLimit creates a new RateLimit middleware.
func NewRateLimit(c cache.Cache, requestsPerMin, authPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	if authPerMin <= 0 {
		authPerMin = defaultAuthPerMinute
	}
	return &RateLimit{cache: c, requestsPerMin: requestsPerMin, authPerMin: authPerMin}
}

// Limit applies per-user rate limiting based on the identity set by the auth
// middleware. Requests without an identity pass through.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		rl.limitByKey(w, r, next, cache.RateLimitKey(userID), rl.requestsPerMin)
	})
}

// LimitAuth applies per-address rate limiting to unauthenticated auth
// endpoints.
func (rl *RateLimit) LimitAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		rl.limitByKey(w, r, next, cache.AuthRateLimitKey(addr), rl.authPerMin)
	})
}

func (rl *RateLimit) limitByKey(w http.ResponseWriter, r *http.Request, next http.Handler, key string, limit int) {
	count, err := rl.cache.IncrWithExpiry(r.Context(), key, rateWindow)
	if err != nil {
		// Fail open on Redis errors.
		next.ServeHTTP(w, r)
		return
	}

	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(rateWindow).Unix(), 10))

	if count > int64(limit) {
		w.Header().Set("Retry-After", "60")
		response.Error(w, http.StatusTooManyRequests,
			"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
		return
	}

	next.ServeHTTP(w, r)
}
