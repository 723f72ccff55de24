package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gallery/service/internal/response"
)

const (
	limiterIdleTTL  = 10 * time.Minute
	limiterSweepGap = 5 * time.Minute
)

type limiterInfo struct {
	limiter      *rate.Limiter
	lastAccessed time.Time
}

// ipRateLimiter keeps one token bucket per client IP. Idle buckets are
// swept on access.
type ipRateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterInfo
	every     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(perMinute, burst int) *ipRateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limiters: make(map[string]*limiterInfo),
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > limiterSweepGap {
		for k, info := range l.limiters {
			if now.Sub(info.lastAccessed) > limiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	info, ok := l.limiters[ip]
	if !ok {
		info = &limiterInfo{limiter: rate.NewLimiter(l.every, l.burst)}
		l.limiters[ip] = info
	}
	info.lastAccessed = now
	return info.limiter.AllowN(now, 1)
}

// RateLimit allows perMinute requests per client IP with the given burst
// and answers 429 beyond that.
func RateLimit(perMinute, burst int) func(http.Handler) http.Handler {
	l := newIPRateLimiter(perMinute, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				response.TooManyRequests(w, "too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP reads the peer address. Mount chi's RealIP first to honour
// proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
