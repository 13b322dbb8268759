package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitorLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter limits requests per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*visitorLimiter
	rate     rate.Limit
	perMin   int
	burst    int
	ttl      time.Duration
	log      *slog.Logger
	now      func() time.Time
}

func NewRateLimiter(perMinute, burst int, log *slog.Logger) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}

	return &RateLimiter{
		limiters: make(map[string]*visitorLimiter),
		rate:     rate.Limit(float64(perMinute) / 60.0),
		perMin:   perMinute,
		burst:    burst,
		ttl:      10 * time.Minute,
		log:      log,
		now:      time.Now,
	}
}

// Limit rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !rl.limiter(ip).Allow() {
			// seconds until one token is replenished
			retryAfter := (60 + rl.perMin - 1) / rl.perMin
			rl.log.Warn("превышен лимит запросов",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path))

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, "Слишком много попыток. Повторите позже.", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) limiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.cleanupLocked(now)

	vl, ok := rl.limiters[ip]
	if !ok {
		vl = &visitorLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = vl
	}
	vl.lastAccess = now
	return vl.limiter
}

func (rl *RateLimiter) cleanupLocked(now time.Time) {
	for ip, vl := range rl.limiters {
		if now.Sub(vl.lastAccess) > rl.ttl {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
