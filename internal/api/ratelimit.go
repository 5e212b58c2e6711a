package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleAfter is how long a client's limiter is kept without requests.
const idleAfter = 5 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter is a per-client-IP token bucket.
type rateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu        sync.Mutex
	visitors  map[string]*visitor
	lastSweep time.Time
}

// newRateLimiter returns a limiter allowing perSecond requests with the given burst.
// A non-positive perSecond disables limiting.
func newRateLimiter(perSecond float64, burst int) *rateLimiter {
	rl := &rateLimiter{
		limit:    rate.Inf,
		burst:    max(burst, 1),
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	if perSecond > 0 {
		rl.limit = rate.Limit(perSecond)
	}
	return rl
}

func (rl *rateLimiter) allow(client string) bool {
	if rl.limit == rate.Inf {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) > idleAfter {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > idleAfter {
				delete(rl.visitors, k)
			}
		}
		rl.lastSweep = now
	}

	v, ok := rl.visitors[client]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[client] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// Middleware answers 429 once a client has used up its bucket.
func (rl *rateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.allow(clientIP(r)) {
			next.ServeHTTP(w, r)
			return
		}
		retryAfter := int(math.Ceil(1 / float64(rl.limit)))
		w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		w.Header().Set("X-RateLimit-Remaining", "0")
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
	})
}

// clientIP returns the request's remote host. RealIP has already applied forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
