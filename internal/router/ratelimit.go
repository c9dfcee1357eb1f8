package router

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/ovaphlow/pitchfork/service-apd/internal/respond"
)

// clientLimiter throttles requests per client IP. Limiters unused for
// idleTTL are dropped on the next sweep.
type clientLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientEntry
	limit     rate.Limit
	burst     int
	clock     clockwork.Clock
	idleTTL   time.Duration
	lastSweep time.Time
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(perMinute, burst int, clock clockwork.Clock) *clientLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &clientLimiter{
		limiters:  make(map[string]*clientEntry),
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		clock:     clock,
		idleTTL:   10 * time.Minute,
		lastSweep: clock.Now(),
	}
}

func (c *clientLimiter) allow(ip string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if now.Sub(c.lastSweep) > c.idleTTL {
		for k, e := range c.limiters {
			if now.Sub(e.lastSeen) > c.idleTTL {
				delete(c.limiters, k)
			}
		}
		c.lastSweep = now
	}

	e, ok := c.limiters[ip]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[ip] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}

// middleware answers 429 once a client exceeds its allowance.
func (c *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respond.Status(w, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the peer address. Forwarding headers are not trusted here;
// deployments behind a proxy should rewrite RemoteAddr upstream.
func clientIP(r *http.Request) string {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
