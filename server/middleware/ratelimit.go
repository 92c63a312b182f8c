package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/scribe/errors"
	"github.com/kbukum/scribe/resilience"
)

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	// RequestsPerMinute is the sustained rate per client.
	RequestsPerMinute int
	// Burst is the bucket size. Defaults to RequestsPerMinute.
	Burst int
	// PathPrefix limits only matching paths. Empty limits everything.
	PathPrefix string
	// KeyFunc extracts the client key. Defaults to the remote IP.
	KeyFunc func(*http.Request) string
	// IdleTTL evicts buckets unused for this long. Defaults to 10 minutes.
	IdleTTL time.Duration
}

// RateLimit returns middleware that gives each client its own token bucket
// and answers 429 with a RATE_LIMITED body once the bucket is empty.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerMinute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IPBasedKey
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	buckets := &clientBuckets{cfg: cfg, clients: make(map[string]*clientBucket)}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.PathPrefix != "" && !strings.HasPrefix(r.URL.Path, cfg.PathPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			if !buckets.allow(cfg.KeyFunc(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, errors.New(errors.ErrCodeRateLimited,
					"Too many requests. Wait a moment and try again.", http.StatusTooManyRequests))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IPBasedKey extracts the client IP for use as a rate limit key.
func IPBasedKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type clientBucket struct {
	limiter  *resilience.RateLimiter
	lastSeen time.Time
}

type clientBuckets struct {
	cfg RateLimitConfig

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

func (b *clientBuckets) allow(key string) bool {
	now := time.Now()
	b.mu.Lock()
	if now.Sub(b.lastSweep) > b.cfg.IdleTTL {
		for k, c := range b.clients {
			if now.Sub(c.lastSeen) > b.cfg.IdleTTL {
				delete(b.clients, k)
			}
		}
		b.lastSweep = now
	}
	c, ok := b.clients[key]
	if !ok {
		c = &clientBucket{limiter: resilience.NewRateLimiter(resilience.RateLimiterConfig{
			Name:  "http:" + key,
			Rate:  float64(b.cfg.RequestsPerMinute) / 60,
			Burst: b.cfg.Burst,
		})}
		b.clients[key] = c
	}
	c.lastSeen = now
	b.mu.Unlock()
	return c.limiter.Allow()
}
