// Package iprate throttles requests per client address.
package iprate

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/time/rate"
)

const (
	defaultIdleTTL = time.Hour
	maxAddresses   = 1 << 20
)

// Limiter keeps a token bucket for every address seen within the idle TTL.
type Limiter struct {
	r       rate.Limit
	b       int
	idleTTL time.Duration

	mu      sync.Mutex
	buckets *ristretto.Cache
}

type Option func(*Limiter)

// WithIdleTTL sets how long a bucket is remembered after the address was last seen.
func WithIdleTTL(d time.Duration) Option {
	return func(l *Limiter) {
		l.idleTTL = d
	}
}

// NewLimiter creates a Limiter replenishing tokens at rate r and allowing bursts of b:
//
//	limiter := NewLimiter(rate.Limit(0.2), 5) // one sign-in every 5s with bursts of 5
func NewLimiter(r rate.Limit, b int, opts ...Option) *Limiter {
	l := &Limiter{r: r, b: b, idleTTL: defaultIdleTTL}
	for _, opt := range opts {
		opt(l)
	}
	// A config this small cannot be rejected.
	l.buckets, _ = ristretto.NewCache(&ristretto.Config{
		NumCounters: 10 * maxAddresses,
		MaxCost:     maxAddresses,
		BufferItems: 64,
	})
	return l
}

// Stop releases the bucket cache.
func (l *Limiter) Stop() {
	l.buckets.Close()
}

// GetLimiter returns the bucket for ip, creating it on first sight.
func (l *Limiter) GetLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.buckets.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.r, l.b)
	}
	// Setting again on every hit extends the idle TTL.
	l.buckets.SetWithTTL(ip, lim, 1, l.idleTTL)
	l.buckets.Wait()
	return lim.(*rate.Limiter)
}

// Middleware rejects requests from addresses that exhausted their allowance with 429.
// onThrottle, if not nil, is called for every rejected request.
func (l *Limiter) Middleware(onThrottle func(r *http.Request)) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(1 / float64(l.r))))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.GetLimiter(clientIP(r)).Allow() {
				next.ServeHTTP(w, r)
				return
			}
			if onThrottle != nil {
				onThrottle(r)
			}
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
