// Package ratelimit throttles the reputation API per client address and per
// reported provider.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	idleTTLDefault = 10 * time.Minute
	sweepEvery     = 512

	unknownClient = "unknown"
)

// Scope separates bucket namespaces so a client and a provider never share tokens.
type Scope string

const (
	ScopeClient   Scope = "client"
	ScopeProvider Scope = "provider"
)

type bucketKey struct {
	scope Scope
	id    string
}

type bucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// Limiter holds one token bucket per scoped id. Buckets idle for longer than
// the idle TTL are dropped by a sweep every sweepEvery checks.
type Limiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	checks  uint64
}

// New creates a limiter. A nil limiter allows everything and is returned
// when rps or burst is not positive, so a zero config value disables limiting.
func New(rps float64, burst int, idleTTL time.Duration) *Limiter {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	if idleTTL <= 0 {
		idleTTL = idleTTLDefault
	}
	return &Limiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		now:     time.Now,
		buckets: make(map[bucketKey]*bucket),
	}
}

// Allow takes one token from the bucket of id in scope. Empty ids are not limited.
func (l *Limiter) Allow(scope Scope, id string) bool {
	if l == nil {
		return true
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return true
	}
	now := l.now()
	k := bucketKey{scope: scope, id: id}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[k]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[k] = b
	}
	b.seen = now
	allowed := b.tokens.AllowN(now, 1)

	if l.checks++; l.checks%sweepEvery == 0 {
		l.sweep(now)
	}
	return allowed
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweep(now time.Time) {
	cutoff := now.Add(-l.idleTTL)
	for k, b := range l.buckets {
		if b.seen.Before(cutoff) {
			delete(l.buckets, k)
		}
	}
}

// ClientIP returns the host of the request remote address.
func ClientIP(r *http.Request) string {
	remote := strings.TrimSpace(r.RemoteAddr)
	if remote == "" {
		return unknownClient
	}
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	if host = strings.TrimSpace(host); host == "" {
		return unknownClient
	}
	return host
}

// Reject writes the 429 response.
func Reject(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}` + "\n"))
}

// Middleware rejects requests once the bucket of the client address is empty.
func Middleware(l *Limiter, next http.Handler) http.Handler {
	if l == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(ScopeClient, ClientIP(r)) {
			Reject(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
