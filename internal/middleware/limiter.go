package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"storefront-be/internal/utils"

	"golang.org/x/time/rate"
)

// Rate limit tiers
const (
	// auth and payment (strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	limitGeneral = rate.Limit(10)
	burstGeneral = 20

	// trusted internal callers
	limitInternal = rate.Limit(100)
	burstInternal = 200

	visitorTTL = 3 * time.Minute
)

var strictPrefixes = []string{"/api/auth/", "/api/payment/"}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per caller and tier.
type RateLimiter struct {
	mu          sync.Mutex
	visitors    map[string]*visitor
	internalKey string
	now         func() time.Time
}

func NewRateLimiter(internalKey string) *RateLimiter {
	return &RateLimiter{
		visitors:    make(map[string]*visitor),
		internalKey: internalKey,
		now:         time.Now,
	}
}

// Run evicts idle visitors every minute until ctx is done.
func (l *RateLimiter) Run(ctx context.Context) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.cleanup()
		}
	}
}

func (l *RateLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if l.now().Sub(v.lastSeen) > visitorTTL {
			delete(l.visitors, key)
		}
	}
}

func (l *RateLimiter) get(key string, r rate.Limit, b int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(r, b)}
		l.visitors[key] = v
	}
	v.lastSeen = l.now()
	return v.limiter
}

// Middleware rejects callers that exhausted their bucket with 429. The same
// caller has separate quotas per tier.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit, burst, tier := l.tier(r)
		key := identity(r) + ":" + tier

		if !l.get(key, limit, burst).Allow() {
			utils.WriteJSONError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) tier(r *http.Request) (rate.Limit, int, string) {
	if l.internalKey != "" && r.Header.Get("X-Service-Auth") == l.internalKey {
		return limitInternal, burstInternal, "internal"
	}
	for _, p := range strictPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			return limitStrict, burstStrict, "strict"
		}
	}
	return limitGeneral, burstGeneral, "general"
}

// identity prefers the authenticated user, then a client device id, then the
// remote ip.
func identity(r *http.Request) string {
	if id, ok := utils.GetUserIDFromContext(r.Context()); ok {
		return "user:" + id.String()
	}
	if device := r.Header.Get("X-Device-ID"); device != "" {
		return "device:" + device
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return "ip:" + ip
}
