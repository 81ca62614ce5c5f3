package handlers

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dctlabs/dct-backend/api/apperr"
)

// Wallet challenge issuance is an unauthenticated write, so the wallet
// endpoints are rate limited per client IP.
const (
	walletRatePerMinute = 30
	walletRateBurst     = 10
	limiterStaleAfter   = 10 * time.Minute
)

type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiter() *rateLimiter {
	return &rateLimiter{limiters: make(map[string]*limiterEntry)}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &limiterEntry{
			limiter: rate.NewLimiter(rate.Every(time.Minute/walletRatePerMinute), walletRateBurst),
		}
		rl.limiters[ip] = entry
		rl.evictStaleLocked()
	}
	entry.lastSeen = time.Now()
	return entry.limiter.Allow()
}

// evictStaleLocked drops entries not seen recently. Called opportunistically
// on inserts; the map stays small on a serverless runtime anyway.
func (rl *rateLimiter) evictStaleLocked() {
	cutoff := time.Now().Add(-limiterStaleAfter)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

// rateLimitMiddleware rejects callers above the per-IP rate with 429.
func (h *Handler) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.allow(r.RemoteAddr) {
			h.log.Warn("rate limit exceeded", "ip", r.RemoteAddr, "path", r.URL.Path)
			h.respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// methodNotAllowed is chi's 405 handler, kept JSON like everything else.
func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respondError(w, r, apperr.New(apperr.KindMethod, "method not allowed"))
}
