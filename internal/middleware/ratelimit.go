package middleware

import (
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/keyxmakerx/chatboard/internal/apperror"
)

// throttleEntry tracks the token bucket for a single client address.
type throttleEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Throttle returns middleware that limits each client address to rps
// requests per second with the given burst. It guards the process from
// floods; the message policy itself lives in the spam guard. A
// non-positive rps disables it.
func Throttle(rps float64, burst int) echo.MiddlewareFunc {
	if rps <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst < 1 {
		burst = 1
	}

	var mu sync.Mutex
	entries := make(map[string]*throttleEntry)

	// Background cleanup of idle buckets every minute.
	go func() {
		for {
			time.Sleep(time.Minute)
			mu.Lock()
			cutoff := time.Now().Add(-3 * time.Minute)
			for ip, entry := range entries {
				if entry.lastSeen.Before(cutoff) {
					delete(entries, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			mu.Lock()
			entry, ok := entries[ip]
			if !ok {
				entry = &throttleEntry{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
				entries[ip] = entry
			}
			entry.lastSeen = time.Now()
			allowed := entry.limiter.Allow()
			mu.Unlock()

			if !allowed {
				return apperror.NewTooManyRequests("Too many requests. Please slow down.").
					WithRetryAfter(1 / rps)
			}
			return next(c)
		}
	}
}
