package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/session"
)

// Config selects the bucket a request counts against and its budget.
type Config struct {
	Key    func(*http.Request) string
	Window time.Duration
	Max    int
}

// Handler throttles requests per Config.Key. Limiter errors are reported to
// OnError and the request is let through.
type Handler struct {
	Limiter Limiter
	Config  Config
	OnError func(error)
	Now     func() time.Time
}

// BySessionOrIP buckets by cart session, or by client IP before one is resolved.
func BySessionOrIP(r *http.Request) string {
	if id, ok := session.FromContext(r.Context()); ok {
		return "session:" + id
	}
	return "ip:" + common.ClientIP(r)
}

func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Config.Key == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), h.Config.Key(r), h.Config.Window, h.Config.Max)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		h.writeHeaders(w.Header(), remaining, resetAt, allowed)
		if !allowed {
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", map[string]any{
				"resetAt": resetAt.UTC(),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h Handler) writeHeaders(hdr http.Header, remaining int, resetAt time.Time, allowed bool) {
	hdr.Set("X-RateLimit-Limit", strconv.Itoa(max(h.Config.Max, 0)))
	hdr.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	hdr.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	if allowed {
		return
	}
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	wait := int(resetAt.Sub(now()).Seconds())
	hdr.Set("Retry-After", strconv.Itoa(max(wait, 0)))
}
