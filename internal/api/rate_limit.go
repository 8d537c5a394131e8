package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/photoresize/internal/ratelimit"
)

// renderCost is charged for calls that decode or encode pixels.
const renderCost = 4

type RateLimiter interface {
	Take(ctx context.Context, subject string, cost int) (ratelimit.Decision, error)
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	if s.rateLimiter == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cost := requestCost(r)
		if cost == 0 {
			next.ServeHTTP(w, r)
			return
		}

		route := routeLabel(r.URL.Path)
		user := strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader))
		if user == "" {
			user = "anonymous"
		}
		subject := user + ":" + route

		decision, err := s.rateLimiter.Take(r.Context(), subject, cost)
		if err != nil {
			// Fail open on limiter errors.
			s.logger.Printf("rate limiter unavailable subject=%s err=%v", subject, err)
			next.ServeHTTP(w, r)
			return
		}

		if decision.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if decision.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Retry-After", strconv.Itoa(max(1, int(decision.RetryAfter.Round(time.Second)/time.Second))))
		s.metrics.rateLimitRejected.WithLabelValues(route).Inc()
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
	})
}

// requestCost returns the tokens a request takes. Reads and routes outside
// /v1 are free; uploads and renders cost renderCost; other writes cost one.
func requestCost(r *http.Request) int {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return 0
	}

	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case strings.HasPrefix(path, "/v1/jobs"):
		return 1
	case !strings.HasPrefix(path, "/v1/sessions"):
		return 0
	case path == "/v1/sessions":
		return renderCost
	}

	switch path[strings.LastIndexByte(path, '/')+1:] {
	case "image", "export", "resize", "crop", "remove-background":
		return renderCost
	default:
		return 1
	}
}
