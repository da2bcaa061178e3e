package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/bhupendraedzeb-hub/programtic-seo/internal/metrics"
)

// RateLimiter admits or rejects requests per owner.
type RateLimiter interface {
	Allow(key string) bool
	RetryAfter(key string) time.Duration
}

func (s *Server) throttle(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if s.deps.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner := OwnerID(r.Context())
			if !s.deps.Limiter.Allow(owner) {
				wait := s.deps.Limiter.RetryAfter(owner)
				metrics.ObserveRateLimited(route)
				s.logger.Debug("request rate limited", zap.String("owner_id", owner), zap.String("route", route))
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
