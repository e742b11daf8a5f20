package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/config"
	"github.com/roadworthy/inspection-platform/internal/resilience"
)

// RateLimit returns a middleware enforcing the given tier's budget through
// the shared limiter.  Standard X-RateLimit-* headers go on every response;
// a rejected request gets 429 with Retry-After.  When the counter store is
// unreachable the request is allowed through: availability over strictness.
func RateLimit(cfg config.RateLimitConfig, limiter *resilience.Limiter, tier config.TierConfig) echo.MiddlewareFunc {
	if !cfg.Enabled || limiter == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error { return next(c) }
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := identifier(c)
			d, err := limiter.Allow(c.Request().Context(), tier, id)
			if err != nil {
				if cfg.Debug {
					c.Logger().Warnf("[ratelimit] store error for %s/%s: %v", tier.Name, id, err)
				}
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.Itoa(int(math.Ceil(d.ResetAfter.Seconds()))))

			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				h.Set("Retry-After", strconv.Itoa(secs))
				if cfg.Debug {
					c.Logger().Infof("[ratelimit] block tier=%s id=%s retry=%ds", tier.Name, id, secs)
				}
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too_many_requests",
					"message":     "rate limit exceeded",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
