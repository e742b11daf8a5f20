// Package router wires routes, middleware chains and rate-limit tiers for
// each service binary.  Every service gets the correlation middleware and a
// global rate-limit tier first; route groups then layer JWT, role and
// tier-specific limits on top.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/config"
	"github.com/roadworthy/inspection-platform/internal/handler"
	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/resilience"
)

// Base registers the middleware and routes every service shares: the
// correlation id, the global rate-limit tier, and the health check.
func Base(e *echo.Echo, cfg config.RateLimitConfig, limiter *resilience.Limiter) {
	e.Use(middleware.Correlation())
	e.Use(middleware.RateLimit(cfg, limiter, cfg.Global))
	e.GET("/healthz", handler.Health)
}
