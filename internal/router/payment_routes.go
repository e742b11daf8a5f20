package router

import (
	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/config"
	"github.com/roadworthy/inspection-platform/internal/handler"
	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/resilience"
)

// RegisterPayment wires the payment service routes.  Checkout and capture
// sit in the tight payment tier; the refund endpoint is admin-only and uses
// the auth tier so that a brute-forced admin token trips the lockout.
func RegisterPayment(e *echo.Echo, p *handler.PaymentHandler, cfg config.RateLimitConfig, limiter *resilience.Limiter, jwtSecret string) {
	g := e.Group("/v1/payments")
	g.Use(middleware.JWTAuth(jwtSecret))

	pay := middleware.RateLimit(cfg, limiter, cfg.Payment)
	g.POST("/checkout", p.Checkout, middleware.RequireRole("customer", "admin"), pay)
	g.POST("/:id/capture", p.Capture, middleware.RequireRole("customer", "admin"), pay)
	g.GET("/:id", p.Get, middleware.RateLimit(cfg, limiter, cfg.Read))

	g.POST("/:id/refund", p.Refund,
		middleware.RequireRole("admin"),
		middleware.RateLimit(cfg, limiter, cfg.Auth))
}
