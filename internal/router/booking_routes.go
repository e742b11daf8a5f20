package router

import (
	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/config"
	"github.com/roadworthy/inspection-platform/internal/handler"
	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/resilience"
)

// RegisterBooking wires the booking service routes.  Slot enumeration is
// public under the read tier; everything else needs a customer token and sits
// in the booking tier.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, cfg config.RateLimitConfig, limiter *resilience.Limiter, jwtSecret string) {
	// Public slot browsing so customers can pick a time before signing in.
	e.GET("/v1/slots", b.Slots, middleware.RateLimit(cfg, limiter, cfg.Read))

	g := e.Group("/v1/appointments")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("customer", "admin"))

	g.POST("", b.Create, middleware.RateLimit(cfg, limiter, cfg.Booking))
	g.POST("/:id/cancel", b.Cancel, middleware.RateLimit(cfg, limiter, cfg.Booking))
	g.GET("", b.List, middleware.RateLimit(cfg, limiter, cfg.Read))
	g.GET("/:id", b.Get, middleware.RateLimit(cfg, limiter, cfg.Read))
}
