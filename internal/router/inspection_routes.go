package router

import (
	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/config"
	"github.com/roadworthy/inspection-platform/internal/handler"
	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/resilience"
)

// RegisterInspection wires the inspection service routes.  The checkpoint
// workflow is inspector-only; certificate verification is public so anyone
// holding a certificate number (insurers, buyers) can check it.
func RegisterInspection(e *echo.Echo, i *handler.InspectionHandler, cert *handler.CertificateHandler,
	cfg config.RateLimitConfig, limiter *resilience.Limiter, jwtSecret string) {

	e.GET("/v1/certificates/:number/verify", cert.Verify,
		middleware.RateLimit(cfg, limiter, cfg.Read))

	g := e.Group("/v1/inspections")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("inspector", "admin"))

	book := middleware.RateLimit(cfg, limiter, cfg.Booking)
	g.GET("/:id", i.Get, middleware.RateLimit(cfg, limiter, cfg.Read))
	g.POST("/:id/start", i.Start, book)
	g.PUT("/:id/checkpoints/:name", i.UpdateCheckpoint, book)
	g.POST("/:id/complete", i.Complete, book)

	e.POST("/v1/certificates/:number/revoke", cert.Revoke,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("admin"),
		middleware.RateLimit(cfg, limiter, cfg.Auth))
}
