// Package handler contains the HTTP handlers of the three public services.
// Handlers bind and sanity-check input, delegate to the service layer, and
// translate its error types into HTTP responses.  Every error body carries
// the request's correlation id so a support engineer can find the saga in the
// logs.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/resilience"
	"github.com/roadworthy/inspection-platform/internal/service"
)

// respondError maps a service-layer error to an HTTP response.  Unknown
// errors become an opaque 500; the detail stays in the logs.
func respondError(c echo.Context, err error) error {
	corr := middleware.CorrelationID(c)

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":          "validation_failed",
			"violations":     ve.Violations,
			"correlation_id": corr,
		})
	}
	var ce *service.ConflictError
	if errors.As(err, &ce) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":          "conflict",
			"message":        ce.Msg,
			"correlation_id": corr,
		})
	}
	var nf *service.NotFoundError
	if errors.As(err, &nf) {
		return c.JSON(http.StatusNotFound, echo.Map{
			"error":          "not_found",
			"message":        nf.Error(),
			"correlation_id": corr,
		})
	}
	var fe *service.ForbiddenError
	if errors.As(err, &fe) {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":          "forbidden",
			"message":        fe.Msg,
			"correlation_id": corr,
		})
	}
	var de *service.DownstreamError
	if errors.As(err, &de) {
		// An open breaker means the downstream is known-bad: tell the caller
		// to come back later instead of letting requests pile up.
		if errors.Is(de, resilience.ErrOpen) {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"error":          "downstream_unavailable",
				"message":        "payment gateway is temporarily unavailable",
				"correlation_id": corr,
			})
		}
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":          "downstream_error",
			"message":        "payment gateway call failed",
			"correlation_id": corr,
		})
	}

	c.Logger().Errorf("unhandled error: %v (corr=%s)", err, corr)
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"error":          "internal",
		"correlation_id": corr,
	})
}

// callerID returns the authenticated user id stored by JWTAuth.
func callerID(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok {
		return v
	}
	return ""
}
