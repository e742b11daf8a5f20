package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// HeaderCorrelationID is accepted on requests and always set on responses.
const HeaderCorrelationID = "X-Correlation-ID"

// contextKeyCorrelation is the Echo context key the id is stored under.
const contextKeyCorrelation = "correlation_id"

// Correlation threads a correlation id through every request.  It accepts
// X-Correlation-ID (or X-Request-ID) from the caller, generates a UUID when
// absent, stores the id in context and echoes it back on the response.  The
// same id rides in every event envelope the request produces, so one saga can
// be traced end to end across services.
func Correlation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Request().Header.Get(HeaderCorrelationID)
			if id == "" {
				id = c.Request().Header.Get("X-Request-ID")
			}
			if id == "" {
				id = uuid.NewString()
			}
			c.Set(contextKeyCorrelation, id)
			c.Response().Header().Set(HeaderCorrelationID, id)
			return next(c)
		}
	}
}

// CorrelationID returns the request's correlation id, or "" outside the
// Correlation middleware.
func CorrelationID(c echo.Context) string {
	if v, ok := c.Get(contextKeyCorrelation).(string); ok {
		return v
	}
	return ""
}
