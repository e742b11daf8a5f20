package middleware

// identity.go holds the identifier resolution shared by the rate-limit
// middleware.  The limiter counts per caller, not per route, so the
// identifier must be stable across requests: an authenticated user id when
// available, a hash of the bearer token for tokens the service has not
// validated yet (the auth tier runs before JWTAuth), and finally the client
// IP for anonymous traffic.

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/labstack/echo/v4"
)

// identifier resolves the rate-limit identity for a request, in priority
// order: authenticated user id, hashed bearer token, client IP.
func identifier(c echo.Context) string {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return "user:" + v
	}
	if auth := c.Request().Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		sum := sha256.Sum256([]byte(strings.TrimPrefix(auth, "Bearer ")))
		return "token:" + hex.EncodeToString(sum[:8])
	}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	return "ip:" + ip
}
