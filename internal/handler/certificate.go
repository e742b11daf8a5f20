package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/service"
)

// CertificateHandler exposes public verification and administrative
// revocation.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler binds the handler to its service.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Verify is the public, unauthenticated certificate check.  The signature is
// re-derived from stored fields on every call, so a tampered row verifies as
// invalid.
func (h *CertificateHandler) Verify(c echo.Context) error {
	v, err := h.certificates.Verify(c.Request().Context(), c.Param("number"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Revoke marks a certificate revoked.  Admin role enforced by the route.
func (h *CertificateHandler) Revoke(c echo.Context) error {
	if err := h.certificates.Revoke(c.Request().Context(), middleware.CorrelationID(c), c.Param("number")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
