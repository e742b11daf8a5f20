package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/service"
)

// PaymentHandler exposes checkout, capture and refund.
type PaymentHandler struct {
	payments *service.PaymentService
}

// NewPaymentHandler binds the handler to its service.
func NewPaymentHandler(payments *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type checkoutRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Checkout opens a gateway order for an appointment.  The price is derived
// from the appointment's tier server-side.
func (h *PaymentHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil || req.AppointmentID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "appointment_id is required"})
	}
	res, err := h.payments.Checkout(c.Request().Context(), middleware.CorrelationID(c), req.AppointmentID, callerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Capture completes the payment after customer approval.  Idempotent: a
// repeated capture returns the same completed payment.
func (h *PaymentHandler) Capture(c echo.Context) error {
	p, err := h.payments.Capture(c.Request().Context(), middleware.CorrelationID(c), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Get returns one payment.
func (h *PaymentHandler) Get(c echo.Context) error {
	p, err := h.payments.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Refund flags a completed payment refunded.  Admin only.
func (h *PaymentHandler) Refund(c echo.Context) error {
	if err := h.payments.Refund(c.Request().Context(), middleware.CorrelationID(c), c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
