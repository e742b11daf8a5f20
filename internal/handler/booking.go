package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/model"
	"github.com/roadworthy/inspection-platform/internal/service"
)

// BookingHandler exposes the appointment endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler binds the handler to its service.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// createAppointmentRequest is the JSON body of POST /v1/appointments.  The
// customer comes from the token, never from the body.
type createAppointmentRequest struct {
	VehicleID   string    `json:"vehicle_id"`
	InspectorID string    `json:"inspector_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ServiceTier string    `json:"service_tier"`
}

// Create books an appointment.  201 with the appointment on success, 400 with
// the full violation list when scheduling rules are broken, 409 when the slot
// was lost to a concurrent booking.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createAppointmentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	appt, err := h.bookings.Create(c.Request().Context(), middleware.CorrelationID(c), service.CreateAppointmentInput{
		CustomerID:  callerID(c),
		VehicleID:   req.VehicleID,
		InspectorID: req.InspectorID,
		ScheduledAt: req.ScheduledAt,
		ServiceTier: model.ServiceTier(req.ServiceTier),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, appt)
}

// Get returns one appointment owned by the caller.
func (h *BookingHandler) Get(c echo.Context) error {
	appt, err := h.bookings.Get(c.Request().Context(), c.Param("id"), callerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, appt)
}

// List returns the caller's appointments, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	appts, err := h.bookings.List(c.Request().Context(), callerID(c))
	if err != nil {
		return respondError(c, err)
	}
	if appts == nil {
		appts = []model.Appointment{}
	}
	return c.JSON(http.StatusOK, appts)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// Cancel soft-cancels an appointment.  Cancelling twice is a 204 both times.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req cancelRequest
	_ = c.Bind(&req) // reason is optional; an empty body is fine
	err := h.bookings.Cancel(c.Request().Context(), middleware.CorrelationID(c), c.Param("id"), callerID(c), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Slots lists bookable times for a date (?date=YYYY-MM-DD, optional
// ?inspector_id=).  Read-only tier, no auth required.
func (h *BookingHandler) Slots(c echo.Context) error {
	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	slots, err := h.bookings.Slots(c.Request().Context(), date, c.QueryParam("inspector_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"date":  date.Format("2006-01-02"),
		"slots": slots,
	})
}
