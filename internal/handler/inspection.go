package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/roadworthy/inspection-platform/internal/middleware"
	"github.com/roadworthy/inspection-platform/internal/model"
	"github.com/roadworthy/inspection-platform/internal/service"
)

// InspectionHandler exposes the inspector-facing checkpoint workflow.
type InspectionHandler struct {
	inspections *service.InspectionService
}

// NewInspectionHandler binds the handler to its service.
func NewInspectionHandler(inspections *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{inspections: inspections}
}

// Get returns an inspection with its checkpoints.
func (h *InspectionHandler) Get(c echo.Context) error {
	ins, err := h.inspections.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ins)
}

// Start moves a pending inspection to in_progress.  The authenticated
// inspector becomes the assigned inspector.
func (h *InspectionHandler) Start(c echo.Context) error {
	ins, err := h.inspections.Start(c.Request().Context(), middleware.CorrelationID(c), c.Param("id"), callerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ins)
}

type checkpointRequest struct {
	Status    string   `json:"status"`
	Notes     string   `json:"notes"`
	PhotoRefs []string `json:"photo_refs"`
}

// UpdateCheckpoint records one checkpoint outcome.  The checkpoint name comes
// from the path; re-submitting a name overwrites the previous outcome.
func (h *InspectionHandler) UpdateCheckpoint(c echo.Context) error {
	var req checkpointRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	ins, err := h.inspections.UpdateCheckpoint(c.Request().Context(), c.Param("id"), callerID(c), service.CheckpointInput{
		Name:      c.Param("name"),
		Status:    model.CheckpointStatus(req.Status),
		Notes:     req.Notes,
		PhotoRefs: req.PhotoRefs,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ins)
}

// Complete seals the inspection and computes the overall result.  400 with
// the pending checkpoint names while any required checkpoint is unresolved.
func (h *InspectionHandler) Complete(c echo.Context) error {
	ins, err := h.inspections.Complete(c.Request().Context(), middleware.CorrelationID(c), c.Param("id"), callerID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, ins)
}
