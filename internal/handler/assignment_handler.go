package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/service"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
	"github.com/sudeep-patali/nodue-api/pkg/response"
)

// AssignmentHandler serves the faculty clearance surface.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler creates a new handler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// Pending godoc
// @Summary Pending subject assignments
// @Description Lists the caller's unreviewed assignment rows
// @Tags Faculty
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /faculty/assignments [get]
func (h *AssignmentHandler) Pending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	rows, err := h.assignments.Pending(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, rows, nil)
}

// Review godoc
// @Summary Review subject assignments
// @Description Applies the caller's decision to their rows of an application
// @Tags Faculty
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.AssignmentReviewRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /faculty/applications/{id}/review [post]
func (h *AssignmentHandler) Review(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AssignmentReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	res, err := h.assignments.Review(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}
