package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/service"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
	"github.com/sudeep-patali/nodue-api/pkg/response"
)

// VerificationHandler serves the verifier surface: stage queues and
// decisions.
type VerificationHandler struct {
	verifications *service.VerificationService
}

// NewVerificationHandler creates a new handler.
func NewVerificationHandler(verifications *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

// Queue godoc
// @Summary Stage queue
// @Description Lists applications waiting on the given stage
// @Tags Verification
// @Produce json
// @Param stage path string true "Stage name"
// @Param department query string false "Filter by department"
// @Param batch query string false "Filter by batch"
// @Param semester query int false "Filter by semester"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /verification/{stage}/queue [get]
func (h *VerificationHandler) Queue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.ApplicationFilter{
		Stage:      models.Stage(c.Param("stage")),
		Department: models.Department(c.Query("department")),
		Batch:      c.Query("batch"),
	}
	if raw := c.Query("semester"); raw != "" {
		semester, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "semester must be a number"))
			return
		}
		filter.Semester = semester
	}
	filter.Limit, filter.Offset = pageParams(c)

	items, err := h.verifications.Queue(c.Request.Context(), claims, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, items, nil)
}

// Decide godoc
// @Summary Approve or reject a stage
// @Description Records the caller's decision on a single-approver stage
// @Tags Verification
// @Accept json
// @Produce json
// @Param stage path string true "Stage name"
// @Param id path string true "Application ID"
// @Param payload body dto.StageDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /verification/{stage}/applications/{id} [post]
func (h *VerificationHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.StageDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	res, err := h.verifications.Decide(c.Request.Context(), claims, c.Param("id"), c.Param("stage"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Finalize godoc
// @Summary Final lab sign-off
// @Description Approves or rejects the combined payment and lab tail
// @Tags Verification
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body dto.StageDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /verification/lab/applications/{id}/finalize [post]
func (h *VerificationHandler) Finalize(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.StageDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	res, err := h.verifications.Finalize(c.Request.Context(), claims, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit = 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}
