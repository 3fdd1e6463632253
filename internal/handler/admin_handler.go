package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/service"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
	"github.com/sudeep-patali/nodue-api/pkg/response"
)

// AdminHandler serves account provisioning, batch lifecycle, and submission
// window management.
type AdminHandler struct {
	provisioning *service.ProvisioningService
	settings     *service.SettingsService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(provisioning *service.ProvisioningService, settings *service.SettingsService) *AdminHandler {
	return &AdminHandler{provisioning: provisioning, settings: settings}
}

// CreateFaculty godoc
// @Summary Provision a faculty account
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.CreateFacultyRequest true "Faculty payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/faculty [post]
func (h *AdminHandler) CreateFaculty(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateFacultyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid faculty payload"))
		return
	}

	res, err := h.provisioning.CreateFaculty(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// CreateStaff godoc
// @Summary Provision a staff verifier account
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.CreateStaffRequest true "Staff payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/staff [post]
func (h *AdminHandler) CreateStaff(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid staff payload"))
		return
	}

	res, err := h.provisioning.CreateStaff(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, res)
}

// CreateStudents godoc
// @Summary Bulk-provision student accounts
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.CreateStudentsRequest true "Students payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/students [post]
func (h *AdminHandler) CreateStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.CreateStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid students payload"))
		return
	}

	results, err := h.provisioning.CreateStudents(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, results)
}

// DeactivateFaculty godoc
// @Summary Retire a staff account
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/faculty/{id} [delete]
func (h *AdminHandler) DeactivateFaculty(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.provisioning.DeactivateFaculty(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// ListStaff godoc
// @Summary List staff profiles
// @Description Used by the admin console and the student submission form
// @Tags Admin
// @Produce json
// @Param department query string false "Filter by department"
// @Success 200 {object} response.Envelope
// @Router /staff [get]
func (h *AdminHandler) ListStaff(c *gin.Context) {
	filter := models.StaffFilter{
		Department: models.Department(c.Query("department")),
		Search:     c.Query("search"),
	}
	active := true
	filter.Active = &active

	staff, err := h.provisioning.ListStaff(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, staff, nil)
}

// CreateBatch godoc
// @Summary Register a batch
// @Tags Admin
// @Accept json
// @Produce json
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/batches [post]
func (h *AdminHandler) CreateBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req struct {
		Name            string `json:"name" binding:"required"`
		CurrentSemester int    `json:"current_semester" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}

	if err := h.provisioning.CreateBatch(c.Request.Context(), claims.UserID, req.Name, req.CurrentSemester); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{"name": req.Name})
}

// AdvanceBatch godoc
// @Summary Advance a batch one semester
// @Tags Admin
// @Produce json
// @Param name path string true "Batch name"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/batches/{name}/advance [post]
func (h *AdminHandler) AdvanceBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.provisioning.AdvanceBatchSemester(c.Request.Context(), claims.UserID, c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// DeleteBatch godoc
// @Summary Delete a batch and its applications
// @Tags Admin
// @Produce json
// @Param name path string true "Batch name"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/batches/{name} [delete]
func (h *AdminHandler) DeleteBatch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.provisioning.DeleteBatch(c.Request.Context(), claims.UserID, c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// DeleteApplication godoc
// @Summary Delete an application
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/applications/{id} [delete]
func (h *AdminHandler) DeleteApplication(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.provisioning.DeleteApplication(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// GetWindow godoc
// @Summary Read a submission window
// @Tags Admin
// @Produce json
// @Param scope path string true "Scope (global or batch name)"
// @Success 200 {object} response.Envelope
// @Router /admin/submission-windows/{scope} [get]
func (h *AdminHandler) GetWindow(c *gin.Context) {
	window, err := h.settings.GetWindow(c.Request.Context(), c.Param("scope"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if window == nil {
		response.JSON(c, http.StatusOK, gin.H{"scope": c.Param("scope"), "configured": false}, nil)
		return
	}
	response.JSON(c, http.StatusOK, window, nil)
}

// SetWindow godoc
// @Summary Create or replace a submission window
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.SetSubmissionWindowRequest true "Window payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/submission-windows [put]
func (h *AdminHandler) SetWindow(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SetSubmissionWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid window payload"))
		return
	}

	window, err := h.settings.SetWindow(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, window, nil)
}

// ClearWindow godoc
// @Summary Remove a submission window
// @Tags Admin
// @Produce json
// @Param scope path string true "Scope (global or batch name)"
// @Success 204 {object} response.Envelope
// @Router /admin/submission-windows/{scope} [delete]
func (h *AdminHandler) ClearWindow(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.settings.ClearWindow(c.Request.Context(), claims.UserID, c.Param("scope")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
