package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/pkg/response"
)

type progressService interface {
	SetModuleCompletion(ctx context.Context, courseID, studentID, moduleID string, completed bool) (*dto.ProgressView, error)
	GetProgress(ctx context.Context, courseID, studentID string) (*dto.ProgressView, error)
}

// ProgressHandler exposes module completion tracking.
type ProgressHandler struct {
	service   progressService
	validator *validator.Validate
}

// NewProgressHandler builds a new handler.
func NewProgressHandler(service progressService, validate *validator.Validate) *ProgressHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &ProgressHandler{service: service, validator: validate}
}

// SetModuleCompletion godoc
// @Summary Mark a module complete or incomplete
// @Tags Progress
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param moduleId path string true "Module ID"
// @Param payload body dto.ModuleCompletionRequest true "Completion flag"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/modules/{moduleId}/completion [put]
func (h *ProgressHandler) SetModuleCompletion(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.ModuleCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid completion payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, invalidPayload(err, "completed is required"))
		return
	}
	view, err := h.service.SetModuleCompletion(c.Request.Context(), c.Param("id"), actor.ID, c.Param("moduleId"), *req.Completed)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Get godoc
// @Summary Get the caller's progress in a course
// @Tags Progress
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/progress [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	view, err := h.service.GetProgress(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}
