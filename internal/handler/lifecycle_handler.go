package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/pkg/response"
)

type lifecycleService interface {
	Publish(ctx context.Context, courseID string, actor models.Actor) (*models.Course, error)
	Unpublish(ctx context.Context, courseID string, actor models.Actor) (*models.Course, error)
	Archive(ctx context.Context, courseID string, actor models.Actor) (*models.Course, error)
}

// LifecycleHandler exposes course status transitions.
type LifecycleHandler struct {
	service lifecycleService
}

// NewLifecycleHandler builds a new handler.
func NewLifecycleHandler(service lifecycleService) *LifecycleHandler {
	return &LifecycleHandler{service: service}
}

// Publish godoc
// @Summary Publish a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/publish [post]
func (h *LifecycleHandler) Publish(c *gin.Context) {
	h.transition(c, h.service.Publish)
}

// Unpublish godoc
// @Summary Return a published course to draft
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/unpublish [post]
func (h *LifecycleHandler) Unpublish(c *gin.Context) {
	h.transition(c, h.service.Unpublish)
}

// Archive godoc
// @Summary Archive a course permanently
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/archive [post]
func (h *LifecycleHandler) Archive(c *gin.Context) {
	h.transition(c, h.service.Archive)
}

func (h *LifecycleHandler) transition(c *gin.Context, apply func(context.Context, string, models.Actor) (*models.Course, error)) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	course, err := apply(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
