package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/pkg/response"
)

type enrollmentService interface {
	Check(ctx context.Context, courseID, studentID string) (*dto.EnrollmentCheck, error)
	Enroll(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	Drop(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
}

// EnrollmentHandler exposes student enrollment endpoints. The student is
// always the authenticated caller.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler builds a new handler.
func NewEnrollmentHandler(service enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Check godoc
// @Summary Check whether the caller is enrolled in a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollment [get]
func (h *EnrollmentHandler) Check(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Check(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Enroll godoc
// @Summary Enroll the caller in a course
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id}/enroll [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.service.Enroll(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.EnrollmentCreated{ID: enrollment.ID})
}

// ListMine godoc
// @Summary List the caller's enrollments with course summaries
// @Tags Enrollments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/enrollments [get]
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListForStudent(c.Request.Context(), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Drop godoc
// @Summary Drop the caller's enrollment
// @Tags Enrollments
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/drop [post]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.service.Drop(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
