package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/service"
	"github.com/noah-isme/course-catalog-api/pkg/response"
)

type courseService interface {
	Create(ctx context.Context, req dto.CreateCourseRequest, actor models.Actor) (*models.Course, error)
	Update(ctx context.Context, id string, req dto.UpdateCourseRequest, actor models.Actor) (*models.Course, error)
	Get(ctx context.Context, id string, viewer models.Actor) (*models.Course, error)
	List(ctx context.Context, query dto.CourseListQuery, viewer models.Actor) (*dto.CoursePage, error)
	Search(ctx context.Context, term string, query dto.CourseListQuery, viewer models.Actor) (*dto.CoursePage, error)
	Delete(ctx context.Context, id string, actor models.Actor) error
}

// CourseHandler exposes course authoring and catalog endpoints.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler builds a new handler.
func NewCourseHandler(service courseService) *CourseHandler {
	return &CourseHandler{service: service}
}

// Create godoc
// @Summary Create a draft course
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid course payload"))
		return
	}
	course, err := h.service.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.CourseCreated{ID: course.ID})
}

// Validate godoc
// @Summary Check a course definition without saving it
// @Description Returns every violated rule at once.
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CourseCandidate true "Candidate course"
// @Success 200 {object} response.Envelope
// @Router /courses/validate [post]
func (h *CourseHandler) Validate(c *gin.Context) {
	var candidate dto.CourseCandidate
	if err := c.ShouldBindJSON(&candidate); err != nil {
		response.Error(c, invalidPayload(err, "invalid course payload"))
		return
	}
	response.JSON(c, http.StatusOK, service.ValidateCourse(candidate), nil)
}

// Update godoc
// @Summary Update course fields
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.UpdateCourseRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id} [patch]
func (h *CourseHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err, "invalid course payload"))
		return
	}
	course, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Get godoc
// @Summary Get a course with its reviews
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.service.Get(c.Request.Context(), c.Param("id"), viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// List godoc
// @Summary List courses, newest first
// @Tags Courses
// @Produce json
// @Param status query string false "draft, published or archived"
// @Param category query string false "Category"
// @Param level query string false "Level"
// @Param instructorId query string false "Instructor ID"
// @Param limit query int false "Page size"
// @Param cursor query string false "Continuation cursor"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var query dto.CourseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid list filters"))
		return
	}
	page, err := h.service.List(c.Request.Context(), query, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, &page.Page)
}

// Search godoc
// @Summary Search courses by title, description or category
// @Tags Courses
// @Produce json
// @Param q query string true "Search term"
// @Param status query string false "draft, published or archived"
// @Param category query string false "Category"
// @Param level query string false "Level"
// @Param instructorId query string false "Instructor ID"
// @Param limit query int false "Page size"
// @Param cursor query string false "Continuation cursor"
// @Success 200 {object} response.Envelope
// @Router /courses/search [get]
func (h *CourseHandler) Search(c *gin.Context) {
	var query dto.CourseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, invalidPayload(err, "invalid search filters"))
		return
	}
	page, err := h.service.Search(c.Request.Context(), query.Q, query, viewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page.Items, &page.Page)
}

// Delete godoc
// @Summary Delete a course
// @Tags Courses
// @Param id path string true "Course ID"
// @Success 204
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
