package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
	"github.com/noah-isme/course-catalog-api/pkg/response"
)

type mediaService interface {
	UploadThumbnail(ctx context.Context, courseID string, actor models.Actor, upload dto.MediaUpload) (*models.Course, error)
	UploadVideo(ctx context.Context, courseID, moduleID string, actor models.Actor, upload dto.VideoUpload) (*models.Lesson, error)
	Open(ctx context.Context, token string) (io.ReadCloser, string, error)
}

type videoForm struct {
	Title     string `form:"title"`
	Duration  int    `form:"duration"`
	IsPreview bool   `form:"isPreview"`
}

// MediaHandler accepts multipart uploads and serves stored media.
type MediaHandler struct {
	service mediaService
}

// NewMediaHandler builds a new handler.
func NewMediaHandler(service mediaService) *MediaHandler {
	return &MediaHandler{service: service}
}

// UploadThumbnail godoc
// @Summary Upload a course thumbnail
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param file formData file true "Image file"
// @Success 200 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /courses/{id}/thumbnail [post]
func (h *MediaHandler) UploadThumbnail(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	upload, closeFn, err := formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	course, err := h.service.UploadThumbnail(c.Request.Context(), c.Param("id"), actor, upload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// UploadVideo godoc
// @Summary Upload a lesson video into a module
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param moduleId path string true "Module ID"
// @Param file formData file true "Video file"
// @Param title formData string false "Lesson title"
// @Param duration formData int false "Duration in minutes"
// @Param isPreview formData bool false "Free preview lesson"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /courses/{id}/modules/{moduleId}/videos [post]
func (h *MediaHandler) UploadVideo(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var form videoForm
	if err := c.ShouldBind(&form); err != nil {
		response.Error(c, invalidPayload(err, "invalid video form"))
		return
	}
	upload, closeFn, err := formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeFn()

	lesson, err := h.service.UploadVideo(c.Request.Context(), c.Param("id"), c.Param("moduleId"), actor, dto.VideoUpload{
		MediaUpload: upload,
		Title:       form.Title,
		Duration:    form.Duration,
		IsPreview:   form.IsPreview,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// Download godoc
// @Summary Stream a stored media object
// @Tags Media
// @Param token path string true "Signed media token"
// @Success 200
// @Failure 404 {object} response.Envelope
// @Router /media/{token} [get]
func (h *MediaHandler) Download(c *gin.Context) {
	rc, contentType, err := h.service.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()
	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

func formUpload(c *gin.Context) (dto.MediaUpload, func(), error) {
	header, err := c.FormFile("file")
	if err != nil {
		return dto.MediaUpload{}, nil, appErrors.Validation("file is required", []string{"multipart field file is required"})
	}
	file, err := header.Open()
	if err != nil {
		return dto.MediaUpload{}, nil, invalidPayload(err, "unreadable upload")
	}
	closeFn := func() { _ = file.Close() }
	return dto.MediaUpload{Filename: header.Filename, Size: header.Size, Content: file}, closeFn, nil
}
