package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/service"
	"github.com/noah-isme/course-catalog-api/pkg/response"
)

type certificateService interface {
	Certificate(ctx context.Context, courseID string, student *models.JWTClaims) (*service.Document, error)
	Roster(ctx context.Context, courseID string, actor models.Actor, format dto.RosterFormat) (*service.Document, error)
}

// CertificateHandler serves generated documents.
type CertificateHandler struct {
	service certificateService
}

// NewCertificateHandler builds a new handler.
func NewCertificateHandler(service certificateService) *CertificateHandler {
	return &CertificateHandler{service: service}
}

// Certificate godoc
// @Summary Download the caller's completion certificate
// @Tags Documents
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/certificate [get]
func (h *CertificateHandler) Certificate(c *gin.Context) {
	if _, ok := actorFromContext(c); !ok {
		return
	}
	doc, err := h.service.Certificate(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Payload)
}

// Roster godoc
// @Summary Export the enrollment roster of a course
// @Tags Documents
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Course ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Router /courses/{id}/roster [get]
func (h *CertificateHandler) Roster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	doc, err := h.service.Roster(c.Request.Context(), c.Param("id"), actor, dto.RosterFormat(c.Query("format")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Payload)
}
