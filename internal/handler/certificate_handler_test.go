package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/service"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

type certificateServiceMock struct {
	format dto.RosterFormat
	claims *models.JWTClaims
}

func (m *certificateServiceMock) Certificate(ctx context.Context, courseID string, student *models.JWTClaims) (*service.Document, error) {
	m.claims = student
	if courseID == "incomplete" {
		return nil, appErrors.ErrForbidden
	}
	return &service.Document{Filename: "certificate-enr-1.pdf", ContentType: "application/pdf", Payload: []byte("%PDF-1.3")}, nil
}

func (m *certificateServiceMock) Roster(ctx context.Context, courseID string, actor models.Actor, format dto.RosterFormat) (*service.Document, error) {
	m.format = format
	return &service.Document{Filename: "roster-c1.csv", ContentType: "text/csv", Payload: []byte("enrollment_id\n")}, nil
}

func TestCertificateHandlerCertificate(t *testing.T) {
	mockSvc := &certificateServiceMock{}
	handler := NewCertificateHandler(mockSvc)

	c, w := newTestContext(t, http.MethodGet, "/courses/c1/certificate", nil, studentClaims)
	withParams(c, "id", "c1")
	handler.Certificate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "certificate-enr-1.pdf")
	assert.Equal(t, "Student One", mockSvc.claims.FullName)

	c, w = newTestContext(t, http.MethodGet, "/courses/incomplete/certificate", nil, studentClaims)
	withParams(c, "id", "incomplete")
	handler.Certificate(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCertificateHandlerRoster(t *testing.T) {
	mockSvc := &certificateServiceMock{}
	handler := NewCertificateHandler(mockSvc)

	c, w := newTestContext(t, http.MethodGet, "/courses/c1/roster?format=csv", nil, instructorClaims)
	withParams(c, "id", "c1")
	handler.Roster(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.RosterFormatCSV, mockSvc.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
}
