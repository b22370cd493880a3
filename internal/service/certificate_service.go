package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
	"github.com/noah-isme/course-catalog-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	RenderCertificate(cert export.Certificate) ([]byte, error)
}

type enrollmentFinder interface {
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
}

type rosterSource interface {
	Roster(ctx context.Context, courseID string, actor models.Actor) (*models.Course, []models.Enrollment, error)
}

// Document is a rendered file ready for download.
type Document struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// CertificateService renders completion certificates and enrollment rosters.
type CertificateService struct {
	enrollments enrollmentFinder
	courses     courseReader
	roster      rosterSource
	csv         csvRenderer
	pdf         pdfRenderer
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewCertificateService constructs the service with the default renderers
// when none are supplied.
func NewCertificateService(enrollments enrollmentFinder, courses courseReader, roster rosterSource, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &CertificateService{
		enrollments: enrollments,
		courses:     courses,
		roster:      roster,
		csv:         csv,
		pdf:         pdf,
		metrics:     metrics,
		logger:      logger,
	}
}

// Certificate renders the PDF certificate of a completed enrollment.
func (s *CertificateService) Certificate(ctx context.Context, courseID string, student *models.JWTClaims) (*Document, error) {
	if student == nil {
		return nil, appErrors.ErrUnauthorized
	}
	enrollment, err := s.enrollments.FindByCourseAndStudent(ctx, courseID, student.UserID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "get enrollment", err)
	}
	if enrollment.Status != models.EnrollmentStatusCompleted || enrollment.CompletedAt == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate is available after the course is completed")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "get course", err)
	}

	name := strings.TrimSpace(student.FullName)
	if name == "" {
		name = student.UserID
	}
	payload, err := s.pdf.RenderCertificate(export.Certificate{
		StudentName:   name,
		CourseTitle:   course.Title,
		InstructorID:  course.InstructorID,
		CompletedAt:   *enrollment.CompletedAt,
		TotalDuration: course.TotalDuration,
		Reference:     enrollment.ID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render certificate")
	}
	return &Document{
		Filename:    fmt.Sprintf("certificate-%s.pdf", enrollment.ID),
		ContentType: "application/pdf",
		Payload:     payload,
	}, nil
}

// Roster exports every enrollment of the course as CSV or PDF.
func (s *CertificateService) Roster(ctx context.Context, courseID string, actor models.Actor, format dto.RosterFormat) (*Document, error) {
	if format == "" {
		format = dto.RosterFormatCSV
	}
	if format != dto.RosterFormatCSV && format != dto.RosterFormatPDF {
		return nil, appErrors.Validation("invalid roster format", []string{"format must be one of [csv pdf]"})
	}
	course, enrollments, err := s.roster.Roster(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}

	dataset := rosterDataset(course, enrollments)
	var (
		payload     []byte
		contentType string
	)
	switch format {
	case dto.RosterFormatPDF:
		payload, err = s.pdf.Render(dataset)
		contentType = "application/pdf"
	default:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster")
	}
	return &Document{
		Filename:    fmt.Sprintf("roster-%s.%s", course.ID, format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func rosterDataset(course *models.Course, enrollments []models.Enrollment) export.Dataset {
	dataset := export.Dataset{
		Title:   course.Title + " roster",
		Headers: []string{"enrollment_id", "student_id", "status", "progress", "completed_modules", "enrolled_at", "completed_at"},
		Rows:    make([][]string, 0, len(enrollments)),
	}
	for _, e := range enrollments {
		completedAt := ""
		if e.CompletedAt != nil {
			completedAt = e.CompletedAt.UTC().Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, []string{
			e.ID,
			e.StudentID,
			string(e.Status),
			strconv.Itoa(e.Progress),
			fmt.Sprintf("%d/%d", len(e.CompletedModules), course.TotalModules()),
			e.EnrolledAt.UTC().Format(time.RFC3339),
			completedAt,
		})
	}
	return dataset
}
