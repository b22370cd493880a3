package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/repository"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

type progressStore interface {
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
	ApplyModuleCompletion(ctx context.Context, params repository.ModuleCompletionParams) (*models.Enrollment, error)
}

// ProgressService tracks completed modules and the derived progress of an
// enrollment. Completion is sticky: unmarking a module after the enrollment
// completed lowers progress but keeps the completed status.
type ProgressService struct {
	enrollments progressStore
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewProgressService constructs the service.
func NewProgressService(enrollments progressStore, metrics *MetricsService, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{
		enrollments: enrollments,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetModuleCompletion marks or unmarks moduleID for the student's enrollment.
// Both directions are idempotent and lastAccessedAt is stamped on every call.
func (s *ProgressService) SetModuleCompletion(ctx context.Context, courseID, studentID, moduleID string, completed bool) (*dto.ProgressView, error) {
	enrollment, err := s.enrollments.ApplyModuleCompletion(ctx, repository.ModuleCompletionParams{
		CourseID:  courseID,
		StudentID: studentID,
		ModuleID:  moduleID,
		Completed: completed,
		At:        s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrModuleNotFound):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found in course curriculum")
		case isNoRows(err):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "active enrollment not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "update progress", err)
	}

	s.metrics.RecordModuleCompletion(completed)
	s.logger.Debug("module completion recorded",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("module_id", moduleID),
		zap.Bool("completed", completed),
		zap.Int("progress", enrollment.Progress),
		zap.String("status", string(enrollment.Status)),
	)
	return progressView(enrollment), nil
}

// GetProgress returns the progress snapshot of the student's enrollment.
func (s *ProgressService) GetProgress(ctx context.Context, courseID, studentID string) (*dto.ProgressView, error) {
	enrollment, err := s.enrollments.FindByCourseAndStudent(ctx, courseID, studentID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "get enrollment", err)
	}
	return progressView(enrollment), nil
}

func progressView(enrollment *models.Enrollment) *dto.ProgressView {
	modules := []string(enrollment.CompletedModules)
	if modules == nil {
		modules = []string{}
	}
	return &dto.ProgressView{
		Progress:         enrollment.Progress,
		CompletedModules: modules,
		Status:           enrollment.Status,
		CompletedAt:      enrollment.CompletedAt,
		LastAccessedAt:   enrollment.LastAccessedAt,
	}
}
