package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/repository"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

type courseStatusStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	UpdateStatus(ctx context.Context, id string, from []models.CourseStatus, next models.CourseStatus, at time.Time) (*models.Course, error)
}

// LifecycleService drives courses through the publication state machine.
type LifecycleService struct {
	courses courseStatusStore
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewLifecycleService constructs the service.
func NewLifecycleService(courses courseStatusStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *LifecycleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{
		courses: courses,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Publish makes a draft visible. Re-publishing refreshes publishedAt.
func (s *LifecycleService) Publish(ctx context.Context, courseID string, actor models.Actor) (*models.Course, error) {
	return s.apply(ctx, courseID, models.CourseActionPublish, actor)
}

// Unpublish returns a published course to draft.
func (s *LifecycleService) Unpublish(ctx context.Context, courseID string, actor models.Actor) (*models.Course, error) {
	return s.apply(ctx, courseID, models.CourseActionUnpublish, actor)
}

// Archive retires a course permanently.
func (s *LifecycleService) Archive(ctx context.Context, courseID string, actor models.Actor) (*models.Course, error) {
	return s.apply(ctx, courseID, models.CourseActionArchive, actor)
}

func (s *LifecycleService) apply(ctx context.Context, courseID string, action models.CourseAction, actor models.Actor) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		s.metrics.RecordCourseTransition(string(action), "error")
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "get course", err)
	}
	if !actor.CanManage(course.InstructorID) {
		s.metrics.RecordCourseTransition(string(action), "forbidden")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	next, ok := course.Status.Next(action)
	if !ok {
		s.metrics.RecordCourseTransition(string(action), "rejected")
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot %s a %s course", action, course.Status))
	}

	updated, err := s.courses.UpdateStatus(ctx, courseID, []models.CourseStatus{course.Status}, next, s.now())
	if err != nil {
		s.metrics.RecordCourseTransition(string(action), "error")
		switch {
		case isNoRows(err):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		case errors.Is(err, repository.ErrStaleCourse):
			return nil, appErrors.Clone(appErrors.ErrConflict, "course status changed concurrently, reload and retry")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "update course status", err)
	}

	evictCourseCache(ctx, s.cache, courseID)
	s.metrics.RecordCourseTransition(string(action), "applied")
	s.logger.Info("course transitioned",
		zap.String("course_id", courseID),
		zap.String("from", string(course.Status)),
		zap.String("to", string(next)),
		zap.String("actor_id", actor.ID),
	)
	return updated, nil
}
