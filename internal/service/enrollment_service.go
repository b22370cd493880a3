package service

import (
	"context"
	"errors"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/repository"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

type enrollmentStore interface {
	FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error)
	CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error)
	Transition(ctx context.Context, courseID, studentID string, event models.EnrollmentEvent, at time.Time) (*models.Enrollment, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollmentService owns the student to course ledger.
type EnrollmentService struct {
	enrollments enrollmentStore
	courses     courseReader
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewEnrollmentService constructs the service.
func NewEnrollmentService(enrollments enrollmentStore, courses courseReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		enrollments: enrollments,
		courses:     courses,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Check reports whether the student holds an enrollment for the course.
func (s *EnrollmentService) Check(ctx context.Context, courseID, studentID string) (*dto.EnrollmentCheck, error) {
	enrollment, err := s.enrollments.FindByCourseAndStudent(ctx, courseID, studentID)
	if err != nil {
		if isNoRows(err) {
			return &dto.EnrollmentCheck{IsEnrolled: false}, nil
		}
		return nil, persistenceFailure(s.logger, s.metrics, "get enrollment", err)
	}
	return &dto.EnrollmentCheck{IsEnrolled: true, Enrollment: enrollment}, nil
}

// Enroll creates the (course, student) enrollment and bumps the course's
// student counter atomically. Only published courses accept enrollments.
// A second call reports AlreadyEnrolled and leaves the counter untouched.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	now := s.now()
	enrollment := &models.Enrollment{
		CourseID:         courseID,
		StudentID:        studentID,
		Status:           models.EnrollmentStatusActive,
		Progress:         0,
		CompletedModules: pq.StringArray{},
		EnrolledAt:       now,
		LastAccessedAt:   now,
	}

	if err := s.enrollments.CreateIfAbsent(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrEnrollmentExists):
			s.metrics.RecordEnrollment("duplicate")
			return nil, appErrors.ErrAlreadyEnrolled
		case errors.Is(err, repository.ErrCourseClosed):
			s.metrics.RecordEnrollment("rejected")
			return nil, appErrors.Clone(appErrors.ErrCourseNotEnrollable, "only published courses accept enrollments")
		case isNoRows(err):
			s.metrics.RecordEnrollment("rejected")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		s.metrics.RecordEnrollment("error")
		return nil, persistenceFailure(s.logger, s.metrics, "create enrollment", err)
	}

	evictCourseCache(ctx, s.cache, courseID)
	s.metrics.RecordEnrollment("created")
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("course_id", courseID),
		zap.String("student_id", studentID),
	)
	return enrollment, nil
}

// ListForStudent returns the student's enrollments with course summaries,
// most recently enrolled first.
func (s *EnrollmentService) ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	items, err := s.enrollments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, persistenceFailure(s.logger, s.metrics, "list student enrollments", err)
	}
	if items == nil {
		items = []models.EnrollmentDetail{}
	}
	return items, nil
}

// Drop withdraws an active enrollment. The course student counter keeps
// counting it.
func (s *EnrollmentService) Drop(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.Transition(ctx, courseID, studentID, models.EnrollmentEventDrop, s.now())
	if err != nil {
		switch {
		case isNoRows(err):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		case errors.Is(err, repository.ErrEnrollmentState):
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only active enrollments can be dropped")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "drop enrollment", err)
	}
	s.logger.Info("enrollment dropped", zap.String("course_id", courseID), zap.String("student_id", studentID))
	return enrollment, nil
}

// Roster lists every enrollment of a course the actor manages.
func (s *EnrollmentService) Roster(ctx context.Context, courseID string, actor models.Actor) (*models.Course, []models.Enrollment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, persistenceFailure(s.logger, s.metrics, "get course", err)
	}
	if !actor.CanManage(course.InstructorID) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	items, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, nil, persistenceFailure(s.logger, s.metrics, "list course enrollments", err)
	}
	return course, items, nil
}
