package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

type reviewStore interface {
	Upsert(ctx context.Context, review *models.Review) (*models.RatingAggregate, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Review, error)
}

// ReviewService stores one review per student and course and keeps the
// course rating equal to the rounded mean of the stored reviews.
type ReviewService struct {
	reviews   reviewStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewReviewService constructs the service.
func NewReviewService(reviews reviewStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{
		reviews:   reviews,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddOrUpdate replaces the student's earlier review, if any, and returns the
// recomputed course rating. Out of range ratings are rejected before any
// write.
func (s *ReviewService) AddOrUpdate(ctx context.Context, courseID, studentID string, req dto.ReviewRequest) (*dto.ReviewResult, error) {
	if req.Rating < models.MinRating || req.Rating > models.MaxRating {
		return nil, appErrors.ErrInvalidRating
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation("invalid review", []string{"comment must be at most 4000 characters"})
	}

	review := &models.Review{
		CourseID:  courseID,
		StudentID: studentID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		UpdatedAt: s.now(),
	}
	agg, err := s.reviews.Upsert(ctx, review)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "upsert review", err)
	}

	evictCourseCache(ctx, s.cache, courseID)
	s.metrics.RecordReviewUpsert()
	s.logger.Info("review upserted",
		zap.String("course_id", courseID),
		zap.String("student_id", studentID),
		zap.Int("rating", req.Rating),
		zap.Float64("course_rating", agg.Rating),
	)
	return &dto.ReviewResult{Rating: agg.Rating, ReviewsCount: agg.Count}, nil
}

// List returns the course's reviews oldest first.
func (s *ReviewService) List(ctx context.Context, courseID string) ([]models.Review, error) {
	reviews, err := s.reviews.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, persistenceFailure(s.logger, s.metrics, "list reviews", err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	return reviews, nil
}
