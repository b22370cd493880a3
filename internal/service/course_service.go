package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/repository"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

const (
	courseCacheKeyPrefix = "catalog:course:"
	courseListCachePat   = "catalog:courses:*"
	defaultCurrency      = "USD"
)

type courseStore interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindWithReviews(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	Update(ctx context.Context, course *models.Course, expectedUpdatedAt time.Time) error
	SetThumbnail(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) error
}

// CatalogOptions tunes listing and caching.
type CatalogOptions struct {
	DefaultPageSize int
	MaxPageSize     int
	CacheTTL        time.Duration
}

// CourseService authors, reads and lists course definitions.
type CourseService struct {
	courses   courseStore
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opts      CatalogOptions
}

// NewCourseService constructs the catalog service.
func NewCourseService(courses courseStore, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts CatalogOptions) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = 20
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	return &CourseService{
		courses:   courses,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      opts,
	}
}

// Create validates the payload and stores a new draft course owned by the
// instructor.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest, actor models.Actor) (*models.Course, error) {
	if actor.Role != models.RoleInstructor && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only instructors can create courses")
	}
	if result := ValidateCourse(req.Candidate()); !result.IsValid {
		return nil, appErrors.Validation("invalid course", result.Errors)
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	curriculum := normalizeCurriculum(req.Curriculum)
	course := &models.Course{
		InstructorID:  actor.ID,
		Status:        models.CourseStatusDraft,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Category:      strings.TrimSpace(req.Category),
		Level:         strings.TrimSpace(req.Level),
		Price:         req.Price,
		Currency:      currency,
		Tags:          uniqueTags(req.Tags),
		Objectives:    compactStrings(req.Objectives),
		Requirements:  compactStrings(req.Requirements),
		Curriculum:    curriculum,
		TotalDuration: curriculum.TotalDuration(),
		Reviews:       []models.Review{},
	}
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, s.storeFailure("create course", err)
	}
	s.cache.Invalidate(ctx, courseListCachePat)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("instructor_id", course.InstructorID))
	return course, nil
}

// Update merges the partial fields into the stored course, re-validates the
// merged result and persists it if nobody changed the course in between.
func (s *CourseService) Update(ctx context.Context, id string, req dto.UpdateCourseRequest, actor models.Actor) (*models.Course, error) {
	if req.Empty() {
		return nil, appErrors.Validation("no fields to update", []string{"at least one field is required"})
	}
	course, err := s.loadManaged(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if course.Status == models.CourseStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "archived courses cannot be edited")
	}
	seen := course.UpdatedAt

	applyCourseUpdate(course, req)
	candidate := dto.CourseCandidate{
		Title:       course.Title,
		Description: course.Description,
		Category:    course.Category,
		Level:       course.Level,
		Price:       course.Price,
		Objectives:  course.Objectives,
		Curriculum:  course.Curriculum,
	}
	if result := ValidateCourse(candidate); !result.IsValid {
		return nil, appErrors.Validation("invalid course", result.Errors)
	}

	if err := s.courses.Update(ctx, course, seen); err != nil {
		return nil, s.translateCourseWrite("update course", err)
	}
	s.evictCourse(ctx, course.ID)
	s.logger.Info("course updated", zap.String("course_id", course.ID))
	return course, nil
}

// Get returns the course with its reviews embedded. Drafts and archived
// courses are reported as not found unless viewer manages them.
func (s *CourseService) Get(ctx context.Context, id string, viewer models.Actor) (*models.Course, error) {
	course, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.CanView(course.Status, course.InstructorID) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return course, nil
}

// snapshot serves the course with its reviews from cache or from a single
// consistent store read.
func (s *CourseService) snapshot(ctx context.Context, id string) (*models.Course, error) {
	key := courseCacheKey(id)
	var cached models.Course
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	fence := s.cache.Fence(ctx, key)
	course, err := s.courses.FindWithReviews(ctx, id)
	if err != nil {
		return nil, s.translateCourseRead("get course", err)
	}
	if course.Reviews == nil {
		course.Reviews = []models.Review{}
	}
	s.cache.Set(ctx, key, course, s.opts.CacheTTL, fence)
	return course, nil
}

// List returns one page of courses matching every supplied filter, newest
// first.
func (s *CourseService) List(ctx context.Context, query dto.CourseListQuery, viewer models.Actor) (*dto.CoursePage, error) {
	query.Q = ""
	return s.page(ctx, query, viewer)
}

// Search narrows List with a case-insensitive substring match of term
// against title, description and category.
func (s *CourseService) Search(ctx context.Context, term string, query dto.CourseListQuery, viewer models.Actor) (*dto.CoursePage, error) {
	query.Q = term
	return s.page(ctx, query, viewer)
}

// page lists within what viewer may see: published courses, plus the
// instructor's own, or everything for admins.
func (s *CourseService) page(ctx context.Context, query dto.CourseListQuery, viewer models.Actor) (*dto.CoursePage, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Validation("invalid list filters", []string{err.Error()})
	}
	cursor, err := models.DecodeCourseCursor(query.Cursor)
	if err != nil {
		return nil, appErrors.Validation("invalid cursor", []string{err.Error()})
	}
	limit := query.Limit
	if limit <= 0 {
		limit = s.opts.DefaultPageSize
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}

	key := listCacheKey(query, limit, viewer)
	var cached dto.CoursePage
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}
	fence := s.cache.Fence(ctx, courseListCachePat)

	filter := models.CourseFilter{
		Status:       models.CourseStatus(query.Status),
		Category:     strings.TrimSpace(query.Category),
		Level:        strings.TrimSpace(query.Level),
		InstructorID: strings.TrimSpace(query.InstructorID),
		Term:         strings.TrimSpace(query.Q),
		Limit:        limit + 1,
		Cursor:       cursor,
	}
	viewer.CatalogScope(&filter)
	courses, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, s.storeFailure("list courses", err)
	}

	page := &dto.CoursePage{Items: courses, Page: models.PageInfo{Limit: limit}}
	if len(courses) > limit {
		page.Items = courses[:limit]
		last := page.Items[limit-1]
		page.Page.HasMore = true
		page.Page.NextCursor = models.CourseCursor{CreatedAt: last.CreatedAt, ID: last.ID}.Encode()
	}
	if page.Items == nil {
		page.Items = []models.Course{}
	}
	s.cache.Set(ctx, key, page, s.opts.CacheTTL, fence)
	return page, nil
}

// Delete hard deletes the course. Enrollments referencing it are kept.
func (s *CourseService) Delete(ctx context.Context, id string, actor models.Actor) error {
	if _, err := s.loadManaged(ctx, id, actor); err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		return s.translateCourseRead("delete course", err)
	}
	s.evictCourse(ctx, id)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

// loadManaged fetches the course and checks the actor may author it.
func (s *CourseService) loadManaged(ctx context.Context, id string, actor models.Actor) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		return nil, s.translateCourseRead("get course", err)
	}
	if !actor.CanManage(course.InstructorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return course, nil
}

func (s *CourseService) evictCourse(ctx context.Context, id string) {
	evictCourseCache(ctx, s.cache, id)
}

func (s *CourseService) translateCourseRead(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	return s.storeFailure(op, err)
}

func (s *CourseService) translateCourseWrite(op string, err error) error {
	if errors.Is(err, repository.ErrStaleCourse) {
		return appErrors.Clone(appErrors.ErrConflict, "course was modified concurrently, reload and retry")
	}
	return s.translateCourseRead(op, err)
}

func (s *CourseService) storeFailure(op string, err error) error {
	return persistenceFailure(s.logger, s.metrics, op, err)
}

// persistenceFailure logs and counts a store error and wraps it for callers.
func persistenceFailure(logger *zap.Logger, metrics *MetricsService, op string, err error) error {
	logger.Error("store operation failed", zap.String("operation", op), zap.Error(err))
	metrics.RecordPersistenceError(op)
	return appErrors.Persistence(err, fmt.Sprintf("failed to %s", op))
}

func evictCourseCache(ctx context.Context, cache *CacheService, id string) {
	cache.Evict(ctx, courseCacheKey(id))
	cache.Invalidate(ctx, courseListCachePat)
}

func courseCacheKey(id string) string {
	return courseCacheKeyPrefix + id
}

func listCacheKey(query dto.CourseListQuery, limit int, viewer models.Actor) string {
	raw := strings.Join([]string{
		query.Q, query.Status, query.Category, query.Level, query.InstructorID, query.Cursor, fmt.Sprint(limit),
		listScope(viewer),
	}, "\x1f")
	sum := sha1.Sum([]byte(raw))
	return "catalog:courses:" + hex.EncodeToString(sum[:])
}

// listScope names the visibility class of viewer for list cache keys.
func listScope(viewer models.Actor) string {
	var filter models.CourseFilter
	viewer.CatalogScope(&filter)
	switch {
	case !filter.PublishedOnly:
		return "all"
	case filter.OwnerID != "":
		return "owner:" + filter.OwnerID
	}
	return "published"
}

func applyCourseUpdate(course *models.Course, req dto.UpdateCourseRequest) {
	if req.Title != nil {
		course.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		course.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		course.Category = strings.TrimSpace(*req.Category)
	}
	if req.Level != nil {
		course.Level = strings.TrimSpace(*req.Level)
	}
	if req.ClearPrice {
		course.Price = nil
	} else if req.Price != nil {
		price := *req.Price
		course.Price = &price
	}
	if req.Currency != nil {
		course.Currency = strings.ToUpper(strings.TrimSpace(*req.Currency))
		if course.Currency == "" {
			course.Currency = defaultCurrency
		}
	}
	if req.Tags != nil {
		course.Tags = uniqueTags(*req.Tags)
	}
	if req.Objectives != nil {
		course.Objectives = compactStrings(*req.Objectives)
	}
	if req.Requirements != nil {
		course.Requirements = compactStrings(*req.Requirements)
	}
	if req.Curriculum != nil {
		course.Curriculum = normalizeCurriculum(*req.Curriculum)
		course.TotalDuration = course.Curriculum.TotalDuration()
	}
}

// normalizeCurriculum assigns ids to new modules and lessons and keeps the
// existing ones so completion records stay valid across edits.
func normalizeCurriculum(modules []models.Module) models.Curriculum {
	out := make(models.Curriculum, len(modules))
	for i, module := range modules {
		module.Title = strings.TrimSpace(module.Title)
		module.ID = strings.TrimSpace(module.ID)
		if module.ID == "" {
			module.ID = uuid.NewString()
		}
		lessons := make([]models.Lesson, len(module.Lessons))
		for j, lesson := range module.Lessons {
			lesson.Title = strings.TrimSpace(lesson.Title)
			lesson.ID = strings.TrimSpace(lesson.ID)
			if lesson.ID == "" {
				lesson.ID = uuid.NewString()
			}
			lessons[j] = lesson
		}
		module.Lessons = lessons
		out[i] = module
	}
	return out
}

// uniqueTags trims, lowercases and de-duplicates tags, keeping first-seen order.
func uniqueTags(tags []string) pq.StringArray {
	seen := make(map[string]struct{}, len(tags))
	out := pq.StringArray{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func compactStrings(values []string) pq.StringArray {
	out := pq.StringArray{}
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
