package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/repository"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
	"github.com/noah-isme/course-catalog-api/pkg/storage"
)

const (
	mediaKindThumbnail = "thumbnail"
	mediaKindVideo     = "video"
	sniffLen           = 512
)

var errMediaTooLarge = errors.New("media exceeds size limit")

type mediaStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*storage.Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

type mediaCourseStore interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Update(ctx context.Context, course *models.Course, expectedUpdatedAt time.Time) error
	SetThumbnail(ctx context.Context, id, url string) error
}

type mediaTokenParser interface {
	Parse(token string, allowExpired bool) (subject, relPath string, expiresAt time.Time, err error)
}

// MediaOptions bounds accepted uploads.
type MediaOptions struct {
	MaxThumbnailBytes int64
	MaxVideoBytes     int64
	AllowedImageMIMEs []string
	AllowedVideoMIMEs []string
}

// MediaService stores course thumbnails and lesson videos in the blob store
// and records the returned URLs on the course.
type MediaService struct {
	store     mediaStore
	courses   mediaCourseStore
	tokens    mediaTokenParser
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opts      MediaOptions
}

// NewMediaService constructs the service. tokens may be nil when the blob
// store serves its own URLs.
func NewMediaService(store mediaStore, courses mediaCourseStore, tokens mediaTokenParser, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts MediaOptions) *MediaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaService{
		store:     store,
		courses:   courses,
		tokens:    tokens,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      opts,
	}
}

// UploadThumbnail stores an image and points the course thumbnail at it.
func (s *MediaService) UploadThumbnail(ctx context.Context, courseID string, actor models.Actor, upload dto.MediaUpload) (*models.Course, error) {
	course, err := s.loadEditable(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}
	obj, err := s.put(ctx, mediaKindThumbnail, courseID, upload, s.opts.MaxThumbnailBytes, s.opts.AllowedImageMIMEs)
	if err != nil {
		return nil, err
	}

	if err := s.courses.SetThumbnail(ctx, courseID, obj.URL); err != nil {
		s.discard(ctx, obj.Key)
		s.metrics.RecordMediaUpload(mediaKindThumbnail, "error")
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "set course thumbnail", err)
	}
	url := obj.URL
	course.ThumbnailURL = &url

	evictCourseCache(ctx, s.cache, courseID)
	s.metrics.RecordMediaUpload(mediaKindThumbnail, "stored")
	s.logger.Info("course thumbnail stored", zap.String("course_id", courseID), zap.String("key", obj.Key), zap.Int64("bytes", obj.Size))
	return course, nil
}

// UploadVideo stores a video and appends it to the module as a video lesson.
func (s *MediaService) UploadVideo(ctx context.Context, courseID, moduleID string, actor models.Actor, upload dto.VideoUpload) (*models.Lesson, error) {
	if err := s.validator.Struct(upload); err != nil {
		return nil, appErrors.Validation("invalid video upload", []string{err.Error()})
	}
	course, err := s.loadEditable(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}
	idx := course.Curriculum.FindModule(moduleID)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "module not found in course curriculum")
	}
	seen := course.UpdatedAt

	obj, err := s.put(ctx, mediaKindVideo, courseID, upload.MediaUpload, s.opts.MaxVideoBytes, s.opts.AllowedVideoMIMEs)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(upload.Title)
	if title == "" {
		title = strings.TrimSuffix(path.Base(upload.Filename), path.Ext(upload.Filename))
	}
	lesson := models.Lesson{
		ID:        uuid.NewString(),
		Title:     title,
		Type:      models.LessonTypeVideo,
		Duration:  upload.Duration,
		Content:   obj.URL,
		IsPreview: upload.IsPreview,
	}
	course.Curriculum[idx].Lessons = append(course.Curriculum[idx].Lessons, lesson)
	course.TotalDuration = course.Curriculum.TotalDuration()

	if err := s.courses.Update(ctx, course, seen); err != nil {
		s.discard(ctx, obj.Key)
		s.metrics.RecordMediaUpload(mediaKindVideo, "error")
		switch {
		case errors.Is(err, repository.ErrStaleCourse):
			return nil, appErrors.Clone(appErrors.ErrConflict, "course was modified concurrently, retry the upload")
		case isNoRows(err):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "attach lesson video", err)
	}

	evictCourseCache(ctx, s.cache, courseID)
	s.metrics.RecordMediaUpload(mediaKindVideo, "stored")
	s.logger.Info("lesson video stored",
		zap.String("course_id", courseID),
		zap.String("module_id", moduleID),
		zap.String("lesson_id", lesson.ID),
		zap.Int64("bytes", obj.Size),
	)
	return &lesson, nil
}

// Open resolves a signed media token to the stored object and its content
// type. Invalid tokens are reported as not found.
func (s *MediaService) Open(ctx context.Context, token string) (io.ReadCloser, string, error) {
	if s.tokens == nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "media not found")
	}
	subject, key, _, err := s.tokens.Parse(token, false)
	if err != nil || subject != storage.MediaSubject {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "media not found")
	}
	rc, err := s.store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, "", persistenceFailure(s.logger, s.metrics, "open media", err)
	}
	return rc, contentTypeFor(key), nil
}

func (s *MediaService) loadEditable(ctx context.Context, courseID string, actor models.Actor) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, persistenceFailure(s.logger, s.metrics, "get course", err)
	}
	if !actor.CanManage(course.InstructorID) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if course.Status == models.CourseStatusArchived {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "archived courses cannot be edited")
	}
	return course, nil
}

// put sniffs the content type, enforces the size limit while streaming and
// writes the object under a fresh key.
func (s *MediaService) put(ctx context.Context, kind, courseID string, upload dto.MediaUpload, maxBytes int64, allowed []string) (*storage.Object, error) {
	if upload.Content == nil {
		return nil, appErrors.Validation("file is required", []string{"file is required"})
	}
	if maxBytes > 0 && upload.Size > maxBytes {
		s.metrics.RecordMediaUpload(kind, "too_large")
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%s exceeds %d bytes", kind, maxBytes))
	}

	buffered := bufio.NewReaderSize(upload.Content, sniffLen)
	head, err := buffered.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, appErrors.Validation("unreadable upload", []string{err.Error()})
	}
	if len(head) == 0 {
		return nil, appErrors.Validation("file is empty", []string{"file is empty"})
	}
	contentType := detectContentType(head)
	if !mimeAllowed(contentType, allowed) {
		s.metrics.RecordMediaUpload(kind, "rejected")
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("%s content type %s is not allowed", kind, contentType))
	}

	var body io.Reader = buffered
	if maxBytes > 0 {
		body = &limitedReader{r: buffered, remaining: maxBytes}
	}
	key := fmt.Sprintf("courses/%s/%ss/%s%s", courseID, kind, uuid.NewString(), extensionFor(contentType, upload.Filename))
	obj, err := s.store.Put(ctx, key, body, contentType)
	if err != nil {
		if errors.Is(err, errMediaTooLarge) {
			s.discard(ctx, key)
			s.metrics.RecordMediaUpload(kind, "too_large")
			return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("%s exceeds %d bytes", kind, maxBytes))
		}
		s.metrics.RecordMediaUpload(kind, "error")
		return nil, persistenceFailure(s.logger, s.metrics, "store media", err)
	}
	return obj, nil
}

func (s *MediaService) discard(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to discard media object", zap.String("key", key), zap.Error(err))
	}
}

func detectContentType(head []byte) string {
	contentType := http.DetectContentType(head)
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return contentType
}

func mimeAllowed(contentType string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if strings.EqualFold(candidate, contentType) {
			return true
		}
	}
	return false
}

var mediaExtensions = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
}

func extensionFor(contentType, filename string) string {
	if ext, ok := mediaExtensions[contentType]; ok {
		return ext
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 1 && len(ext) <= 6 {
		return ext
	}
	return ""
}

func contentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	for contentType, known := range mediaExtensions {
		if known == ext {
			return contentType
		}
	}
	if contentType := mime.TypeByExtension(ext); contentType != "" {
		return contentType
	}
	return "application/octet-stream"
}

// limitedReader fails with errMediaTooLarge once more than remaining bytes
// are read.
type limitedReader struct {
	r         io.Reader
	remaining int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		return n, errMediaTooLarge
	}
	return n, err
}
