package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-catalog-api/internal/models"
)

// ErrStaleCourse signals that the course changed between read and write.
var ErrStaleCourse = errors.New("course modified concurrently")

const courseColumns = `id, instructor_id, status, title, description, category, level, price, currency,
tags, objectives, requirements, curriculum, thumbnail_url, total_duration, students_count,
rating, rating_sum, rating_count, created_at, updated_at, published_at, archived_at`

// CourseRepository persists course documents.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create inserts a new course, assigning an id when empty.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = course.CreatedAt

	const query = `INSERT INTO courses (id, instructor_id, status, title, description, category, level, price, currency,
tags, objectives, requirements, curriculum, thumbnail_url, total_duration, students_count,
rating, rating_sum, rating_count, created_at, updated_at, published_at, archived_at)
VALUES (:id, :instructor_id, :status, :title, :description, :category, :level, :price, :currency,
:tags, :objectives, :requirements, :curriculum, :thumbnail_url, :total_duration, :students_count,
:rating, :rating_sum, :rating_count, :created_at, :updated_at, :published_at, :archived_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// FindByID returns the course or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	return &course, nil
}

// FindWithReviews reads the course row and its reviews from one read-only
// repeatable-read snapshot, so the cached rating always summarises exactly
// the reviews returned with it.
func (r *CourseRepository) FindWithReviews(ctx context.Context, id string) (course *models.Course, err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin course snapshot: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var found models.Course
	if err = tx.GetContext(ctx, &found, fmt.Sprintf("SELECT %s FROM courses WHERE id = $1", courseColumns), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	var reviews []models.Review
	if err = tx.SelectContext(ctx, &reviews, reviewListQuery, id); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit course snapshot: %w", err)
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	found.Reviews = reviews
	return &found, nil
}

// List returns courses matching every set filter, newest first. A non-empty
// Term restricts results to a case-insensitive substring match against title,
// description or category. Limit rows are returned at most.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if filter.PublishedOnly {
		args = append(args, models.CourseStatusPublished)
		if filter.OwnerID != "" {
			args = append(args, filter.OwnerID)
			conditions = append(conditions, fmt.Sprintf("(status = $%d OR instructor_id = $%d)", len(args)-1, len(args)))
		} else {
			conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
		}
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.Level != "" {
		args = append(args, filter.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}
	if filter.InstructorID != "" {
		args = append(args, filter.InstructorID)
		conditions = append(conditions, fmt.Sprintf("instructor_id = $%d", len(args)))
	}
	if term := strings.TrimSpace(filter.Term); term != "" {
		args = append(args, likePattern(term))
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d OR category ILIKE $%d)", n, n, n))
	}
	if filter.Cursor != nil {
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		conditions = append(conditions, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	query := strings.Builder{}
	fmt.Fprintf(&query, "SELECT %s FROM courses", courseColumns)
	if len(conditions) > 0 {
		query.WriteString(" WHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&query, " LIMIT $%d", len(args))
	}

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query.String(), args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// likePattern escapes LIKE metacharacters so term matches literally.
func likePattern(term string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(term) + "%"
}

// Update writes the editable fields when the stored row still carries
// expectedUpdatedAt, returning ErrStaleCourse otherwise.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course, expectedUpdatedAt time.Time) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = $3, description = $4, category = $5, level = $6, price = $7,
currency = $8, tags = $9, objectives = $10, requirements = $11, curriculum = $12, total_duration = $13,
thumbnail_url = $14, updated_at = $15
WHERE id = $1 AND updated_at = $2`
	res, err := r.db.ExecContext(ctx, query,
		course.ID, expectedUpdatedAt,
		course.Title, course.Description, course.Category, course.Level, course.Price,
		course.Currency, course.Tags, course.Objectives, course.Requirements, course.Curriculum,
		course.TotalDuration, course.ThumbnailURL, course.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return r.requireRow(ctx, res, course.ID)
}

// UpdateStatus moves the course from one of the accepted statuses to next,
// stamping publishedAt or archivedAt as appropriate. It returns
// ErrStaleCourse when the course exists but no longer holds an accepted
// status, and sql.ErrNoRows when it does not exist.
func (r *CourseRepository) UpdateStatus(ctx context.Context, id string, from []models.CourseStatus, next models.CourseStatus, at time.Time) (*models.Course, error) {
	accepted := make([]string, len(from))
	for i, status := range from {
		accepted[i] = string(status)
	}
	query := fmt.Sprintf(`UPDATE courses SET status = $2, updated_at = $3,
published_at = CASE WHEN $2 = 'published' THEN $3 ELSE published_at END,
archived_at = CASE WHEN $2 = 'archived' THEN $3 ELSE archived_at END
WHERE id = $1 AND status = ANY($4)
RETURNING %s`, courseColumns)

	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id, next, at, pq.Array(accepted)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if exists, existsErr := r.exists(ctx, id); existsErr != nil {
				return nil, existsErr
			} else if exists {
				return nil, ErrStaleCourse
			}
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update course status: %w", err)
	}
	return &course, nil
}

// SetThumbnail records the thumbnail URL.
func (r *CourseRepository) SetThumbnail(ctx context.Context, id, url string) error {
	const query = `UPDATE courses SET thumbnail_url = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set course thumbnail: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set course thumbnail rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete hard deletes the course. Enrollments are left untouched.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete course rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *CourseRepository) requireRow(ctx context.Context, res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("course rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	exists, err := r.exists(ctx, id)
	if err != nil {
		return err
	}
	if exists {
		return ErrStaleCourse
	}
	return sql.ErrNoRows
}

func (r *CourseRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, id); err != nil {
		return false, fmt.Errorf("check course exists: %w", err)
	}
	return exists, nil
}
