package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/course-catalog-api/internal/models"
)

// Sentinel outcomes of enrollment writes.
var (
	ErrEnrollmentExists = errors.New("enrollment already exists")
	ErrCourseClosed     = errors.New("course closed for enrollment")
	ErrModuleNotFound   = errors.New("module not found in curriculum")
	ErrEnrollmentState  = errors.New("enrollment status does not allow the change")
)

const enrollmentColumns = `id, course_id, student_id, status, progress, completed_modules, enrolled_at,
last_accessed_at, completed_at, dropped_at`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// FindByCourseAndStudent looks an enrollment up by its composite key.
func (r *EnrollmentRepository) FindByCourseAndStudent(ctx context.Context, courseID, studentID string) (*models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE course_id = $1 AND student_id = $2", enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, courseID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	return &enrollment, nil
}

// CreateIfAbsent inserts the enrollment and increments the course's student
// counter in one transaction. The course row is locked first so lifecycle
// changes and enrolling cannot interleave. It returns sql.ErrNoRows when the
// course is missing, ErrCourseClosed unless the course is published, and
// ErrEnrollmentExists when the pair is already enrolled.
func (r *EnrollmentRepository) CreateIfAbsent(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var status models.CourseStatus
	if err = tx.GetContext(ctx, &status, `SELECT status FROM courses WHERE id = $1 FOR UPDATE`, enrollment.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock course: %w", err)
	}
	if status != models.CourseStatusPublished {
		return ErrCourseClosed
	}

	const insertQuery = `INSERT INTO enrollments (id, course_id, student_id, status, progress, completed_modules, enrolled_at, last_accessed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (course_id, student_id) DO NOTHING
RETURNING id`
	var insertedID string
	if err = tx.GetContext(ctx, &insertedID, insertQuery,
		enrollment.ID, enrollment.CourseID, enrollment.StudentID, enrollment.Status, enrollment.Progress,
		enrollment.CompletedModules, enrollment.EnrolledAt, enrollment.LastAccessedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEnrollmentExists
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `UPDATE courses SET students_count = students_count + 1 WHERE id = $1`, enrollment.CourseID); err != nil {
		return fmt.Errorf("increment students count: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment transaction: %w", err)
	}
	return nil
}

// ListByStudent returns the student's enrollments joined with a course
// summary, most recent first. Enrollments whose course was deleted keep an
// empty summary.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.course_id, e.student_id, e.status, e.progress, e.completed_modules, e.enrolled_at,
	e.last_accessed_at, e.completed_at, e.dropped_at,
	COALESCE(c.title, '') AS course_title,
	COALESCE(c.category, '') AS course_category,
	COALESCE(c.level, '') AS course_level,
	COALESCE(c.status, '') AS course_status,
	COALESCE(c.instructor_id, '') AS course_instructor_id,
	c.thumbnail_url AS course_thumbnail_url,
	COALESCE(c.total_duration, 0) AS course_total_duration,
	COALESCE(c.rating, 0) AS course_rating
FROM enrollments e
LEFT JOIN courses c ON c.id = e.course_id
WHERE e.student_id = $1
ORDER BY e.enrolled_at DESC, e.id DESC`

	var items []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	for i := range items {
		if items[i].Title != "" {
			items[i].CourseSummary.ID = items[i].CourseID
		}
	}
	return items, nil
}

// ListByCourse returns every enrollment of a course ordered by enrollment time.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	query := fmt.Sprintf("SELECT %s FROM enrollments WHERE course_id = $1 ORDER BY enrolled_at ASC, id ASC", enrollmentColumns)
	var items []models.Enrollment
	if err := r.db.SelectContext(ctx, &items, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return items, nil
}

// ModuleCompletionParams describes one completion event.
type ModuleCompletionParams struct {
	CourseID  string
	StudentID string
	ModuleID  string
	Completed bool
	At        time.Time
}

// ApplyModuleCompletion adds or removes the module from the enrollment's
// completed set with an in-place array update, then recomputes progress
// against the course's current curriculum, all in one transaction. Only
// completed ids still present in the curriculum count toward progress. It
// returns sql.ErrNoRows when the course or a non-dropped enrollment is
// missing and ErrModuleNotFound when marking a module id outside the
// curriculum; unmarking such an id removes it.
func (r *EnrollmentRepository) ApplyModuleCompletion(ctx context.Context, params ModuleCompletionParams) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin progress transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var curriculum models.Curriculum
	if err = tx.GetContext(ctx, &curriculum, `SELECT curriculum FROM courses WHERE id = $1 FOR SHARE`, params.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("read course curriculum: %w", err)
	}
	if params.Completed && curriculum.FindModule(params.ModuleID) < 0 {
		return nil, ErrModuleNotFound
	}

	const setQuery = `UPDATE enrollments SET
	completed_modules = CASE
		WHEN $3 THEN CASE WHEN $4 = ANY(completed_modules) THEN completed_modules ELSE array_append(completed_modules, $4) END
		ELSE array_remove(completed_modules, $4)
	END,
	last_accessed_at = $5
WHERE course_id = $1 AND student_id = $2 AND status <> 'dropped'
RETURNING id, status, completed_modules`
	var current struct {
		ID               string                  `db:"id"`
		Status           models.EnrollmentStatus `db:"status"`
		CompletedModules pq.StringArray          `db:"completed_modules"`
	}
	if err = tx.GetContext(ctx, &current, setQuery, params.CourseID, params.StudentID, params.Completed, params.ModuleID, params.At); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("update completed modules: %w", err)
	}

	progress := models.ProgressPercent(curriculum.CountCompleted(current.CompletedModules), len(curriculum))
	status := current.Status
	var completedAt *time.Time
	if progress == 100 {
		if next, ok := status.Next(models.EnrollmentEventComplete); ok {
			status = next
			at := params.At
			completedAt = &at
		}
	}

	query := fmt.Sprintf(`UPDATE enrollments SET progress = $2, status = $3, completed_at = COALESCE(completed_at, $4)
WHERE id = $1
RETURNING %s`, enrollmentColumns)
	var updated models.Enrollment
	if err = tx.GetContext(ctx, &updated, query, current.ID, progress, status, completedAt); err != nil {
		return nil, fmt.Errorf("update enrollment progress: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit progress transaction: %w", err)
	}
	return &updated, nil
}

// Transition applies an enrollment event under a row lock, stamping
// dropped_at for drops. It returns ErrEnrollmentState when the event is not
// legal from the stored status.
func (r *EnrollmentRepository) Transition(ctx context.Context, courseID, studentID string, event models.EnrollmentEvent, at time.Time) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment transition: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current struct {
		ID     string                  `db:"id"`
		Status models.EnrollmentStatus `db:"status"`
	}
	if err = tx.GetContext(ctx, &current, `SELECT id, status FROM enrollments WHERE course_id = $1 AND student_id = $2 FOR UPDATE`, courseID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock enrollment: %w", err)
	}
	next, ok := current.Status.Next(event)
	if !ok {
		return nil, ErrEnrollmentState
	}

	query := fmt.Sprintf(`UPDATE enrollments SET status = $2, last_accessed_at = $3,
dropped_at = CASE WHEN $2 = 'dropped' THEN $3 ELSE dropped_at END,
completed_at = CASE WHEN $2 = 'completed' THEN $3 ELSE completed_at END
WHERE id = $1
RETURNING %s`, enrollmentColumns)
	var updated models.Enrollment
	if err = tx.GetContext(ctx, &updated, query, current.ID, next, at); err != nil {
		return nil, fmt.Errorf("transition enrollment: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment transition: %w", err)
	}
	return &updated, nil
}
