package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-catalog-api/internal/models"
)

// ReviewRepository persists course reviews and keeps the rating aggregate
// cached on the course in step with them.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Upsert stores the student's review, replacing an earlier one, and applies
// the rating delta to the course aggregate inside the same transaction.
// It returns sql.ErrNoRows when the course does not exist.
func (r *ReviewRepository) Upsert(ctx context.Context, review *models.Review) (agg *models.RatingAggregate, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin review transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.RatingAggregate
	const lockQuery = `SELECT rating_sum, rating_count, rating FROM courses WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &current, lockQuery, review.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("lock course rating: %w", err)
	}

	var previous sql.NullInt64
	const prevQuery = `SELECT rating FROM course_reviews WHERE course_id = $1 AND student_id = $2`
	if err = tx.GetContext(ctx, &previous, prevQuery, review.CourseID, review.StudentID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read previous review: %w", err)
	}
	err = nil

	const upsertQuery = `INSERT INTO course_reviews (course_id, student_id, rating, comment, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (course_id, student_id) DO UPDATE SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = EXCLUDED.updated_at
RETURNING created_at, updated_at`
	var stamps struct {
		CreatedAt sql.NullTime `db:"created_at"`
		UpdatedAt sql.NullTime `db:"updated_at"`
	}
	if err = tx.GetContext(ctx, &stamps, upsertQuery, review.CourseID, review.StudentID, review.Rating, review.Comment, review.UpdatedAt); err != nil {
		return nil, fmt.Errorf("upsert review: %w", err)
	}
	review.CreatedAt = stamps.CreatedAt.Time
	review.UpdatedAt = stamps.UpdatedAt.Time

	next := models.RatingAggregate{Sum: current.Sum + int64(review.Rating), Count: current.Count}
	if previous.Valid {
		next.Sum -= previous.Int64
	} else {
		next.Count++
	}
	next.Rating = models.AverageRating(next.Sum, next.Count)

	const aggregateQuery = `UPDATE courses SET rating_sum = $2, rating_count = $3, rating = $4 WHERE id = $1`
	if _, err = tx.ExecContext(ctx, aggregateQuery, review.CourseID, next.Sum, next.Count, next.Rating); err != nil {
		return nil, fmt.Errorf("update course rating: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit review transaction: %w", err)
	}
	return &next, nil
}

const reviewListQuery = `SELECT course_id, student_id, rating, comment, created_at, updated_at
FROM course_reviews WHERE course_id = $1 ORDER BY created_at ASC, student_id ASC`

// ListByCourse returns the course reviews oldest first.
func (r *ReviewRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Review, error) {
	var reviews []models.Review
	if err := r.db.SelectContext(ctx, &reviews, reviewListQuery, courseID); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}
