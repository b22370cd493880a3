package repository

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return sqlxDB, mock, cleanup
}

var courseColumnNames = []string{
	"id", "instructor_id", "status", "title", "description", "category", "level", "price", "currency",
	"tags", "objectives", "requirements", "curriculum", "thumbnail_url", "total_duration", "students_count",
	"rating", "rating_sum", "rating_count", "created_at", "updated_at", "published_at", "archived_at",
}

func courseRow(rows *sqlmock.Rows, id, status string, createdAt time.Time) *sqlmock.Rows {
	return ratedCourseRow(rows, id, status, createdAt, "0.0", 0, 0)
}

// ratedCourseRow passes rating the way lib/pq returns NUMERIC columns.
func ratedCourseRow(rows *sqlmock.Rows, id, status string, createdAt time.Time, rating string, sum, count int) *sqlmock.Rows {
	return rows.AddRow(
		id, "inst-1", status, "Go Basics", "Learn the Go language", "programming", "beginner", nil, "USD",
		"{go,backend}", "{write go}", "{}", `[{"id":"m1","title":"Intro","lessons":[{"title":"Hello","type":"video","duration":15}]}]`,
		nil, 15, 0,
		[]byte(rating), sum, count, createdAt, createdAt, nil, nil,
	)
}

var enrollmentColumnNames = []string{
	"id", "course_id", "student_id", "status", "progress", "completed_modules", "enrolled_at",
	"last_accessed_at", "completed_at", "dropped_at",
}
