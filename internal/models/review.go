package models

import "time"

// Review is one student's rating of a course. A student holds at most one
// review per course; a later upsert replaces the earlier one.
type Review struct {
	CourseID  string    `db:"course_id" json:"courseId"`
	StudentID string    `db:"student_id" json:"studentId"`
	Rating    int       `db:"rating" json:"rating"`
	Comment   string    `db:"comment" json:"comment"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// RatingAggregate is the running (sum, count) pair cached on a course.
type RatingAggregate struct {
	Sum    int64   `db:"rating_sum" json:"sum"`
	Count  int     `db:"rating_count" json:"count"`
	Rating float64 `db:"rating" json:"rating"`
}
