package models

import (
	"time"

	"github.com/lib/pq"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusDropped   EnrollmentStatus = "dropped"
)

// Enrollment links one student to one course and tracks completion.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	CourseID         string           `db:"course_id" json:"courseId"`
	StudentID        string           `db:"student_id" json:"studentId"`
	Status           EnrollmentStatus `db:"status" json:"status"`
	Progress         int              `db:"progress" json:"progress"`
	CompletedModules pq.StringArray   `db:"completed_modules" json:"completedModules"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolledAt"`
	LastAccessedAt   time.Time        `db:"last_accessed_at" json:"lastAccessedAt"`
	CompletedAt      *time.Time       `db:"completed_at" json:"completedAt,omitempty"`
	DroppedAt        *time.Time       `db:"dropped_at" json:"droppedAt,omitempty"`
}

// CourseSummary is the slice of a course joined onto enrollment listings.
type CourseSummary struct {
	ID            string       `db:"-" json:"id"`
	Title         string       `db:"course_title" json:"title"`
	Category      string       `db:"course_category" json:"category"`
	Level         string       `db:"course_level" json:"level"`
	Status        CourseStatus `db:"course_status" json:"status"`
	InstructorID  string       `db:"course_instructor_id" json:"instructorId"`
	ThumbnailURL  *string      `db:"course_thumbnail_url" json:"thumbnailUrl,omitempty"`
	TotalDuration int          `db:"course_total_duration" json:"totalDuration"`
	Rating        float64      `db:"course_rating" json:"rating"`
}

// EnrollmentDetail enriches Enrollment with its course summary.
type EnrollmentDetail struct {
	Enrollment
	CourseSummary `json:"course"`
}

// ProgressPercent computes round(100*completed/total), 0 when the course has
// no modules, clamped to 100.
func ProgressPercent(completed, total int) int {
	if total <= 0 || completed <= 0 {
		return 0
	}
	pct := (200*completed + total) / (2 * total)
	if pct > 100 {
		return 100
	}
	return pct
}
