package dto

import (
	"time"

	"github.com/noah-isme/course-catalog-api/internal/models"
)

// EnrollmentCheck answers whether a student is enrolled in a course.
type EnrollmentCheck struct {
	IsEnrolled bool               `json:"isEnrolled"`
	Enrollment *models.Enrollment `json:"enrollment,omitempty"`
}

// EnrollmentCreated is returned after a successful enroll.
type EnrollmentCreated struct {
	ID string `json:"id"`
}

// ModuleCompletionRequest marks or unmarks a module as completed.
type ModuleCompletionRequest struct {
	Completed *bool `json:"completed" validate:"required"`
}

// ProgressView is the progress snapshot of one enrollment.
type ProgressView struct {
	Progress         int                     `json:"progress"`
	CompletedModules []string                `json:"completedModules"`
	Status           models.EnrollmentStatus `json:"status"`
	CompletedAt      *time.Time              `json:"completedAt,omitempty"`
	LastAccessedAt   time.Time               `json:"lastAccessedAt"`
}

// RosterFormat selects the roster export encoding.
type RosterFormat string

// Roster export formats.
const (
	RosterFormatCSV RosterFormat = "csv"
	RosterFormatPDF RosterFormat = "pdf"
)
