package dto

import (
	"io"

	"github.com/noah-isme/course-catalog-api/internal/models"
)

// CourseCandidate is the shape checked by the course validation rules. It is
// built from create payloads or from the merged result of a partial update.
type CourseCandidate struct {
	Title       string          `json:"title" validate:"trimmin=3"`
	Description string          `json:"description" validate:"trimmin=10"`
	Category    string          `json:"category" validate:"notblank"`
	Level       string          `json:"level" validate:"notblank"`
	Price       *float64        `json:"price" validate:"omitempty,finite,gte=0"`
	Objectives  []string        `json:"objectives" validate:"anynonblank"`
	Curriculum  []models.Module `json:"curriculum" validate:"min=1,uniqueids,dive"`
}

// ValidationResult reports every violated rule in one pass.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Errors  []string `json:"errors"`
}

// CreateCourseRequest carries every recognised course field.
type CreateCourseRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Level        string          `json:"level"`
	Price        *float64        `json:"price"`
	Currency     string          `json:"currency"`
	Tags         []string        `json:"tags"`
	Objectives   []string        `json:"objectives"`
	Requirements []string        `json:"requirements"`
	Curriculum   []models.Module `json:"curriculum"`
}

// Candidate projects the request onto the validation shape.
func (r CreateCourseRequest) Candidate() CourseCandidate {
	return CourseCandidate{
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Level:       r.Level,
		Price:       r.Price,
		Objectives:  r.Objectives,
		Curriculum:  r.Curriculum,
	}
}

// UpdateCourseRequest is a partial update; nil fields are left untouched.
// ClearPrice removes the price since a nil Price means "unchanged".
type UpdateCourseRequest struct {
	Title        *string          `json:"title"`
	Description  *string          `json:"description"`
	Category     *string          `json:"category"`
	Level        *string          `json:"level"`
	Price        *float64         `json:"price"`
	ClearPrice   bool             `json:"clearPrice"`
	Currency     *string          `json:"currency"`
	Tags         *[]string        `json:"tags"`
	Objectives   *[]string        `json:"objectives"`
	Requirements *[]string        `json:"requirements"`
	Curriculum   *[]models.Module `json:"curriculum"`
}

// Empty reports whether the update carries no changes.
func (r UpdateCourseRequest) Empty() bool {
	return r.Title == nil && r.Description == nil && r.Category == nil && r.Level == nil &&
		r.Price == nil && !r.ClearPrice && r.Currency == nil && r.Tags == nil &&
		r.Objectives == nil && r.Requirements == nil && r.Curriculum == nil
}

// CourseCreated is returned after a successful create.
type CourseCreated struct {
	ID string `json:"id"`
}

// CoursePage is one cursor page of courses.
type CoursePage struct {
	Items []models.Course `json:"items"`
	Page  models.PageInfo `json:"page"`
}

// VideoUpload is a lesson video appended to a module.
type VideoUpload struct {
	MediaUpload
	Title     string `validate:"max=200"`
	Duration  int    `validate:"gte=0"`
	IsPreview bool
}

// CourseListQuery carries listing filters from the query string.
type CourseListQuery struct {
	Q            string `form:"q"`
	Status       string `form:"status" validate:"omitempty,oneof=draft published archived"`
	Category     string `form:"category"`
	Level        string `form:"level"`
	InstructorID string `form:"instructorId"`
	Limit        int    `form:"limit" validate:"omitempty,gte=1"`
	Cursor       string `form:"cursor"`
}

// MediaUpload is an incoming file stream with its declared metadata.
type MediaUpload struct {
	Filename string
	Size     int64
	Content  io.Reader
}
