package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// CourseStatus is the publication lifecycle state of a course.
type CourseStatus string

// Course lifecycle states.
const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
	CourseStatusArchived  CourseStatus = "archived"
)

// LessonType enumerates the supported lesson kinds.
type LessonType string

// Lesson kinds.
const (
	LessonTypeVideo      LessonType = "video"
	LessonTypeText       LessonType = "text"
	LessonTypeQuiz       LessonType = "quiz"
	LessonTypeAssignment LessonType = "assignment"
)

// Lesson is the smallest addressable content unit of a course.
type Lesson struct {
	ID        string     `json:"id"`
	Title     string     `json:"title" validate:"required"`
	Type      LessonType `json:"type" validate:"required,oneof=video text quiz assignment"`
	Duration  int        `json:"duration" validate:"gte=0"`
	Content   string     `json:"content,omitempty"`
	IsPreview bool       `json:"isPreview"`
}

// Module is an ordered grouping of lessons.
type Module struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Lessons     []Lesson `json:"lessons" validate:"uniqueids,dive"`
}

// Duration sums the lesson durations of the module in minutes.
func (m Module) Duration() int {
	total := 0
	for _, lesson := range m.Lessons {
		total += lesson.Duration
	}
	return total
}

// Curriculum is the ordered module list stored as a JSON document column.
type Curriculum []Module

// Value implements driver.Valuer.
func (c Curriculum) Value() (driver.Value, error) {
	if c == nil {
		return []byte("[]"), nil
	}
	raw, err := json.Marshal([]Module(c))
	if err != nil {
		return nil, fmt.Errorf("marshal curriculum: %w", err)
	}
	return raw, nil
}

// Scan implements sql.Scanner.
func (c *Curriculum) Scan(src interface{}) error {
	var raw types.JSONText
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("scan curriculum: %w", err)
	}
	if len(raw) == 0 || string(raw) == "{}" || string(raw) == "null" {
		*c = Curriculum{}
		return nil
	}
	var modules []Module
	if err := raw.Unmarshal(&modules); err != nil {
		return fmt.Errorf("decode curriculum: %w", err)
	}
	*c = modules
	return nil
}

// TotalDuration sums lesson durations transitively over every module.
func (c Curriculum) TotalDuration() int {
	total := 0
	for _, module := range c {
		total += module.Duration()
	}
	return total
}

// FindModule returns the index of the module with the given id or -1.
func (c Curriculum) FindModule(moduleID string) int {
	for i, module := range c {
		if module.ID == moduleID {
			return i
		}
	}
	return -1
}

// CountCompleted returns how many distinct ids in completed name a module of
// the curriculum. Ids left behind by curriculum edits are ignored.
func (c Curriculum) CountCompleted(completed []string) int {
	seen := make(map[string]struct{}, len(completed))
	count := 0
	for _, id := range completed {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c.FindModule(id) >= 0 {
			count++
		}
	}
	return count
}

// Course is an authored unit of instructional content.
type Course struct {
	ID            string         `db:"id" json:"id"`
	InstructorID  string         `db:"instructor_id" json:"instructorId"`
	Status        CourseStatus   `db:"status" json:"status"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	Category      string         `db:"category" json:"category"`
	Level         string         `db:"level" json:"level"`
	Price         *float64       `db:"price" json:"price,omitempty"`
	Currency      string         `db:"currency" json:"currency"`
	Tags          pq.StringArray `db:"tags" json:"tags"`
	Objectives    pq.StringArray `db:"objectives" json:"objectives"`
	Requirements  pq.StringArray `db:"requirements" json:"requirements"`
	Curriculum    Curriculum     `db:"curriculum" json:"curriculum"`
	ThumbnailURL  *string        `db:"thumbnail_url" json:"thumbnailUrl,omitempty"`
	TotalDuration int            `db:"total_duration" json:"totalDuration"`
	StudentsCount int            `db:"students_count" json:"studentsCount"`
	Rating        float64        `db:"rating" json:"rating"`
	RatingSum     int64          `db:"rating_sum" json:"-"`
	RatingCount   int            `db:"rating_count" json:"reviewsCount"`
	Reviews       []Review       `db:"-" json:"reviews"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
	PublishedAt   *time.Time     `db:"published_at" json:"publishedAt,omitempty"`
	ArchivedAt    *time.Time     `db:"archived_at" json:"archivedAt,omitempty"`
}

// TotalModules returns the number of modules in the current curriculum.
func (c *Course) TotalModules() int {
	if c == nil {
		return 0
	}
	return len(c.Curriculum)
}

// AverageRating rounds sum/count to one decimal place; zero reviews yield 0.
func AverageRating(sum int64, count int) float64 {
	if count <= 0 {
		return 0
	}
	mean := float64(sum) / float64(count)
	return math.Round(mean*10) / 10
}

// CourseFilter is the conjunction of supported listing filters.
type CourseFilter struct {
	// PublishedOnly hides drafts and archived courses, except those owned by
	// OwnerID when it is set.
	PublishedOnly bool
	OwnerID       string
	Status        CourseStatus
	Category      string
	Level         string
	InstructorID  string
	Term          string
	Limit         int
	Cursor        *CourseCursor
}
