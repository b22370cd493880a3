package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/course-catalog-api/internal/models"
	"github.com/noah-isme/course-catalog-api/internal/repository"
)

// memoryDB emulates the transactional primitives of the Postgres
// repositories behind one mutex.
type memoryDB struct {
	mu          sync.Mutex
	seq         int
	clock       time.Time
	courses     map[string]*models.Course
	enrollments map[string]*models.Enrollment
	reviews     map[string]map[string]models.Review
	failWith    error
}

func newMemoryDB() *memoryDB {
	return &memoryDB{
		clock:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		courses:     map[string]*models.Course{},
		enrollments: map[string]*models.Enrollment{},
		reviews:     map[string]map[string]models.Review{},
	}
}

func (db *memoryDB) tick() time.Time {
	db.clock = db.clock.Add(time.Second)
	return db.clock
}

func (db *memoryDB) nextID(prefix string) string {
	db.seq++
	return fmt.Sprintf("%s-%d", prefix, db.seq)
}

func enrollmentKey(courseID, studentID string) string {
	return courseID + "|" + studentID
}

func cloneCourse(c *models.Course) *models.Course {
	out := *c
	raw, _ := json.Marshal(c.Curriculum)
	var curriculum models.Curriculum
	_ = json.Unmarshal(raw, &curriculum)
	out.Curriculum = curriculum
	out.Tags = append(pq.StringArray{}, c.Tags...)
	out.Objectives = append(pq.StringArray{}, c.Objectives...)
	out.Requirements = append(pq.StringArray{}, c.Requirements...)
	return &out
}

func cloneEnrollment(e *models.Enrollment) *models.Enrollment {
	out := *e
	out.CompletedModules = append(pq.StringArray{}, e.CompletedModules...)
	return &out
}

type fakeCourses struct{ db *memoryDB }

func (f fakeCourses) Create(_ context.Context, course *models.Course) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failWith != nil {
		return f.db.failWith
	}
	if course.ID == "" {
		course.ID = f.db.nextID("course")
	}
	course.CreatedAt = f.db.tick()
	course.UpdatedAt = course.CreatedAt
	f.db.courses[course.ID] = cloneCourse(course)
	return nil
}

func (f fakeCourses) FindByID(_ context.Context, id string) (*models.Course, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failWith != nil {
		return nil, f.db.failWith
	}
	course, ok := f.db.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneCourse(course), nil
}

func (f fakeCourses) FindWithReviews(_ context.Context, id string) (*models.Course, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failWith != nil {
		return nil, f.db.failWith
	}
	course, ok := f.db.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := cloneCourse(course)
	out.Reviews = f.db.sortedReviews(id)
	return out, nil
}

func (f fakeCourses) List(_ context.Context, filter models.CourseFilter) ([]models.Course, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.failWith != nil {
		return nil, f.db.failWith
	}
	var out []models.Course
	term := strings.ToLower(filter.Term)
	for _, c := range f.db.courses {
		if filter.PublishedOnly && c.Status != models.CourseStatusPublished &&
			(filter.OwnerID == "" || c.InstructorID != filter.OwnerID) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Category != "" && c.Category != filter.Category {
			continue
		}
		if filter.Level != "" && c.Level != filter.Level {
			continue
		}
		if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(c.Title), term) &&
			!strings.Contains(strings.ToLower(c.Description), term) &&
			!strings.Contains(strings.ToLower(c.Category), term) {
			continue
		}
		if filter.Cursor != nil {
			if c.CreatedAt.After(filter.Cursor.CreatedAt) ||
				(c.CreatedAt.Equal(filter.Cursor.CreatedAt) && c.ID >= filter.Cursor.ID) {
				continue
			}
		}
		out = append(out, *cloneCourse(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (f fakeCourses) Update(_ context.Context, course *models.Course, expected time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	stored, ok := f.db.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	if !stored.UpdatedAt.Equal(expected) {
		return repository.ErrStaleCourse
	}
	course.UpdatedAt = f.db.tick()
	next := cloneCourse(course)
	next.Status = stored.Status
	next.StudentsCount = stored.StudentsCount
	next.Rating, next.RatingSum, next.RatingCount = stored.Rating, stored.RatingSum, stored.RatingCount
	next.CreatedAt, next.PublishedAt, next.ArchivedAt = stored.CreatedAt, stored.PublishedAt, stored.ArchivedAt
	f.db.courses[course.ID] = next
	return nil
}

func (f fakeCourses) UpdateStatus(_ context.Context, id string, from []models.CourseStatus, next models.CourseStatus, at time.Time) (*models.Course, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	stored, ok := f.db.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	accepted := false
	for _, status := range from {
		if stored.Status == status {
			accepted = true
		}
	}
	if !accepted {
		return nil, repository.ErrStaleCourse
	}
	stored.Status = next
	stored.UpdatedAt = at
	switch next {
	case models.CourseStatusPublished:
		stamp := at
		stored.PublishedAt = &stamp
	case models.CourseStatusArchived:
		stamp := at
		stored.ArchivedAt = &stamp
	}
	return cloneCourse(stored), nil
}

func (f fakeCourses) SetThumbnail(_ context.Context, id, url string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	stored, ok := f.db.courses[id]
	if !ok {
		return sql.ErrNoRows
	}
	stored.ThumbnailURL = &url
	stored.UpdatedAt = f.db.tick()
	return nil
}

func (f fakeCourses) Delete(_ context.Context, id string) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if _, ok := f.db.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.db.courses, id)
	return nil
}

type fakeEnrollments struct{ db *memoryDB }

func (f fakeEnrollments) FindByCourseAndStudent(_ context.Context, courseID, studentID string) (*models.Enrollment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.enrollments[enrollmentKey(courseID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneEnrollment(e), nil
}

func (f fakeEnrollments) CreateIfAbsent(_ context.Context, enrollment *models.Enrollment) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	course, ok := f.db.courses[enrollment.CourseID]
	if !ok {
		return sql.ErrNoRows
	}
	if course.Status != models.CourseStatusPublished {
		return repository.ErrCourseClosed
	}
	key := enrollmentKey(enrollment.CourseID, enrollment.StudentID)
	if _, exists := f.db.enrollments[key]; exists {
		return repository.ErrEnrollmentExists
	}
	if enrollment.ID == "" {
		enrollment.ID = f.db.nextID("enr")
	}
	f.db.enrollments[key] = cloneEnrollment(enrollment)
	course.StudentsCount++
	return nil
}

func (f fakeEnrollments) ListByStudent(_ context.Context, studentID string) ([]models.EnrollmentDetail, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.EnrollmentDetail
	for _, e := range f.db.enrollments {
		if e.StudentID != studentID {
			continue
		}
		detail := models.EnrollmentDetail{Enrollment: *cloneEnrollment(e)}
		if c, ok := f.db.courses[e.CourseID]; ok {
			detail.CourseSummary = models.CourseSummary{ID: c.ID, Title: c.Title, Status: c.Status, InstructorID: c.InstructorID}
		}
		out = append(out, detail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EnrolledAt.After(out[j].EnrolledAt) })
	return out, nil
}

func (f fakeEnrollments) ListByCourse(_ context.Context, courseID string) ([]models.Enrollment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []models.Enrollment
	for _, e := range f.db.enrollments {
		if e.CourseID == courseID {
			out = append(out, *cloneEnrollment(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (f fakeEnrollments) Transition(_ context.Context, courseID, studentID string, event models.EnrollmentEvent, at time.Time) (*models.Enrollment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.enrollments[enrollmentKey(courseID, studentID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	next, ok := e.Status.Next(event)
	if !ok {
		return nil, repository.ErrEnrollmentState
	}
	e.Status = next
	e.LastAccessedAt = at
	if next == models.EnrollmentStatusDropped {
		e.DroppedAt = &at
	}
	return cloneEnrollment(e), nil
}

func (f fakeEnrollments) ApplyModuleCompletion(_ context.Context, params repository.ModuleCompletionParams) (*models.Enrollment, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	course, ok := f.db.courses[params.CourseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if params.Completed && course.Curriculum.FindModule(params.ModuleID) < 0 {
		return nil, repository.ErrModuleNotFound
	}
	e, ok := f.db.enrollments[enrollmentKey(params.CourseID, params.StudentID)]
	if !ok || e.Status == models.EnrollmentStatusDropped {
		return nil, sql.ErrNoRows
	}

	present := -1
	for i, id := range e.CompletedModules {
		if id == params.ModuleID {
			present = i
		}
	}
	switch {
	case params.Completed && present < 0:
		e.CompletedModules = append(e.CompletedModules, params.ModuleID)
	case !params.Completed && present >= 0:
		e.CompletedModules = append(e.CompletedModules[:present], e.CompletedModules[present+1:]...)
	}
	e.LastAccessedAt = params.At
	e.Progress = models.ProgressPercent(course.Curriculum.CountCompleted(e.CompletedModules), len(course.Curriculum))
	if e.Progress == 100 {
		if next, ok := e.Status.Next(models.EnrollmentEventComplete); ok {
			e.Status = next
			if e.CompletedAt == nil {
				at := params.At
				e.CompletedAt = &at
			}
		}
	}
	return cloneEnrollment(e), nil
}

type fakeReviews struct{ db *memoryDB }

func (f fakeReviews) Upsert(_ context.Context, review *models.Review) (*models.RatingAggregate, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	course, ok := f.db.courses[review.CourseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	byStudent := f.db.reviews[review.CourseID]
	if byStudent == nil {
		byStudent = map[string]models.Review{}
		f.db.reviews[review.CourseID] = byStudent
	}
	agg := models.RatingAggregate{Sum: course.RatingSum + int64(review.Rating), Count: course.RatingCount}
	if previous, ok := byStudent[review.StudentID]; ok {
		agg.Sum -= int64(previous.Rating)
		review.CreatedAt = previous.CreatedAt
	} else {
		agg.Count++
		review.CreatedAt = f.db.tick()
	}
	agg.Rating = models.AverageRating(agg.Sum, agg.Count)
	byStudent[review.StudentID] = *review
	course.RatingSum, course.RatingCount, course.Rating = agg.Sum, agg.Count, agg.Rating
	return &agg, nil
}

func (f fakeReviews) ListByCourse(_ context.Context, courseID string) ([]models.Review, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.sortedReviews(courseID), nil
}

// sortedReviews must be called with db.mu held.
func (db *memoryDB) sortedReviews(courseID string) []models.Review {
	out := []models.Review{}
	for _, r := range db.reviews[courseID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// seedCourse stores a course with one module per entry of lessonDurations.
func (db *memoryDB) seedCourse(instructorID string, status models.CourseStatus, lessonDurations ...[]int) *models.Course {
	db.mu.Lock()
	defer db.mu.Unlock()
	course := &models.Course{
		ID:           db.nextID("course"),
		InstructorID: instructorID,
		Status:       status,
		Title:        "Seeded course",
		Description:  "A seeded course for tests",
		Category:     "programming",
		Level:        "beginner",
		Currency:     "USD",
		Objectives:   pq.StringArray{"learn"},
	}
	for i, durations := range lessonDurations {
		module := models.Module{ID: fmt.Sprintf("m%d", i+1), Title: fmt.Sprintf("Module %d", i+1)}
		for j, d := range durations {
			module.Lessons = append(module.Lessons, models.Lesson{
				ID: fmt.Sprintf("m%d-l%d", i+1, j+1), Title: "Lesson", Type: models.LessonTypeText, Duration: d,
			})
		}
		course.Curriculum = append(course.Curriculum, module)
	}
	course.TotalDuration = course.Curriculum.TotalDuration()
	course.CreatedAt = db.tick()
	course.UpdatedAt = course.CreatedAt
	db.courses[course.ID] = cloneCourse(course)
	return course
}
