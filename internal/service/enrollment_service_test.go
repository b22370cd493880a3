package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-catalog-api/internal/models"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

func newEnrollmentServiceForTest(db *memoryDB) *EnrollmentService {
	return NewEnrollmentService(fakeEnrollments{db}, fakeCourses{db}, nil, nil, nil)
}

func TestEnrollmentEnrollOnce(t *testing.T) {
	db := newMemoryDB()
	svc := newEnrollmentServiceForTest(db)
	ctx := context.Background()
	course := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, []int{10}, []int{20})

	enrollment, err := svc.Enroll(ctx, course.ID, "stu-1")
	require.NoError(t, err)
	assert.NotEmpty(t, enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Zero(t, enrollment.Progress)
	assert.Empty(t, enrollment.CompletedModules)

	_, err = svc.Enroll(ctx, course.ID, "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyEnrolled))
	assert.Equal(t, 1, db.courses[course.ID].StudentsCount)

	check, err := svc.Check(ctx, course.ID, "stu-1")
	require.NoError(t, err)
	assert.True(t, check.IsEnrolled)
	assert.Equal(t, enrollment.ID, check.Enrollment.ID)

	check, err = svc.Check(ctx, course.ID, "stu-2")
	require.NoError(t, err)
	assert.False(t, check.IsEnrolled)
	assert.Nil(t, check.Enrollment)
}

func TestEnrollmentConcurrentEnrollsCountOnce(t *testing.T) {
	db := newMemoryDB()
	svc := newEnrollmentServiceForTest(db)
	course := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, []int{10})

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		duplicate int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Enroll(context.Background(), course.ID, "stu-race")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, appErrors.ErrAlreadyEnrolled):
				duplicate++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, attempts-1, duplicate)
	assert.Equal(t, 1, db.courses[course.ID].StudentsCount)
}

func TestEnrollmentDistinctStudentsIncrementCount(t *testing.T) {
	db := newMemoryDB()
	svc := newEnrollmentServiceForTest(db)
	course := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, []int{10})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Enroll(context.Background(), course.ID, fmt.Sprintf("stu-%d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, db.courses[course.ID].StudentsCount)
}

func TestEnrollmentRejectsUnknownAndArchivedCourses(t *testing.T) {
	db := newMemoryDB()
	ctx := context.Background()
	archived := db.seedCourse(instructorAlice.ID, models.CourseStatusArchived, []int{10})

	_, err := newEnrollmentServiceForTest(db).Enroll(ctx, "missing", "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = newEnrollmentServiceForTest(db).Enroll(ctx, archived.ID, "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrCourseNotEnrollable))
	assert.Zero(t, db.courses[archived.ID].StudentsCount)
}

func TestEnrollmentRejectsDraftCourse(t *testing.T) {
	db := newMemoryDB()
	draft := db.seedCourse(instructorAlice.ID, models.CourseStatusDraft, []int{10})

	_, err := newEnrollmentServiceForTest(db).Enroll(context.Background(), draft.ID, "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrCourseNotEnrollable))
	assert.Zero(t, db.courses[draft.ID].StudentsCount)
	assert.Empty(t, db.enrollments)
}

func TestEnrollmentDropKeepsStudentsCount(t *testing.T) {
	db := newMemoryDB()
	svc := newEnrollmentServiceForTest(db)
	ctx := context.Background()
	course := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, []int{10})
	_, err := svc.Enroll(ctx, course.ID, "stu-1")
	require.NoError(t, err)

	dropped, err := svc.Drop(ctx, course.ID, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusDropped, dropped.Status)
	assert.NotNil(t, dropped.DroppedAt)
	assert.Equal(t, 1, db.courses[course.ID].StudentsCount)

	_, err = svc.Drop(ctx, course.ID, "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	_, err = svc.Drop(ctx, course.ID, "stu-unknown")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Enroll(ctx, course.ID, "stu-1")
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyEnrolled))
}

func TestEnrollmentListForStudent(t *testing.T) {
	db := newMemoryDB()
	svc := newEnrollmentServiceForTest(db)
	ctx := context.Background()
	first := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, []int{10})
	second := db.seedCourse(instructorBob.ID, models.CourseStatusPublished, []int{10})
	_, err := svc.Enroll(ctx, first.ID, "stu-1")
	require.NoError(t, err)
	_, err = svc.Enroll(ctx, second.ID, "stu-1")
	require.NoError(t, err)

	items, err := svc.ListForStudent(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, item.CourseID, item.CourseSummary.ID)
		assert.NotEmpty(t, item.CourseSummary.Title)
	}

	none, err := svc.ListForStudent(ctx, "stu-nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEnrollmentRoster(t *testing.T) {
	db := newMemoryDB()
	svc := newEnrollmentServiceForTest(db)
	ctx := context.Background()
	course := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, []int{10})
	for _, student := range []string{"stu-b", "stu-a"} {
		_, err := svc.Enroll(ctx, course.ID, student)
		require.NoError(t, err)
	}

	_, _, err := svc.Roster(ctx, course.ID, instructorBob)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	found, items, err := svc.Roster(ctx, course.ID, instructorAlice)
	require.NoError(t, err)
	assert.Equal(t, course.ID, found.ID)
	require.Len(t, items, 2)
	assert.Equal(t, "stu-a", items[0].StudentID)

	_, _, err = svc.Roster(ctx, "missing", adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
