package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-catalog-api/internal/dto"
	"github.com/noah-isme/course-catalog-api/internal/models"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

func enrolledFixture(t *testing.T, modules int) (*memoryDB, *ProgressService, *models.Course) {
	t.Helper()
	db := newMemoryDB()
	durations := make([][]int, modules)
	for i := range durations {
		durations[i] = []int{10}
	}
	course := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, durations...)
	_, err := newEnrollmentServiceForTest(db).Enroll(context.Background(), course.ID, "stu-1")
	require.NoError(t, err)
	return db, NewProgressService(fakeEnrollments{db}, nil, nil), course
}

func TestProgressCompletesAfterEveryModule(t *testing.T) {
	_, svc, course := enrolledFixture(t, 3)
	ctx := context.Background()

	expected := []int{33, 67, 100}
	for i, module := range course.Curriculum {
		view, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", module.ID, true)
		require.NoError(t, err)
		assert.Equal(t, expected[i], view.Progress)
	}

	view, err := svc.GetProgress(ctx, course.ID, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, models.EnrollmentStatusCompleted, view.Status)
	assert.NotNil(t, view.CompletedAt)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, view.CompletedModules)
}

func TestProgressMarkingIsIdempotent(t *testing.T) {
	_, svc, course := enrolledFixture(t, 4)
	ctx := context.Background()

	first, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m2", true)
	require.NoError(t, err)
	second, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m2", true)
	require.NoError(t, err)
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, []string{"m2"}, second.CompletedModules)
	assert.Equal(t, 25, second.Progress)

	cleared, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m3", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"m2"}, cleared.CompletedModules)

	cleared, err = svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m2", false)
	require.NoError(t, err)
	assert.Empty(t, cleared.CompletedModules)
	assert.Zero(t, cleared.Progress)
}

func TestProgressCompletionIsSticky(t *testing.T) {
	_, svc, course := enrolledFixture(t, 2)
	ctx := context.Background()
	for _, module := range course.Curriculum {
		_, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", module.ID, true)
		require.NoError(t, err)
	}
	done, err := svc.GetProgress(ctx, course.ID, "stu-1")
	require.NoError(t, err)
	completedAt := *done.CompletedAt

	view, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m1", false)
	require.NoError(t, err)
	assert.Equal(t, 50, view.Progress)
	assert.Equal(t, models.EnrollmentStatusCompleted, view.Status)

	view, err = svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m1", true)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, completedAt, *view.CompletedAt)
}

func TestProgressRejectsUnknownModuleAndEnrollment(t *testing.T) {
	db, svc, course := enrolledFixture(t, 2)
	ctx := context.Background()

	_, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m-unknown", true)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SetModuleCompletion(ctx, course.ID, "stu-2", "m1", true)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.GetProgress(ctx, course.ID, "stu-2")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = newEnrollmentServiceForTest(db).Drop(ctx, course.ID, "stu-1")
	require.NoError(t, err)
	_, err = svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m1", true)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestProgressConcurrentMarksAreNotLost(t *testing.T) {
	_, svc, course := enrolledFixture(t, 10)

	var wg sync.WaitGroup
	for _, module := range course.Curriculum {
		wg.Add(1)
		go func(moduleID string) {
			defer wg.Done()
			_, err := svc.SetModuleCompletion(context.Background(), course.ID, "stu-1", moduleID, true)
			assert.NoError(t, err)
		}(module.ID)
	}
	wg.Wait()

	view, err := svc.GetProgress(context.Background(), course.ID, "stu-1")
	require.NoError(t, err)
	assert.Len(t, view.CompletedModules, 10)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, models.EnrollmentStatusCompleted, view.Status)
}

func TestProgressCurriculumWithDuplicateModulesIsRejected(t *testing.T) {
	db, svc, course := enrolledFixture(t, 2)
	ctx := context.Background()
	courses := newCourseServiceForTest(db)

	duplicated := []models.Module{
		{ID: "m1", Title: "One", Lessons: []models.Lesson{{Title: "A", Type: models.LessonTypeText, Duration: 5}}},
		{ID: "m1", Title: "One again", Lessons: []models.Lesson{{Title: "B", Type: models.LessonTypeText, Duration: 5}}},
	}
	_, err := courses.Update(ctx, course.ID, dto.UpdateCourseRequest{Curriculum: &duplicated}, instructorAlice)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Len(t, db.courses[course.ID].Curriculum, 2)

	for _, moduleID := range []string{"m1", "m2"} {
		_, err = svc.SetModuleCompletion(ctx, course.ID, "stu-1", moduleID, true)
		require.NoError(t, err)
	}
	view, err := svc.GetProgress(ctx, course.ID, "stu-1")
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, models.EnrollmentStatusCompleted, view.Status)
}

func TestProgressStaleModuleAfterCurriculumEdit(t *testing.T) {
	db, svc, course := enrolledFixture(t, 3)
	ctx := context.Background()
	for _, moduleID := range []string{"m1", "m3"} {
		_, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", moduleID, true)
		require.NoError(t, err)
	}

	db.mu.Lock()
	db.courses[course.ID].Curriculum = db.courses[course.ID].Curriculum[:2]
	db.mu.Unlock()

	view, err := svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m2", true)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, view.CompletedModules)

	view, err = svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m3", false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"m1", "m2"}, view.CompletedModules)
	assert.Equal(t, 100, view.Progress)

	_, err = svc.SetModuleCompletion(ctx, course.ID, "stu-1", "m3", true)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
