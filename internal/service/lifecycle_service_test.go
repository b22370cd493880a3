package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-catalog-api/internal/models"
	appErrors "github.com/noah-isme/course-catalog-api/pkg/errors"
)

func newLifecycleServiceForTest(db *memoryDB) *LifecycleService {
	svc := NewLifecycleService(fakeCourses{db}, nil, nil, nil)
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func TestLifecyclePublishUnpublishArchive(t *testing.T) {
	db := newMemoryDB()
	svc := newLifecycleServiceForTest(db)
	ctx := context.Background()
	seeded := db.seedCourse(instructorAlice.ID, models.CourseStatusDraft, []int{10})

	published, err := svc.Publish(ctx, seeded.ID, instructorAlice)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)
	firstPublish := *published.PublishedAt

	republished, err := svc.Publish(ctx, seeded.ID, instructorAlice)
	require.NoError(t, err)
	assert.True(t, republished.PublishedAt.After(firstPublish))

	draft, err := svc.Unpublish(ctx, seeded.ID, instructorAlice)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusDraft, draft.Status)

	archived, err := svc.Archive(ctx, seeded.ID, adminActor)
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusArchived, archived.Status)
	assert.NotNil(t, archived.ArchivedAt)
}

func TestLifecycleRejectsInvalidTransitions(t *testing.T) {
	db := newMemoryDB()
	svc := newLifecycleServiceForTest(db)
	ctx := context.Background()

	draft := db.seedCourse(instructorAlice.ID, models.CourseStatusDraft, []int{10})
	_, err := svc.Unpublish(ctx, draft.ID, instructorAlice)
	assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))

	archived := db.seedCourse(instructorAlice.ID, models.CourseStatusDraft, []int{10})
	_, err = svc.Archive(ctx, archived.ID, instructorAlice)
	require.NoError(t, err)
	for _, action := range []func(context.Context, string, models.Actor) (*models.Course, error){svc.Publish, svc.Unpublish, svc.Archive} {
		_, err = action(ctx, archived.ID, instructorAlice)
		assert.True(t, errors.Is(err, appErrors.ErrInvalidTransition))
	}
	assert.Equal(t, models.CourseStatusArchived, db.courses[archived.ID].Status)
}

func TestLifecycleUnknownCourse(t *testing.T) {
	svc := newLifecycleServiceForTest(newMemoryDB())

	_, err := svc.Publish(context.Background(), "missing", adminActor)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestLifecycleRequiresOwnership(t *testing.T) {
	db := newMemoryDB()
	svc := newLifecycleServiceForTest(db)
	seeded := db.seedCourse(instructorAlice.ID, models.CourseStatusDraft, []int{10})

	_, err := svc.Publish(context.Background(), seeded.ID, instructorBob)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Publish(context.Background(), seeded.ID, studentActor)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Equal(t, models.CourseStatusDraft, db.courses[seeded.ID].Status)
}

type racingStatusStore struct {
	fakeCourses
	before func()
}

func (s racingStatusStore) UpdateStatus(ctx context.Context, id string, from []models.CourseStatus, next models.CourseStatus, at time.Time) (*models.Course, error) {
	s.before()
	return s.fakeCourses.UpdateStatus(ctx, id, from, next, at)
}

func TestLifecycleConcurrentChangeIsConflict(t *testing.T) {
	db := newMemoryDB()
	seeded := db.seedCourse(instructorAlice.ID, models.CourseStatusPublished, []int{10})
	store := racingStatusStore{fakeCourses: fakeCourses{db}, before: func() {
		db.mu.Lock()
		db.courses[seeded.ID].Status = models.CourseStatusArchived
		db.mu.Unlock()
	}}
	svc := NewLifecycleService(store, nil, nil, nil)

	_, err := svc.Unpublish(context.Background(), seeded.ID, instructorAlice)
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Equal(t, models.CourseStatusArchived, db.courses[seeded.ID].Status)
}
