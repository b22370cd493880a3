package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurriculumTotalDuration(t *testing.T) {
	curriculum := Curriculum{
		{ID: "m1", Lessons: []Lesson{{Duration: 10}, {Duration: 15}, {Duration: 20}}},
		{ID: "m2", Lessons: []Lesson{{Duration: 12}, {Duration: 18}}},
	}
	assert.Equal(t, 75, curriculum.TotalDuration())
	assert.Equal(t, 1, curriculum.FindModule("m2"))
	assert.Equal(t, -1, curriculum.FindModule("missing"))
}

func TestCurriculumScanValue(t *testing.T) {
	in := Curriculum{{ID: "m1", Title: "Intro", Lessons: []Lesson{{ID: "l1", Title: "Hello", Type: LessonTypeVideo, Duration: 5}}}}
	raw, err := in.Value()
	require.NoError(t, err)

	var out Curriculum
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	var empty Curriculum
	require.NoError(t, empty.Scan(nil))
	assert.Empty(t, empty)
}

func TestAverageRating(t *testing.T) {
	assert.Equal(t, 0.0, AverageRating(0, 0))
	assert.Equal(t, 4.7, AverageRating(14, 3))
	assert.Equal(t, 5.0, AverageRating(5, 1))
	assert.Equal(t, 2.5, AverageRating(5, 2))
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(0, 0))
	assert.Equal(t, 0, ProgressPercent(3, 0))
	assert.Equal(t, 33, ProgressPercent(1, 3))
	assert.Equal(t, 67, ProgressPercent(2, 3))
	assert.Equal(t, 50, ProgressPercent(1, 2))
	assert.Equal(t, 100, ProgressPercent(3, 3))
	assert.Equal(t, 100, ProgressPercent(4, 3))
}

func TestCourseCursorRoundTrip(t *testing.T) {
	cursor := CourseCursor{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), ID: "course-1"}
	decoded, err := DecodeCourseCursor(cursor.Encode())
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(decoded.CreatedAt))
	assert.Equal(t, "course-1", decoded.ID)

	none, err := DecodeCourseCursor("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = DecodeCourseCursor("!!!")
	assert.Error(t, err)
}

func TestCurriculumCountCompleted(t *testing.T) {
	curriculum := Curriculum{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}

	assert.Equal(t, 0, curriculum.CountCompleted(nil))
	assert.Equal(t, 2, curriculum.CountCompleted([]string{"m1", "m3"}))
	assert.Equal(t, 1, curriculum.CountCompleted([]string{"m2", "m2", "gone"}))
	assert.Equal(t, 3, curriculum.CountCompleted([]string{"m3", "m2", "m1", "gone"}))
}
