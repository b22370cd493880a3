package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorCanView(t *testing.T) {
	anonymous := Actor{}
	student := Actor{ID: "stu-1", Role: RoleStudent}
	owner := Actor{ID: "inst-1", Role: RoleInstructor}
	other := Actor{ID: "inst-2", Role: RoleInstructor}
	admin := Actor{ID: "adm-1", Role: RoleAdmin}

	for _, actor := range []Actor{anonymous, student, owner, other, admin} {
		assert.True(t, actor.CanView(CourseStatusPublished, "inst-1"))
	}
	for _, status := range []CourseStatus{CourseStatusDraft, CourseStatusArchived} {
		assert.False(t, anonymous.CanView(status, "inst-1"))
		assert.False(t, student.CanView(status, "inst-1"))
		assert.False(t, other.CanView(status, "inst-1"))
		assert.True(t, owner.CanView(status, "inst-1"))
		assert.True(t, admin.CanView(status, "inst-1"))
	}
}

func TestActorCatalogScope(t *testing.T) {
	var filter CourseFilter
	Actor{}.CatalogScope(&filter)
	assert.Equal(t, CourseFilter{PublishedOnly: true}, filter)

	filter = CourseFilter{}
	Actor{ID: "stu-1", Role: RoleStudent}.CatalogScope(&filter)
	assert.Equal(t, CourseFilter{PublishedOnly: true}, filter)

	filter = CourseFilter{}
	Actor{ID: "inst-1", Role: RoleInstructor}.CatalogScope(&filter)
	assert.Equal(t, CourseFilter{PublishedOnly: true, OwnerID: "inst-1"}, filter)

	filter = CourseFilter{}
	Actor{ID: "adm-1", Role: RoleAdmin}.CatalogScope(&filter)
	assert.Equal(t, CourseFilter{}, filter)
}
