package models

// CourseAction is an authoring command applied to a course's status.
type CourseAction string

// Course lifecycle actions.
const (
	CourseActionPublish   CourseAction = "publish"
	CourseActionUnpublish CourseAction = "unpublish"
	CourseActionArchive   CourseAction = "archive"
)

// courseTransitions enumerates every legal (state, action) pair. Anything
// absent from the table is an illegal transition; archived has no exits.
var courseTransitions = map[CourseStatus]map[CourseAction]CourseStatus{
	CourseStatusDraft: {
		CourseActionPublish: CourseStatusPublished,
		CourseActionArchive: CourseStatusArchived,
	},
	CourseStatusPublished: {
		CourseActionPublish:   CourseStatusPublished,
		CourseActionUnpublish: CourseStatusDraft,
		CourseActionArchive:   CourseStatusArchived,
	},
	CourseStatusArchived: {},
}

// Next resolves the status reached by applying action, reporting false when
// the transition is not allowed.
func (s CourseStatus) Next(action CourseAction) (CourseStatus, bool) {
	next, ok := courseTransitions[s][action]
	return next, ok
}

// Valid reports whether s is a known course status.
func (s CourseStatus) Valid() bool {
	_, ok := courseTransitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s CourseStatus) Terminal() bool {
	return len(courseTransitions[s]) == 0
}

// SourcesFor lists the statuses from which action is legal.
func SourcesFor(action CourseAction) []CourseStatus {
	var out []CourseStatus
	for _, from := range []CourseStatus{CourseStatusDraft, CourseStatusPublished, CourseStatusArchived} {
		if _, ok := courseTransitions[from][action]; ok {
			out = append(out, from)
		}
	}
	return out
}

// EnrollmentEvent drives the enrollment state machine.
type EnrollmentEvent string

// Enrollment events.
const (
	EnrollmentEventComplete EnrollmentEvent = "complete"
	EnrollmentEventDrop     EnrollmentEvent = "drop"
)

var enrollmentTransitions = map[EnrollmentStatus]map[EnrollmentEvent]EnrollmentStatus{
	EnrollmentStatusActive: {
		EnrollmentEventComplete: EnrollmentStatusCompleted,
		EnrollmentEventDrop:     EnrollmentStatusDropped,
	},
	EnrollmentStatusCompleted: {},
	EnrollmentStatusDropped:   {},
}

// Next resolves the status reached by event, reporting false when illegal.
func (s EnrollmentStatus) Next(event EnrollmentEvent) (EnrollmentStatus, bool) {
	next, ok := enrollmentTransitions[s][event]
	return next, ok
}
