package models

import "github.com/golang-jwt/jwt/v5"

// UserRole is the role claimed by the identity provider.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
)

// JWTClaims is the access token payload issued by the identity provider.
// The user id is trusted as-is once the signature verifies.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role UserRole
}

// CanManage reports whether the actor may author the instructor's courses.
func (a Actor) CanManage(instructorID string) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleInstructor:
		return a.ID != "" && a.ID == instructorID
	}
	return false
}

// CanView reports whether the actor may read a course in the given status.
// Published courses are public; the rest are visible to their managers only.
func (a Actor) CanView(status CourseStatus, instructorID string) bool {
	return status == CourseStatusPublished || a.CanManage(instructorID)
}

// CatalogScope narrows a listing to what the actor may see. Anonymous callers
// and students get published courses; instructors also get their own.
func (a Actor) CatalogScope(filter *CourseFilter) {
	switch {
	case a.Role == RoleAdmin:
	case a.Role == RoleInstructor && a.ID != "":
		filter.PublishedOnly = true
		filter.OwnerID = a.ID
	default:
		filter.PublishedOnly = true
	}
}
