// Package policy holds every role and ownership rule of the API in one place.
package policy

import "github.com/noah-isme/tutorhub-api/internal/models"

// Action names something a subject may attempt.
type Action string

const (
	ActionCreateLesson          Action = "lesson:create"
	ActionUpdateLesson          Action = "lesson:update"
	ActionDeleteLesson          Action = "lesson:delete"
	ActionViewLessonEnrollments Action = "lesson:enrollments"
	ActionViewAvailableLessons  Action = "lesson:available"
	ActionViewTeacherDashboard  Action = "dashboard:teacher"
	ActionViewStudentDashboard  Action = "dashboard:student"
	ActionRequestEnrollment     Action = "enrollment:request"
	ActionDecideEnrollment      Action = "enrollment:decide"
	ActionManageUsers           Action = "users:manage"
	ActionManageSkills          Action = "skills:manage"
	ActionManageProducts        Action = "products:manage"
	ActionViewTeacherLessons    Action = "teacher:lessons"
	ActionUseCart               Action = "cart:use"
)

// Subject is the authenticated actor.
type Subject struct {
	ID   string
	Role models.UserRole
}

// Resource describes the object acted upon. OwnerID is the teacher owning the lesson,
// or the lesson behind an enrollment. It is empty for actions without an owned object.
type Resource struct {
	OwnerID string
}

// Anything is the resource for actions that are not tied to an owned object.
var Anything = Resource{}

// SubjectFromClaims builds a Subject from access token claims.
func SubjectFromClaims(claims *models.JWTClaims) Subject {
	if claims == nil {
		return Subject{}
	}
	return Subject{ID: claims.UserID, Role: claims.Role}
}

// Can reports whether subject may perform action on resource.
func Can(subject Subject, action Action, resource Resource) bool {
	if subject.ID == "" || !subject.Role.Valid() {
		return false
	}
	owns := resource.OwnerID != "" && resource.OwnerID == subject.ID

	switch action {
	case ActionCreateLesson, ActionViewTeacherDashboard:
		return subject.Role == models.RoleTeacher
	case ActionUpdateLesson, ActionDecideEnrollment:
		return subject.Role == models.RoleTeacher && owns
	case ActionDeleteLesson, ActionViewLessonEnrollments:
		return subject.Role == models.RoleManager || (subject.Role == models.RoleTeacher && owns)
	case ActionRequestEnrollment, ActionViewAvailableLessons, ActionViewStudentDashboard:
		return subject.Role == models.RoleStudent
	case ActionManageUsers, ActionManageSkills, ActionManageProducts, ActionViewTeacherLessons:
		return subject.Role == models.RoleManager
	case ActionUseCart:
		return true
	}
	return false
}
