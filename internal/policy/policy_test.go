package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func TestCan(t *testing.T) {
	teacher := Subject{ID: "t1", Role: models.RoleTeacher}
	otherTeacher := Subject{ID: "t2", Role: models.RoleTeacher}
	student := Subject{ID: "s1", Role: models.RoleStudent}
	manager := Subject{ID: "m1", Role: models.RoleManager}
	owned := Resource{OwnerID: "t1"}

	cases := []struct {
		name     string
		subject  Subject
		action   Action
		resource Resource
		want     bool
	}{
		{"teacher creates lesson", teacher, ActionCreateLesson, Anything, true},
		{"student cannot create lesson", student, ActionCreateLesson, Anything, false},
		{"manager cannot create lesson", manager, ActionCreateLesson, Anything, false},
		{"owner updates lesson", teacher, ActionUpdateLesson, owned, true},
		{"other teacher cannot update", otherTeacher, ActionUpdateLesson, owned, false},
		{"manager cannot update", manager, ActionUpdateLesson, owned, false},
		{"owner deletes lesson", teacher, ActionDeleteLesson, owned, true},
		{"manager deletes lesson", manager, ActionDeleteLesson, owned, true},
		{"other teacher cannot delete", otherTeacher, ActionDeleteLesson, owned, false},
		{"student requests enrollment", student, ActionRequestEnrollment, owned, true},
		{"teacher cannot request enrollment", teacher, ActionRequestEnrollment, owned, false},
		{"owner decides enrollment", teacher, ActionDecideEnrollment, owned, true},
		{"other teacher cannot decide", otherTeacher, ActionDecideEnrollment, owned, false},
		{"manager cannot decide", manager, ActionDecideEnrollment, owned, false},
		{"decide without owner is refused", teacher, ActionDecideEnrollment, Anything, false},
		{"manager views enrollments", manager, ActionViewLessonEnrollments, owned, true},
		{"student views available", student, ActionViewAvailableLessons, Anything, true},
		{"teacher cannot view available", teacher, ActionViewAvailableLessons, Anything, false},
		{"manager manages products", manager, ActionManageProducts, Anything, true},
		{"teacher cannot manage users", teacher, ActionManageUsers, Anything, false},
		{"manager views teacher lessons", manager, ActionViewTeacherLessons, Anything, true},
		{"anyone uses cart", student, ActionUseCart, Anything, true},
		{"anonymous is refused", Subject{}, ActionUseCart, Anything, false},
		{"unknown role is refused", Subject{ID: "x", Role: "ADMIN"}, ActionManageUsers, Anything, false},
		{"unknown action is refused", manager, Action("lesson:publish"), Anything, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Can(tc.subject, tc.action, tc.resource))
		})
	}
}

func TestSubjectFromClaims(t *testing.T) {
	s := SubjectFromClaims(&models.JWTClaims{UserID: "u1", Role: models.RoleStudent})
	assert.Equal(t, Subject{ID: "u1", Role: models.RoleStudent}, s)
	assert.Equal(t, Subject{}, SubjectFromClaims(nil))
}
