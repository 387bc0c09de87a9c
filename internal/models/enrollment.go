package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusRequested EnrollmentStatus = "requested"
	EnrollmentStatusApproved  EnrollmentStatus = "approved"
	EnrollmentStatusRejected  EnrollmentStatus = "rejected"
)

// Valid reports whether the status is known.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusRequested, EnrollmentStatusApproved, EnrollmentStatusRejected:
		return true
	}
	return false
}

// EnrollmentAction is a teacher decision on a request.
type EnrollmentAction string

const (
	EnrollmentActionApprove EnrollmentAction = "approve"
	EnrollmentActionReject  EnrollmentAction = "reject"
)

// Status maps the action to the status it sets.
func (a EnrollmentAction) Status() (EnrollmentStatus, bool) {
	switch a {
	case EnrollmentActionApprove:
		return EnrollmentStatusApproved, true
	case EnrollmentActionReject:
		return EnrollmentStatusRejected, true
	}
	return "", false
}

// Enrollment captures a student's request to join a lesson.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	LessonID  string           `db:"lesson_id" json:"lesson_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with lesson and student info.
type EnrollmentDetail struct {
	Enrollment
	LessonTitle     string `db:"lesson_title" json:"lesson_title"`
	TeacherID       string `db:"teacher_id" json:"teacher_id"`
	StudentUsername string `db:"student_username" json:"student_username"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	LessonID  string
	StudentID string
	TeacherID string
	Status    EnrollmentStatus

	// Lesson-side conditions, matching the lesson list filters.
	LessonQuery  string
	LessonDate   *time.Time
	LessonStatus EnrollmentStatus
}

// EnrollmentResult reports the outcome of an enrollment request.
type EnrollmentResult struct {
	Enrollment *Enrollment `json:"enrollment"`
	Created    bool        `json:"created"`
	Message    string      `json:"message"`
}
