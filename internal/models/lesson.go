package models

import "time"

// LessonType distinguishes one-to-one lessons from group lessons.
type LessonType string

const (
	LessonTypePrivate LessonType = "private"
	LessonTypeGroup   LessonType = "group"
)

// Lesson is a recurring weekly course given by one teacher.
type Lesson struct {
	ID              string     `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	LessonType      LessonType `db:"lesson_type" json:"lesson_type"`
	TeacherID       string     `db:"teacher_id" json:"teacher_id"`
	TeacherUsername string     `db:"teacher_username" json:"teacher_username,omitempty"`
	MaxStudents     int        `db:"max_students" json:"max_students"`
	DurationWeeks   int        `db:"duration_weeks" json:"duration_weeks"`
	DurationHours   int        `db:"duration_hours" json:"duration_hours"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         time.Time  `db:"end_date" json:"end_date"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// LessonDay is one concrete session derived from a lesson's weekly recurrence.
// Date is YYYY-MM-DD, times are HH:MM in the scheduling timezone.
type LessonDay struct {
	ID        string `db:"id" json:"id"`
	LessonID  string `db:"lesson_id" json:"lesson_id"`
	Date      string `db:"date" json:"date"`
	StartTime string `db:"start_time" json:"start_time"`
	EndTime   string `db:"end_time" json:"end_time"`
}

// LessonSummary is a list row carrying the approved enrollment count.
type LessonSummary struct {
	Lesson
	ApprovedCount int `db:"approved_count" json:"approved_count"`
}

// LessonDetail is the full lesson view including its schedule.
type LessonDetail struct {
	Lesson
	Days             []LessonDay        `json:"days"`
	ApprovedCount    int                `json:"approved_count"`
	ApprovedStudents []EnrollmentDetail `json:"approved_students"`
}

// StudentLesson pairs a lesson with the viewing student's enrollment.
type StudentLesson struct {
	Lesson
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	Status       EnrollmentStatus `db:"status" json:"status"`
}

// LessonFilter captures list, dashboard and availability filters.
type LessonFilter struct {
	Query     string
	Date      *time.Time
	Status    EnrollmentStatus
	TeacherID string
	StudentID string
	Page      int
	PageSize  int
}

// TeacherDashboard lists a teacher's lessons and the requests awaiting a decision.
type TeacherDashboard struct {
	Lessons    []LessonSummary    `json:"lessons"`
	Pending    []EnrollmentDetail `json:"pending"`
	Pagination *Pagination        `json:"pagination"`
}

// LessonRequest is the create and update payload for lessons.
type LessonRequest struct {
	Title         string     `json:"title" validate:"required,max=100"`
	Description   string     `json:"description" validate:"required"`
	LessonType    LessonType `json:"lesson_type" validate:"required,oneof=private group"`
	MaxStudents   int        `json:"max_students" validate:"gte=0"`
	DurationWeeks int        `json:"duration_weeks" validate:"gte=0"`
	DurationHours int        `json:"duration_hours" validate:"gte=0"`
	StartDate     time.Time  `json:"start_date" validate:"required"`
}
