package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

var lessonSummaryColumns = []string{"id", "title", "description", "lesson_type", "teacher_id", "teacher_username", "max_students",
	"duration_weeks", "duration_hours", "start_date", "end_date", "created_at", "updated_at", "approved_count"}

func sampleLesson() *models.Lesson {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return &models.Lesson{
		ID:            "lesson-1",
		Title:         "Algebra I",
		Description:   "Linear equations",
		LessonType:    models.LessonTypeGroup,
		TeacherID:     "teacher-1",
		MaxStudents:   5,
		DurationWeeks: 3,
		DurationHours: 2,
		StartDate:     start,
		EndDate:       start.AddDate(0, 0, 21),
	}
}

func TestLessonRepositoryCreateWritesDaysInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	days := []models.LessonDay{
		{Date: "2024-01-01", StartTime: "10:00", EndTime: "12:00"},
		{Date: "2024-01-08", StartTime: "10:00", EndTime: "12:00"},
		{Date: "2024-01-15", StartTime: "10:00", EndTime: "12:00"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO lessons").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM lesson_days WHERE lesson_id = $1")).WithArgs("lesson-1").WillReturnResult(sqlmock.NewResult(0, 0))
	for _, day := range days {
		mock.ExpectExec("INSERT INTO lesson_days").
			WithArgs(sqlmock.AnyArg(), "lesson-1", day.Date, day.StartTime, day.EndTime).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}
	mock.ExpectCommit()

	err := repo.Create(context.Background(), sampleLesson(), days)
	require.NoError(t, err)
	for _, day := range days {
		assert.Equal(t, "lesson-1", day.LessonID)
		assert.NotEmpty(t, day.ID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateMissingRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE lessons SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), sampleLesson(), nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryUpdateDayFailureRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE lessons SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM lesson_days").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO lesson_days").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Update(context.Background(), sampleLesson(), []models.LessonDay{{Date: "2024-01-01", StartTime: "10:00", EndTime: "12:00"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryExistsByTitle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM lessons WHERE title = $1)")).
		WithArgs("Algebra I").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM lessons WHERE title = $1 AND id <> $2)")).
		WithArgs("Algebra I", "lesson-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := repo.ExistsByTitle(context.Background(), "Algebra I", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByTitle(context.Background(), "Algebra I", "lesson-1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListAvailable(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	l := sampleLesson()
	rows := sqlmock.NewRows(lessonSummaryColumns).
		AddRow(l.ID, l.Title, l.Description, string(l.LessonType), l.TeacherID, "alice", l.MaxStudents, l.DurationWeeks, l.DurationHours, l.StartDate, l.EndDate, l.StartDate, l.StartDate, 2)

	mock.ExpectQuery(`NOT EXISTS \(SELECT 1 FROM enrollments se WHERE se.lesson_id = l.id AND se.student_id = \$1\) AND COALESCE\(ac.approved_count, 0\) < l.max_students AND \(l.title ILIKE \$2 OR l.description ILIKE \$2 OR u.username ILIKE \$2\) ORDER BY l.start_date ASC, l.title ASC LIMIT 5 OFFSET 0`).
		WithArgs("student-1", "%alg%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM lessons l")).
		WithArgs("student-1", "%alg%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.ListAvailable(context.Background(), "student-1", models.LessonFilter{Query: "alg", PageSize: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, 2, items[0].ApprovedCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListFiltersByDateAndStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE l.start_date >= $1 AND l.start_date < $2 AND l.teacher_id = $3 AND EXISTS (SELECT 1 FROM enrollments fe WHERE fe.lesson_id = l.id AND fe.status = $4)")).
		WithArgs(day, day.AddDate(0, 0, 1), "teacher-1", models.EnrollmentStatusRequested).
		WillReturnRows(sqlmock.NewRows(lessonSummaryColumns))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	items, total, err := repo.List(context.Background(), models.LessonFilter{Date: &day, TeacherID: "teacher-1", Status: models.EnrollmentStatusRequested})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListDays(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	rows := sqlmock.NewRows([]string{"id", "lesson_id", "date", "start_time", "end_time"}).
		AddRow("d1", "lesson-1", "2024-01-01", "10:00", "12:00").
		AddRow("d2", "lesson-1", "2024-01-08", "10:00", "12:00")
	mock.ExpectQuery("FROM lesson_days WHERE lesson_id = \\$1 ORDER BY date ASC").WithArgs("lesson-1").WillReturnRows(rows)

	days, err := repo.ListDays(context.Background(), "lesson-1")
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-08", days[1].Date)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLessonRepositoryListEnrolledByStudentIsUnpaginated(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLessonRepository(db)

	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	columns := append(append([]string{}, lessonSummaryColumns[:13]...), "enrollment_id", "status")
	rows := sqlmock.NewRows(columns).
		AddRow("lesson-1", "Algebra I", "", "group", "teacher-1", "alice", 5, 3, 2, start, start.AddDate(0, 0, 21), start, start, "e1", "approved").
		AddRow("lesson-2", "Guitar", "", "private", "teacher-2", "dan", 1, 2, 1, start, start.AddDate(0, 0, 14), start, start, "e2", "requested")
	mock.ExpectQuery(`WHERE e\.student_id = \$1 ORDER BY l\.start_date ASC, l\.title ASC$`).
		WithArgs("student-1").
		WillReturnRows(rows)

	items, err := repo.ListEnrolledByStudent(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, models.EnrollmentStatusRequested, items[1].Status)
	assert.Equal(t, "e2", items[1].EnrollmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
