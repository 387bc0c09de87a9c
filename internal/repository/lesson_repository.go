package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

const (
	lessonColumns = `l.id, l.title, l.description, l.lesson_type, l.teacher_id, u.username AS teacher_username,
l.max_students, l.duration_weeks, l.duration_hours, l.start_date, l.end_date, l.created_at, l.updated_at`
	lessonFrom = `FROM lessons l
JOIN users u ON u.id = l.teacher_id
LEFT JOIN (SELECT lesson_id, COUNT(*) AS approved_count FROM enrollments WHERE status = 'approved' GROUP BY lesson_id) ac ON ac.lesson_id = l.id`
	lessonOrder = `ORDER BY l.start_date ASC, l.title ASC`
)

// LessonRepository persists lessons and their derived session days.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs the repository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

type lessonConditions struct {
	clauses []string
	args    []interface{}
}

func (c *lessonConditions) add(clause string, values ...interface{}) {
	placeholders := make([]interface{}, len(values))
	for i := range values {
		placeholders[i] = fmt.Sprintf("$%d", len(c.args)+i+1)
	}
	c.clauses = append(c.clauses, fmt.Sprintf(clause, placeholders...))
	c.args = append(c.args, values...)
}

func (c *lessonConditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func (c *lessonConditions) applyCommon(filter models.LessonFilter) {
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		c.add("(l.title ILIKE %[1]s OR l.description ILIKE %[1]s OR u.username ILIKE %[1]s)", pattern)
	}
	if filter.Date != nil {
		day := *filter.Date
		c.add("l.start_date >= %s AND l.start_date < %s", day, day.AddDate(0, 0, 1))
	}
}

// List returns lessons with their approved counts.
// TeacherID narrows to one teacher; Status keeps lessons holding at least one enrollment in that status.
func (r *LessonRepository) List(ctx context.Context, filter models.LessonFilter) ([]models.LessonSummary, int, error) {
	conds := &lessonConditions{}
	conds.applyCommon(filter)
	if filter.TeacherID != "" {
		conds.add("l.teacher_id = %s", filter.TeacherID)
	}
	if filter.Status != "" {
		conds.add("EXISTS (SELECT 1 FROM enrollments fe WHERE fe.lesson_id = l.id AND fe.status = %s)", filter.Status)
	}
	return r.listSummaries(ctx, conds, filter)
}

// ListAvailable returns lessons the student has not requested and that still have room.
func (r *LessonRepository) ListAvailable(ctx context.Context, studentID string, filter models.LessonFilter) ([]models.LessonSummary, int, error) {
	conds := &lessonConditions{}
	conds.add("NOT EXISTS (SELECT 1 FROM enrollments se WHERE se.lesson_id = l.id AND se.student_id = %s)", studentID)
	conds.clauses = append(conds.clauses, "COALESCE(ac.approved_count, 0) < l.max_students")
	conds.applyCommon(filter)
	return r.listSummaries(ctx, conds, filter)
}

func (r *LessonRepository) listSummaries(ctx context.Context, conds *lessonConditions, filter models.LessonFilter) ([]models.LessonSummary, int, error) {
	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s, COALESCE(ac.approved_count, 0) AS approved_count %s%s %s LIMIT %d OFFSET %d",
		lessonColumns, lessonFrom, conds.where(), lessonOrder, size, offset)
	items := make([]models.LessonSummary, 0)
	if err := r.db.SelectContext(ctx, &items, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list lessons: %w", err)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", lessonFrom, conds.where())
	if err := r.db.GetContext(ctx, &total, countQuery, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count lessons: %w", err)
	}
	return items, total, nil
}

// ListForStudent returns the lessons a student has an enrollment for, with the enrollment status.
func (r *LessonRepository) ListForStudent(ctx context.Context, filter models.LessonFilter) ([]models.StudentLesson, int, error) {
	conds := &lessonConditions{}
	conds.add("e.student_id = %s", filter.StudentID)
	conds.applyCommon(filter)
	if filter.Status != "" {
		conds.add("e.status = %s", filter.Status)
	}

	from := `FROM enrollments e
JOIN lessons l ON l.id = e.lesson_id
JOIN users u ON u.id = l.teacher_id`
	page, size := normalisePage(filter.Page, filter.PageSize)
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s, e.id AS enrollment_id, e.status %s%s %s LIMIT %d OFFSET %d",
		lessonColumns, from, conds.where(), lessonOrder, size, offset)
	items := make([]models.StudentLesson, 0)
	if err := r.db.SelectContext(ctx, &items, query, conds.args...); err != nil {
		return nil, 0, fmt.Errorf("list student lessons: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) %s%s", from, conds.where()), conds.args...); err != nil {
		return nil, 0, fmt.Errorf("count student lessons: %w", err)
	}
	return items, total, nil
}

// ListEnrolledByStudent returns every lesson a student has an enrollment for, whatever its status.
func (r *LessonRepository) ListEnrolledByStudent(ctx context.Context, studentID string) ([]models.StudentLesson, error) {
	query := fmt.Sprintf(`SELECT %s, e.id AS enrollment_id, e.status FROM enrollments e
JOIN lessons l ON l.id = e.lesson_id
JOIN users u ON u.id = l.teacher_id
WHERE e.student_id = $1 %s`, lessonColumns, lessonOrder)
	items := make([]models.StudentLesson, 0)
	if err := r.db.SelectContext(ctx, &items, query, studentID); err != nil {
		return nil, fmt.Errorf("list student enrollments: %w", err)
	}
	return items, nil
}

// ListByTeacher returns every lesson given by a teacher.
func (r *LessonRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons l JOIN users u ON u.id = l.teacher_id WHERE l.teacher_id = $1 %s", lessonColumns, lessonOrder)
	lessons := make([]models.Lesson, 0)
	if err := r.db.SelectContext(ctx, &lessons, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher lessons: %w", err)
	}
	return lessons, nil
}

// FindByID returns a lesson with its teacher username.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.Lesson, error) {
	query := fmt.Sprintf("SELECT %s FROM lessons l JOIN users u ON u.id = l.teacher_id WHERE l.id = $1", lessonColumns)
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		if err == sql.ErrNoRows || database.IsInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find lesson: %w", err)
	}
	return &lesson, nil
}

// ExistsByTitle reports whether another lesson already uses the exact title.
func (r *LessonRepository) ExistsByTitle(ctx context.Context, title, excludeID string) (bool, error) {
	var exists bool
	var err error
	if excludeID == "" {
		err = r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM lessons WHERE title = $1)`, title)
	} else {
		err = r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM lessons WHERE title = $1 AND id <> $2)`, title, excludeID)
	}
	if err != nil {
		return false, fmt.Errorf("check lesson title: %w", err)
	}
	return exists, nil
}

// ListDays returns the session days of a lesson in date order.
func (r *LessonRepository) ListDays(ctx context.Context, lessonID string) ([]models.LessonDay, error) {
	const query = `SELECT id, lesson_id, to_char(date, 'YYYY-MM-DD') AS date, to_char(start_time, 'HH24:MI') AS start_time, to_char(end_time, 'HH24:MI') AS end_time
FROM lesson_days WHERE lesson_id = $1 ORDER BY date ASC`
	days := make([]models.LessonDay, 0)
	if err := r.db.SelectContext(ctx, &days, query, lessonID); err != nil {
		return nil, fmt.Errorf("list lesson days: %w", err)
	}
	return days, nil
}

// Create inserts a lesson and its session days in one transaction.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson, days []models.LessonDay) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now

	const query = `INSERT INTO lessons (id, title, description, lesson_type, teacher_id, max_students, duration_weeks, duration_hours, start_date, end_date, created_at, updated_at)
VALUES (:id, :title, :description, :lesson_type, :teacher_id, :max_students, :duration_weeks, :duration_hours, :start_date, :end_date, :created_at, :updated_at)`
	return r.saveWithDays(ctx, "create lesson", query, lesson, days)
}

// Update rewrites a lesson and replaces all of its session days in one transaction.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson, days []models.LessonDay) error {
	lesson.UpdatedAt = time.Now().UTC()

	const query = `UPDATE lessons SET title = :title, description = :description, lesson_type = :lesson_type, max_students = :max_students,
duration_weeks = :duration_weeks, duration_hours = :duration_hours, start_date = :start_date, end_date = :end_date, updated_at = :updated_at
WHERE id = :id`
	return r.saveWithDays(ctx, "update lesson", query, lesson, days)
}

func (r *LessonRepository) saveWithDays(ctx context.Context, op, query string, lesson *models.Lesson, days []models.LessonDay) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.NamedExecContext(ctx, query, lesson)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected, rerr := res.RowsAffected(); rerr == nil && affected == 0 {
		err = sql.ErrNoRows
		return err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM lesson_days WHERE lesson_id = $1`, lesson.ID); err != nil {
		return fmt.Errorf("clear lesson days: %w", err)
	}
	const insertDay = `INSERT INTO lesson_days (id, lesson_id, date, start_time, end_time) VALUES ($1, $2, $3, $4, $5)`
	for i := range days {
		day := &days[i]
		if day.ID == "" {
			day.ID = uuid.NewString()
		}
		day.LessonID = lesson.ID
		if _, err = tx.ExecContext(ctx, insertDay, day.ID, day.LessonID, day.Date, day.StartTime, day.EndTime); err != nil {
			return fmt.Errorf("insert lesson day: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

// Delete removes a lesson; days and enrollments cascade.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
