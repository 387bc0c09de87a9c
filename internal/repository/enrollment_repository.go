package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

// ErrCapacityReached is returned when an approval would exceed a lesson's max_students.
var ErrCapacityReached = errors.New("lesson capacity reached")

const enrollmentDetailSelect = `SELECT e.id, e.lesson_id, e.student_id, e.status, e.created_at, e.updated_at,
l.title AS lesson_title, l.teacher_id, u.username AS student_username
FROM enrollments e
JOIN lessons l ON l.id = e.lesson_id
JOIN users u ON u.id = e.student_id`

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// GetOrCreate inserts a requested enrollment for the pair or returns the existing one.
// A concurrent insert of the same pair is read back instead of failing.
func (r *EnrollmentRepository) GetOrCreate(ctx context.Context, lessonID, studentID string) (*models.Enrollment, bool, error) {
	now := time.Now().UTC()
	const insertQuery = `INSERT INTO enrollments (id, lesson_id, student_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (lesson_id, student_id) DO NOTHING
RETURNING id, lesson_id, student_id, status, created_at, updated_at`

	var enrollment models.Enrollment
	err := r.db.GetContext(ctx, &enrollment, insertQuery, uuid.NewString(), lessonID, studentID, models.EnrollmentStatusRequested, now, now)
	if err == nil {
		return &enrollment, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("create enrollment: %w", err)
	}

	const selectQuery = `SELECT id, lesson_id, student_id, status, created_at, updated_at FROM enrollments WHERE lesson_id = $1 AND student_id = $2`
	if err := r.db.GetContext(ctx, &enrollment, selectQuery, lessonID, studentID); err != nil {
		return nil, false, fmt.Errorf("load existing enrollment: %w", err)
	}
	return &enrollment, false, nil
}

// FindByID returns an enrollment with lesson and student info.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error) {
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, enrollmentDetailSelect+` WHERE e.id = $1`, id); err != nil {
		if err == sql.ErrNoRows || database.IsInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("find enrollment: %w", err)
	}
	return &detail, nil
}

// List returns enrollments filtered by lesson, student, owning teacher or status.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var conditions []string
	var args []interface{}

	if filter.LessonID != "" {
		conditions = append(conditions, fmt.Sprintf("e.lesson_id = $%d", len(args)+1))
		args = append(args, filter.LessonID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("l.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if q := strings.TrimSpace(filter.LessonQuery); q != "" {
		conditions = append(conditions, fmt.Sprintf("(l.title ILIKE $%[1]d OR l.description ILIKE $%[1]d)", len(args)+1))
		args = append(args, "%"+q+"%")
	}
	if filter.LessonDate != nil {
		day := *filter.LessonDate
		conditions = append(conditions, fmt.Sprintf("l.start_date >= $%d AND l.start_date < $%d", len(args)+1, len(args)+2))
		args = append(args, day, day.AddDate(0, 0, 1))
	}
	if filter.LessonStatus != "" {
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments fe WHERE fe.lesson_id = l.id AND fe.status = $%d)", len(args)+1))
		args = append(args, filter.LessonStatus)
	}

	query := enrollmentDetailSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY e.created_at ASC"

	items := make([]models.EnrollmentDetail, 0)
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return items, nil
}

// UpdateStatus sets the enrollment status. With guardCapacity, approving an enrollment that is
// not yet approved fails with ErrCapacityReached once the lesson is full. The lesson row is
// locked for the duration so concurrent approvals are serialised.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, guardCapacity bool) (enrollment *models.Enrollment, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin enrollment decision: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current models.Enrollment
	const selectQuery = `SELECT id, lesson_id, student_id, status, created_at, updated_at FROM enrollments WHERE id = $1`
	if err = tx.GetContext(ctx, &current, selectQuery, id); err != nil {
		if err == sql.ErrNoRows || database.IsInvalidText(err) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("load enrollment: %w", err)
	}

	var maxStudents int
	if err = tx.GetContext(ctx, &maxStudents, `SELECT max_students FROM lessons WHERE id = $1 FOR UPDATE`, current.LessonID); err != nil {
		return nil, fmt.Errorf("lock lesson: %w", err)
	}

	if guardCapacity && status == models.EnrollmentStatusApproved && current.Status != models.EnrollmentStatusApproved {
		var approved int
		if err = tx.GetContext(ctx, &approved, `SELECT COUNT(*) FROM enrollments WHERE lesson_id = $1 AND status = 'approved'`, current.LessonID); err != nil {
			return nil, fmt.Errorf("count approved enrollments: %w", err)
		}
		if approved >= maxStudents {
			err = ErrCapacityReached
			return nil, err
		}
	}

	current.Status = status
	current.UpdatedAt = time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`, current.ID, current.Status, current.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update enrollment status: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit enrollment decision: %w", err)
	}
	return &current, nil
}
