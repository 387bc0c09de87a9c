package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type enrollmentRepository interface {
	GetOrCreate(ctx context.Context, lessonID, studentID string) (*models.Enrollment, bool, error)
	FindByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, guardCapacity bool) (*models.Enrollment, error)
}

type lessonReader interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
}

// EnrollmentService handles join requests and the teacher's decisions on them.
type EnrollmentService struct {
	repo          enrollmentRepository
	lessons       lessonReader
	audit         auditWriter
	cache         *CacheService
	metrics       *MetricsService
	logger        *zap.Logger
	guardCapacity bool
}

// NewEnrollmentService constructs EnrollmentService. With guardCapacity, approvals beyond a lesson's
// max_students are refused.
func NewEnrollmentService(repo enrollmentRepository, lessons lessonReader, audit auditWriter, cache *CacheService, metrics *MetricsService, logger *zap.Logger, guardCapacity bool) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:          repo,
		lessons:       lessons,
		audit:         audit,
		cache:         cache,
		metrics:       metrics,
		logger:        logger,
		guardCapacity: guardCapacity,
	}
}

// Request asks to join a lesson. Repeating the request returns the existing enrollment unchanged.
func (s *EnrollmentService) Request(ctx context.Context, actor policy.Subject, lessonID string) (*models.EnrollmentResult, error) {
	if !policy.Can(actor, policy.ActionRequestEnrollment, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request to join lessons")
	}

	lesson, err := s.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}

	enrollment, created, err := s.repo.GetOrCreate(ctx, lesson.ID, actor.ID)
	if err != nil && database.IsUniqueViolation(err, "enrollments_lesson_student_key") {
		enrollment, created, err = s.repo.GetOrCreate(ctx, lesson.ID, actor.ID)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to request enrollment")
	}

	s.metrics.RecordEnrollmentRequest(created)

	message := "already requested"
	if created {
		message = fmt.Sprintf("your request to join '%s' has been sent", lesson.Title)
	}
	return &models.EnrollmentResult{Enrollment: enrollment, Created: created, Message: message}, nil
}

// Decide approves or rejects an enrollment. Only the lesson's teacher may decide; repeating a
// decision overwrites the status.
func (s *EnrollmentService) Decide(ctx context.Context, actor policy.Subject, enrollmentID, action string, meta models.RequestMeta) (*models.Enrollment, error) {
	status, ok := models.EnrollmentAction(strings.ToLower(action)).Status()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject")
	}

	current, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if !policy.Can(actor, policy.ActionDecideEnrollment, policy.Resource{OwnerID: current.TeacherID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the lesson's teacher can decide on this request")
	}

	updated, err := s.repo.UpdateStatus(ctx, enrollmentID, status, s.guardCapacity)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacityReached):
			return nil, appErrors.Clone(appErrors.ErrLessonFull, fmt.Sprintf("'%s' has no free places left", current.LessonTitle))
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment")
	}

	s.metrics.RecordEnrollmentDecision(string(status))
	if s.cache != nil {
		_ = s.cache.InvalidateLesson(ctx, current.LessonID)
	}
	s.record(ctx, actor.ID, current, updated, meta)
	return updated, nil
}

// ListForLesson returns a lesson's enrollments for its teacher or a manager, optionally by status.
func (s *EnrollmentService) ListForLesson(ctx context.Context, actor policy.Subject, lessonID, status string) ([]models.EnrollmentDetail, error) {
	lesson, err := s.loadLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor, policy.ActionViewLessonEnrollments, policy.Resource{OwnerID: lesson.TeacherID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the lesson's teacher or a manager can view its enrollments")
	}

	filter := models.EnrollmentFilter{LessonID: lesson.ID}
	if status = strings.TrimSpace(status); status != "" {
		filter.Status = models.EnrollmentStatus(strings.ToLower(status))
		if !filter.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of requested, approved, rejected")
		}
	}

	items, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	return items, nil
}

func (s *EnrollmentService) loadLesson(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.lessons.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

func (s *EnrollmentService) record(ctx context.Context, actorID string, before *models.EnrollmentDetail, after *models.Enrollment, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	oldValues, _ := json.Marshal(map[string]interface{}{"status": before.Status})
	newValues, _ := json.Marshal(map[string]interface{}{"status": after.Status, "lesson_id": after.LessonID, "student_id": after.StudentID})
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionEnrollmentDecide,
		Resource:   "enrollments",
		ResourceID: &after.ID,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
}
