package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/config"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

const (
	msgDuplicateTitle = "duplicate title"
	msgGroupCapacity  = "group lessons must allow at least 2 students"
)

type lessonRepository interface {
	List(ctx context.Context, filter models.LessonFilter) ([]models.LessonSummary, int, error)
	ListAvailable(ctx context.Context, studentID string, filter models.LessonFilter) ([]models.LessonSummary, int, error)
	ListForStudent(ctx context.Context, filter models.LessonFilter) ([]models.StudentLesson, int, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.Lesson, error)
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ExistsByTitle(ctx context.Context, title, excludeID string) (bool, error)
	ListDays(ctx context.Context, lessonID string) ([]models.LessonDay, error)
	Create(ctx context.Context, lesson *models.Lesson, days []models.LessonDay) error
	Update(ctx context.Context, lesson *models.Lesson, days []models.LessonDay) error
	Delete(ctx context.Context, id string) error
}

type enrollmentLister interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LessonQuery carries raw list filters as received from a request.
type LessonQuery struct {
	Query    string
	Date     string
	Status   string
	Page     int
	PageSize int
}

// LessonService implements lesson CRUD, validation and the role dashboards.
type LessonService struct {
	repo        lessonRepository
	enrollments enrollmentLister
	users       userFinder
	audit       auditWriter
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         config.LessonsConfig
}

// NewLessonService constructs a LessonService.
func NewLessonService(repo lessonRepository, enrollments enrollmentLister, users userFinder, audit auditWriter, cacheSvc *CacheService, validate *validator.Validate, logger *zap.Logger, cfg config.LessonsConfig) *LessonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}
	return &LessonService{
		repo:        repo,
		enrollments: enrollments,
		users:       users,
		audit:       audit,
		cache:       cacheSvc,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Create validates and stores a new lesson owned by the acting teacher, with its generated schedule.
func (s *LessonService) Create(ctx context.Context, actor policy.Subject, req models.LessonRequest, meta models.RequestMeta) (*models.LessonDetail, error) {
	if !policy.Can(actor, policy.ActionCreateLesson, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create lessons")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	lesson := &models.Lesson{TeacherID: actor.ID}
	applyLessonRequest(lesson, req)

	days, err := s.prepare(ctx, lesson, "")
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, lesson, days); err != nil {
		return nil, mapLessonWriteError(err, "failed to create lesson")
	}

	s.record(ctx, actor.ID, models.AuditActionLessonCreate, lesson, nil, meta)
	return &models.LessonDetail{Lesson: *lesson, Days: days, ApprovedStudents: []models.EnrollmentDetail{}}, nil
}

// Update rewrites a lesson owned by the actor and regenerates its schedule.
func (s *LessonService) Update(ctx context.Context, actor policy.Subject, id string, req models.LessonRequest, meta models.RequestMeta) (*models.LessonDetail, error) {
	lesson, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !policy.Can(actor, policy.ActionUpdateLesson, policy.Resource{OwnerID: lesson.TeacherID}) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the lesson's teacher can edit it")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}

	before := lessonAuditPayload(lesson)
	applyLessonRequest(lesson, req)

	days, err := s.prepare(ctx, lesson, lesson.ID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, lesson, days); err != nil {
		return nil, mapLessonWriteError(err, "failed to update lesson")
	}

	s.invalidate(ctx, lesson.ID)
	s.record(ctx, actor.ID, models.AuditActionLessonUpdate, lesson, before, meta)
	return s.detail(ctx, lesson)
}

// Delete removes a lesson. Its sessions and enrollments go with it.
func (s *LessonService) Delete(ctx context.Context, actor policy.Subject, id string, meta models.RequestMeta) error {
	lesson, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !policy.Can(actor, policy.ActionDeleteLesson, policy.Resource{OwnerID: lesson.TeacherID}) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the lesson's teacher or a manager can delete it")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}

	s.invalidate(ctx, id)
	s.record(ctx, actor.ID, models.AuditActionLessonDelete, lesson, lessonAuditPayload(lesson), meta)
	return nil
}

// Get returns the lesson detail view. The boolean reports a cache hit.
func (s *LessonService) Get(ctx context.Context, id string) (*models.LessonDetail, bool, error) {
	key := cache.LessonKey(id)
	var cached models.LessonDetail
	if s.cache != nil {
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	lesson, err := s.load(ctx, id)
	if err != nil {
		return nil, false, err
	}
	detail, err := s.detail(ctx, lesson)
	if err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, key, detail)
	}
	return detail, false, nil
}

// List returns every lesson matching the filters.
func (s *LessonService) List(ctx context.Context, query LessonQuery) ([]models.LessonSummary, *models.Pagination, error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Available returns lessons the student has not requested yet and that still have room.
func (s *LessonService) Available(ctx context.Context, actor policy.Subject, query LessonQuery) ([]models.LessonSummary, *models.Pagination, error) {
	if !policy.Can(actor, policy.ActionViewAvailableLessons, policy.Anything) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only students can browse available lessons")
	}
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, nil, err
	}
	items, total, err := s.repo.ListAvailable(ctx, actor.ID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available lessons")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// TeacherDashboard lists the actor's lessons and the requests waiting for a decision.
func (s *LessonService) TeacherDashboard(ctx context.Context, actor policy.Subject, query LessonQuery) (*models.TeacherDashboard, error) {
	if !policy.Can(actor, policy.ActionViewTeacherDashboard, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers have a teacher dashboard")
	}
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, err
	}
	filter.TeacherID = actor.ID

	lessons, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher lessons")
	}
	pending, err := s.enrollments.List(ctx, models.EnrollmentFilter{
		TeacherID:    actor.ID,
		Status:       models.EnrollmentStatusRequested,
		LessonQuery:  filter.Query,
		LessonDate:   filter.Date,
		LessonStatus: filter.Status,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending enrollments")
	}

	return &models.TeacherDashboard{
		Lessons:    lessons,
		Pending:    pending,
		Pagination: models.NewPagination(filter.Page, filter.PageSize, total),
	}, nil
}

// StudentDashboard lists the lessons the student asked to join, with each request's status.
func (s *LessonService) StudentDashboard(ctx context.Context, actor policy.Subject, query LessonQuery) ([]models.StudentLesson, *models.Pagination, error) {
	if !policy.Can(actor, policy.ActionViewStudentDashboard, policy.Anything) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only students have a student dashboard")
	}
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, nil, err
	}
	filter.StudentID = actor.ID

	items, total, err := s.repo.ListForStudent(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student lessons")
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// TeacherLessons returns the lessons given by a teacher, for managers.
func (s *LessonService) TeacherLessons(ctx context.Context, actor policy.Subject, teacherID string) ([]models.Lesson, error) {
	if !policy.Can(actor, policy.ActionViewTeacherLessons, policy.Anything) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can view a teacher's lessons")
	}
	user, err := s.users.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	if user.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}

	lessons, err := s.repo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher lessons")
	}
	return lessons, nil
}

// prepare applies the lesson rules in order and derives the schedule:
// private lessons hold one student, group lessons at least two, titles are unique.
func (s *LessonService) prepare(ctx context.Context, lesson *models.Lesson, excludeID string) ([]models.LessonDay, error) {
	if lesson.LessonType == models.LessonTypePrivate {
		lesson.MaxStudents = 1
	}
	if lesson.LessonType == models.LessonTypeGroup && lesson.MaxStudents < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, msgGroupCapacity)
	}

	exists, err := s.repo.ExistsByTitle(ctx, lesson.Title, excludeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson title")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrValidation, msgDuplicateTitle)
	}

	endDate, days, err := BuildSchedule(lesson.StartDate, lesson.DurationWeeks, lesson.DurationHours, s.cfg.Location())
	if err != nil {
		return nil, err
	}
	lesson.EndDate = endDate
	return days, nil
}

func (s *LessonService) load(ctx context.Context, id string) (*models.Lesson, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

func (s *LessonService) detail(ctx context.Context, lesson *models.Lesson) (*models.LessonDetail, error) {
	days, err := s.repo.ListDays(ctx, lesson.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson schedule")
	}
	approved, err := s.enrollments.List(ctx, models.EnrollmentFilter{LessonID: lesson.ID, Status: models.EnrollmentStatusApproved})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved students")
	}
	return &models.LessonDetail{
		Lesson:           *lesson,
		Days:             days,
		ApprovedCount:    len(approved),
		ApprovedStudents: approved,
	}, nil
}

func (s *LessonService) buildFilter(query LessonQuery) (models.LessonFilter, error) {
	filter := models.LessonFilter{
		Query:    strings.TrimSpace(query.Query),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = s.cfg.PageSize
	}
	if raw := strings.TrimSpace(query.Date); raw != "" {
		day, err := time.ParseInLocation(scheduleDateLayout, raw, s.cfg.Location())
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "date must use the YYYY-MM-DD format")
		}
		filter.Date = &day
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := models.EnrollmentStatus(strings.ToLower(raw))
		if !status.Valid() {
			return filter, appErrors.Clone(appErrors.ErrValidation, "status must be one of requested, approved, rejected")
		}
		filter.Status = status
	}
	return filter, nil
}

func (s *LessonService) invalidate(ctx context.Context, lessonID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.InvalidateLesson(ctx, lessonID)
}

func (s *LessonService) record(ctx context.Context, actorID, action string, lesson *models.Lesson, before []byte, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "lessons",
		ResourceID: &lesson.ID,
		OldValues:  before,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if action != models.AuditActionLessonDelete {
		entry.NewValues = lessonAuditPayload(lesson)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record lesson audit log", zap.String("action", action), zap.Error(err))
	}
}

func applyLessonRequest(lesson *models.Lesson, req models.LessonRequest) {
	lesson.Title = strings.TrimSpace(req.Title)
	lesson.Description = strings.TrimSpace(req.Description)
	lesson.LessonType = req.LessonType
	lesson.MaxStudents = req.MaxStudents
	lesson.DurationWeeks = req.DurationWeeks
	lesson.DurationHours = req.DurationHours
	lesson.StartDate = req.StartDate
}

func mapLessonWriteError(err error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
	}
	if database.IsUniqueViolation(err, "lessons_title_key") {
		return appErrors.Clone(appErrors.ErrValidation, msgDuplicateTitle)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func lessonAuditPayload(lesson *models.Lesson) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"title":          lesson.Title,
		"lesson_type":    lesson.LessonType,
		"max_students":   lesson.MaxStudents,
		"duration_weeks": lesson.DurationWeeks,
		"duration_hours": lesson.DurationHours,
		"start_date":     lesson.StartDate,
	})
	return payload
}
