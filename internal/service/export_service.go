package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/export"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type scheduleSource interface {
	FindByID(ctx context.Context, id string) (*models.Lesson, error)
	ListDays(ctx context.Context, lessonID string) ([]models.LessonDay, error)
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders lesson schedules as CSV or PDF documents.
type ExportService struct {
	lessons scheduleSource
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(lessons scheduleSource, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{lessons: lessons, logger: logger}
}

// ExportSchedule renders every session of a lesson in date order.
func (s *ExportService) ExportSchedule(ctx context.Context, lessonID, format string) (*ExportFile, error) {
	renderer, err := export.RendererFor(export.Format(format))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	lesson, err := s.lessons.FindByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	days, err := s.lessons.ListDays(ctx, lesson.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson schedule")
	}

	payload, err := renderer.Render(scheduleDataset(lesson, days))
	if err != nil {
		s.logger.Error("failed to render schedule", zap.String("lesson_id", lesson.ID), zap.String("format", renderer.Extension()), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render schedule")
	}

	name := slug.Make(lesson.Title)
	if name == "" {
		name = "lesson"
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s-schedule.%s", name, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
	}, nil
}

func scheduleDataset(lesson *models.Lesson, days []models.LessonDay) export.Dataset {
	headers := []string{"week", "date", "start", "end"}
	rows := make([]map[string]string, 0, len(days))
	for i, day := range days {
		rows = append(rows, map[string]string{
			"week":  strconv.Itoa(i + 1),
			"date":  day.Date,
			"start": day.StartTime,
			"end":   day.EndTime,
		})
	}
	notes := []string{
		fmt.Sprintf("Teacher: %s", lesson.TeacherUsername),
		fmt.Sprintf("Type: %s, up to %d student(s)", lesson.LessonType, lesson.MaxStudents),
		fmt.Sprintf("%d week(s), %d hour(s) per session", lesson.DurationWeeks, lesson.DurationHours),
	}
	return export.Dataset{Title: lesson.Title, Notes: notes, Headers: headers, Rows: rows}
}
