package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/middleware"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type fakeLessonSrv struct {
	lastQuery service.LessonQuery
	detailHit bool
	listErr   error
}

func (f *fakeLessonSrv) Create(context.Context, policy.Subject, models.LessonRequest, models.RequestMeta) (*models.LessonDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create lessons")
}

func (f *fakeLessonSrv) Update(context.Context, policy.Subject, string, models.LessonRequest, models.RequestMeta) (*models.LessonDetail, error) {
	return &models.LessonDetail{}, nil
}

func (f *fakeLessonSrv) Delete(context.Context, policy.Subject, string, models.RequestMeta) error {
	return nil
}

func (f *fakeLessonSrv) Get(_ context.Context, id string) (*models.LessonDetail, bool, error) {
	return &models.LessonDetail{Lesson: models.Lesson{ID: id, Title: "Algebra I"}}, f.detailHit, nil
}

func (f *fakeLessonSrv) List(_ context.Context, query service.LessonQuery) ([]models.LessonSummary, *models.Pagination, error) {
	f.lastQuery = query
	if f.listErr != nil {
		return nil, nil, f.listErr
	}
	return []models.LessonSummary{}, models.NewPagination(1, 5, 0), nil
}

func (f *fakeLessonSrv) Available(context.Context, policy.Subject, service.LessonQuery) ([]models.LessonSummary, *models.Pagination, error) {
	return []models.LessonSummary{}, models.NewPagination(1, 5, 0), nil
}

func (f *fakeLessonSrv) TeacherDashboard(context.Context, policy.Subject, service.LessonQuery) (*models.TeacherDashboard, error) {
	return &models.TeacherDashboard{Pagination: models.NewPagination(1, 5, 0)}, nil
}

func (f *fakeLessonSrv) StudentDashboard(context.Context, policy.Subject, service.LessonQuery) ([]models.StudentLesson, *models.Pagination, error) {
	return nil, models.NewPagination(1, 5, 0), nil
}

func (f *fakeLessonSrv) TeacherLessons(context.Context, policy.Subject, string) ([]models.Lesson, error) {
	return nil, nil
}

type fakeExporter struct {
	format string
}

func (f *fakeExporter) ExportSchedule(_ context.Context, _ string, format string) (*service.ExportFile, error) {
	f.format = format
	return &service.ExportFile{Filename: "algebra-i-schedule.csv", ContentType: "text/csv", Data: []byte("week,date,start,end\n")}, nil
}

func TestLessonHandlerListPassesFilters(t *testing.T) {
	srv := &fakeLessonSrv{}
	handler := NewLessonHandler(srv, &fakeExporter{})

	c, rec := newTestContext(http.MethodGet, "/lessons?query=alg&date=2024-01-01&page=2&page_size=7", studentClaims)
	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.LessonQuery{Query: "alg", Date: "2024-01-01", Page: 2, PageSize: 7}, srv.lastQuery)
}

func TestLessonHandlerListInvalidDate(t *testing.T) {
	handler := NewLessonHandler(&fakeLessonSrv{listErr: appErrors.Clone(appErrors.ErrValidation, "date must use the YYYY-MM-DD format")}, &fakeExporter{})

	c, rec := newTestContext(http.MethodGet, "/lessons?date=01/02/2024", studentClaims)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLessonHandlerGetReportsCacheHit(t *testing.T) {
	handler := NewLessonHandler(&fakeLessonSrv{detailHit: true}, &fakeExporter{})

	c, rec := newTestContext(http.MethodGet, "/lessons/l1", studentClaims)
	c.Params = gin.Params{{Key: "id", Value: "l1"}}
	middleware.WithResponseMeta()(c)
	handler.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Equal(t, "Algebra I", envelope.Data["title"])
}

func TestLessonHandlerCreateRejectsEmptyBody(t *testing.T) {
	handler := NewLessonHandler(&fakeLessonSrv{}, &fakeExporter{})

	c, rec := newTestContext(http.MethodPost, "/lessons", studentClaims)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Request.Body = http.NoBody
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLessonHandlerExportSchedule(t *testing.T) {
	exporter := &fakeExporter{}
	handler := NewLessonHandler(&fakeLessonSrv{}, exporter)

	c, rec := newTestContext(http.MethodGet, "/lessons/l1/schedule/export", teacherClaims)
	c.Params = gin.Params{{Key: "id", Value: "l1"}}
	handler.ExportSchedule(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "algebra-i-schedule.csv")
}
