package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type lessonService interface {
	Create(ctx context.Context, actor policy.Subject, req models.LessonRequest, meta models.RequestMeta) (*models.LessonDetail, error)
	Update(ctx context.Context, actor policy.Subject, id string, req models.LessonRequest, meta models.RequestMeta) (*models.LessonDetail, error)
	Delete(ctx context.Context, actor policy.Subject, id string, meta models.RequestMeta) error
	Get(ctx context.Context, id string) (*models.LessonDetail, bool, error)
	List(ctx context.Context, query service.LessonQuery) ([]models.LessonSummary, *models.Pagination, error)
	Available(ctx context.Context, actor policy.Subject, query service.LessonQuery) ([]models.LessonSummary, *models.Pagination, error)
	TeacherDashboard(ctx context.Context, actor policy.Subject, query service.LessonQuery) (*models.TeacherDashboard, error)
	StudentDashboard(ctx context.Context, actor policy.Subject, query service.LessonQuery) ([]models.StudentLesson, *models.Pagination, error)
	TeacherLessons(ctx context.Context, actor policy.Subject, teacherID string) ([]models.Lesson, error)
}

type scheduleExporter interface {
	ExportSchedule(ctx context.Context, lessonID, format string) (*service.ExportFile, error)
}

// LessonHandler exposes lesson CRUD, dashboards and schedule export.
type LessonHandler struct {
	service  lessonService
	exporter scheduleExporter
}

// NewLessonHandler constructs the handler.
func NewLessonHandler(svc lessonService, exporter scheduleExporter) *LessonHandler {
	return &LessonHandler{service: svc, exporter: exporter}
}

func lessonQuery(c *gin.Context) service.LessonQuery {
	return service.LessonQuery{
		Query:    c.Query("query"),
		Date:     c.Query("date"),
		Status:   c.Query("status"),
		Page:     queryInt(c, "page"),
		PageSize: queryInt(c, "page_size"),
	}
}

// List godoc
// @Summary List lessons
// @Tags Lessons
// @Produce json
// @Param query query string false "Matches title, description or teacher username"
// @Param date query string false "Start date (YYYY-MM-DD)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons [get]
func (h *LessonHandler) List(c *gin.Context) {
	items, pagination, err := h.service.List(c.Request.Context(), lessonQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Available godoc
// @Summary Lessons a student can still request
// @Description Lessons not yet requested by the student and not full, by start date
// @Tags Lessons
// @Produce json
// @Param query query string false "Search term"
// @Param date query string false "Start date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/available [get]
func (h *LessonHandler) Available(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.Available(c.Request.Context(), actor, lessonQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Lesson detail
// @Description Lesson with its ordered sessions and approved students
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id} [get]
func (h *LessonHandler) Get(c *gin.Context) {
	detail, hit, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil, cacheMeta(c, cache.FamilyLesson, hit))
}

// Create godoc
// @Summary Create lesson
// @Description Teachers only. The weekly schedule is generated from start date and durations.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param payload body models.LessonRequest true "Lesson"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons [post]
func (h *LessonHandler) Create(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	var req models.LessonRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.service.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update lesson
// @Description Owning teacher only. Regenerates the schedule.
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Lesson ID"
// @Param payload body models.LessonRequest true "Lesson"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id} [put]
func (h *LessonHandler) Update(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	var req models.LessonRequest
	if !bindJSON(c, &req) {
		return
	}
	detail, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Delete godoc
// @Summary Delete lesson
// @Description Owning teacher or manager. Sessions and enrollments are removed with it.
// @Tags Lessons
// @Param id path string true "Lesson ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id} [delete]
func (h *LessonHandler) Delete(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ExportSchedule godoc
// @Summary Download a lesson's schedule
// @Tags Lessons
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Lesson ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/schedule/export [get]
func (h *LessonHandler) ExportSchedule(c *gin.Context) {
	file, err := h.exporter.ExportSchedule(c.Request.Context(), c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// TeacherDashboard godoc
// @Summary Teacher dashboard
// @Description The caller's lessons plus pending enrollment requests
// @Tags Dashboard
// @Produce json
// @Param query query string false "Search term"
// @Param date query string false "Start date (YYYY-MM-DD)"
// @Param status query string false "Enrollment status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/teacher [get]
func (h *LessonHandler) TeacherDashboard(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	dashboard, err := h.service.TeacherDashboard(c.Request.Context(), actor, lessonQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, dashboard.Pagination)
}

// StudentDashboard godoc
// @Summary Student dashboard
// @Description Lessons the caller has requested, with their enrollment status
// @Tags Dashboard
// @Produce json
// @Param query query string false "Search term"
// @Param date query string false "Start date (YYYY-MM-DD)"
// @Param status query string false "Enrollment status"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /dashboard/student [get]
func (h *LessonHandler) StudentDashboard(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	items, pagination, err := h.service.StudentDashboard(c.Request.Context(), actor, lessonQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// TeacherLessons godoc
// @Summary Lessons of a teacher
// @Tags Users
// @Produce json
// @Param id path string true "Teacher user ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /teachers/{id}/lessons [get]
func (h *LessonHandler) TeacherLessons(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	lessons, err := h.service.TeacherLessons(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}
