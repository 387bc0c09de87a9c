package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type enrollmentService interface {
	Request(ctx context.Context, actor policy.Subject, lessonID string) (*models.EnrollmentResult, error)
	Decide(ctx context.Context, actor policy.Subject, enrollmentID, action string, meta models.RequestMeta) (*models.Enrollment, error)
	ListForLesson(ctx context.Context, actor policy.Subject, lessonID, status string) ([]models.EnrollmentDetail, error)
}

// EnrollmentHandler manages join requests and teacher decisions.
type EnrollmentHandler struct {
	service enrollmentService
}

// NewEnrollmentHandler constructs the handler.
func NewEnrollmentHandler(svc enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{service: svc}
}

// Request godoc
// @Summary Request to join a lesson
// @Description Students only. Repeating the request is not an error and returns created=false.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Lesson ID"
// @Success 200 {object} response.Envelope "already requested"
// @Success 201 {object} response.Envelope "request created"
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/enrollments [post]
func (h *EnrollmentHandler) Request(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Request(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.Message(c, status, result, result.Message)
}

// Decide godoc
// @Summary Approve or reject an enrollment
// @Description Only the teacher owning the lesson may decide.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param action path string true "approve or reject"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope "lesson is full"
// @Security BearerAuth
// @Router /enrollments/{id}/{action} [post]
func (h *EnrollmentHandler) Decide(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	enrollment, err := h.service.Decide(c.Request.Context(), actor, c.Param("id"), c.Param("action"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}

// ListForLesson godoc
// @Summary Enrollments of a lesson
// @Tags Enrollments
// @Produce json
// @Param id path string true "Lesson ID"
// @Param status query string false "requested, approved or rejected"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /lessons/{id}/enrollments [get]
func (h *EnrollmentHandler) ListForLesson(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	items, err := h.service.ListForLesson(c.Request.Context(), actor, c.Param("id"), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
