package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/policy"
	"github.com/noah-isme/tutorhub-api/internal/service"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type skillService interface {
	List(ctx context.Context) ([]models.Skill, error)
	Create(ctx context.Context, actor policy.Subject, req service.SkillRequest) (*models.Skill, error)
	Update(ctx context.Context, actor policy.Subject, id string, req service.SkillRequest) (*models.Skill, error)
}

// SkillHandler exposes the skill catalogue.
type SkillHandler struct {
	service skillService
}

// NewSkillHandler constructs the handler.
func NewSkillHandler(svc skillService) *SkillHandler {
	return &SkillHandler{service: svc}
}

// List godoc
// @Summary List skills
// @Tags Skills
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /skills [get]
func (h *SkillHandler) List(c *gin.Context) {
	skills, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, skills, nil)
}

// Create godoc
// @Summary Create skill
// @Tags Skills
// @Accept json
// @Produce json
// @Param payload body service.SkillRequest true "Skill"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /skills [post]
func (h *SkillHandler) Create(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	var req service.SkillRequest
	if !bindJSON(c, &req) {
		return
	}
	skill, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, skill)
}

// Update godoc
// @Summary Rename skill
// @Tags Skills
// @Accept json
// @Produce json
// @Param id path string true "Skill ID"
// @Param payload body service.SkillRequest true "Skill"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /skills/{id} [put]
func (h *SkillHandler) Update(c *gin.Context) {
	actor, ok := subjectFromContext(c)
	if !ok {
		return
	}
	var req service.SkillRequest
	if !bindJSON(c, &req) {
		return
	}
	skill, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, skill, nil)
}
