package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type tutorProfileService interface {
	Profile(ctx context.Context, tutorID string) (*models.TutorProfile, error)
}

// TutorHandler serves public tutor pages.
type TutorHandler struct {
	service tutorProfileService
}

// NewTutorHandler builds a new handler.
func NewTutorHandler(service tutorProfileService) *TutorHandler {
	return &TutorHandler{service: service}
}

// Profile godoc
// @Summary Get a tutor profile with review aggregates
// @Tags Tutors
// @Produce json
// @Param id path string true "Tutor ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /tutors/{id} [get]
func (h *TutorHandler) Profile(c *gin.Context) {
	profile, err := h.service.Profile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile)
}
