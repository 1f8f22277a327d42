package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type reviewService interface {
	List(ctx context.Context, actor *models.JWTClaims, query dto.ReviewListQuery) ([]models.ReviewDetail, error)
	Decide(ctx context.Context, actor *models.JWTClaims, reviewID string, req dto.DecideReviewRequest) (*models.Review, error)
	Delete(ctx context.Context, actor *models.JWTClaims, reviewID string) error
	Export(ctx context.Context, actor *models.JWTClaims, query dto.ExportReviewsQuery) (*dto.ExportFile, error)
}

// ReviewHandler exposes review listing and moderation endpoints.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler builds a new handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// List godoc
// @Summary List reviews
// @Description Anonymous callers see accepted reviews. Students see all of their own, tutors all of theirs.
// @Tags Reviews
// @Produce json
// @Param courseId query string false "Course ID"
// @Param tutorId query string false "Tutor ID"
// @Param studentId query string false "Reviewer ID"
// @Success 200 {object} response.Envelope
// @Router /reviews [get]
func (h *ReviewHandler) List(c *gin.Context) {
	var query dto.ReviewListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	items, err := h.service.List(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Decide godoc
// @Summary Accept or reject a pending review
// @Tags Reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Param payload body dto.DecideReviewRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /reviews/{id}/status [patch]
func (h *ReviewHandler) Decide(c *gin.Context) {
	var req dto.DecideReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid JSON payload"))
		return
	}
	review, err := h.service.Decide(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, fmt.Sprintf("Review %s", review.Status), review)
}

// Delete godoc
// @Summary Delete a review
// @Tags Reviews
// @Security BearerAuth
// @Param id path string true "Review ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Router /reviews/{id} [delete]
func (h *ReviewHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), claimsFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export the caller's reviews
// @Tags Reviews
// @Produce text/csv,application/pdf
// @Security BearerAuth
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /reviews/export [get]
func (h *ReviewHandler) Export(c *gin.Context) {
	var query dto.ExportReviewsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), claimsFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
