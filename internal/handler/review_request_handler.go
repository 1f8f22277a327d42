package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/response"
)

type reviewRequestIssuer interface {
	Issue(ctx context.Context, actor *models.JWTClaims, req dto.IssueReviewRequestsRequest) (*models.IssueResult, error)
	ListPending(ctx context.Context, actor *models.JWTClaims) ([]models.ReviewRequestDetail, error)
	ListMine(ctx context.Context, actor *models.JWTClaims, status string) ([]models.ReviewRequestDetail, error)
}

type reviewSubmitter interface {
	Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitReviewRequest) (*models.Review, error)
}

// ReviewRequestHandler exposes review request endpoints.
type ReviewRequestHandler struct {
	issuer    reviewRequestIssuer
	submitter reviewSubmitter
}

// NewReviewRequestHandler builds a new handler.
func NewReviewRequestHandler(issuer reviewRequestIssuer, submitter reviewSubmitter) *ReviewRequestHandler {
	return &ReviewRequestHandler{issuer: issuer, submitter: submitter}
}

// Issue godoc
// @Summary Send review requests to students
// @Tags ReviewRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.IssueReviewRequestsRequest true "Review request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /review-requests [post]
func (h *ReviewRequestHandler) Issue(c *gin.Context) {
	var req dto.IssueReviewRequestsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid JSON payload"))
		return
	}
	result, err := h.issuer.Issue(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ListPending godoc
// @Summary List the caller's pending review requests
// @Tags ReviewRequests
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /review-requests/pending [get]
func (h *ReviewRequestHandler) ListPending(c *gin.Context) {
	items, err := h.issuer.ListPending(c.Request.Context(), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// ListMine godoc
// @Summary List review requests addressed to the caller
// @Tags ReviewRequests
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending or responded"
// @Success 200 {object} response.Envelope
// @Router /review-requests/mine [get]
func (h *ReviewRequestHandler) ListMine(c *gin.Context) {
	items, err := h.issuer.ListMine(c.Request.Context(), claimsFromContext(c), c.Query("status"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, map[string]interface{}{"total": len(items)})
}

// Submit godoc
// @Summary Answer a review request with a rating
// @Tags ReviewRequests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SubmitReviewRequest true "Review payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /review-requests/submit [post]
func (h *ReviewRequestHandler) Submit(c *gin.Context) {
	var req dto.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid JSON payload"))
		return
	}
	review, err := h.submitter.Submit(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusCreated, "Review submitted successfully!", review)
}
