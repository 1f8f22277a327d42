package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/export"
)

const exportTimeLayout = "2006-01-02 15:04"

type reviewRepository interface {
	FindByID(ctx context.Context, id string) (*models.Review, error)
	UpdateStatus(ctx context.Context, id string, status models.ReviewStatus, approvedAt *time.Time) (bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, error)
}

type tutorOwnerLookup interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
	FindByUserID(ctx context.Context, userID string) (*models.Tutor, error)
}

// ReviewService moderates, lists and exports reviews.
type ReviewService struct {
	reviews       reviewRepository
	tutors        tutorOwnerLookup
	cache         *CacheService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	exportMaxRows int
	now           func() time.Time
}

// NewReviewService constructs the service.
func NewReviewService(reviews reviewRepository, tutors tutorOwnerLookup, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, exportMaxRows int) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if exportMaxRows <= 0 {
		exportMaxRows = 5000
	}
	return &ReviewService{
		reviews:       reviews,
		tutors:        tutors,
		cache:         cache,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		exportMaxRows: exportMaxRows,
		now:           time.Now,
	}
}

// Decide accepts or rejects a pending review of the caller's tutor profile.
// Both outcomes are final.
func (s *ReviewService) Decide(ctx context.Context, actor *models.JWTClaims, reviewID string, req dto.DecideReviewRequest) (*models.Review, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be accepted or rejected")
	}
	review, err := s.ownedReview(ctx, actor, reviewID)
	if err != nil {
		return nil, err
	}
	if review.Status != models.ReviewStatusPending {
		return nil, appErrors.WithDetails(appErrors.ErrReviewFinalized, fmt.Sprintf("Current status: %s", review.Status))
	}

	status := models.ReviewStatus(req.Status)
	var approvedAt *time.Time
	if status == models.ReviewStatusAccepted {
		now := s.now().UTC()
		approvedAt = &now
	}
	updated, err := s.reviews.UpdateStatus(ctx, review.ID, status, approvedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrReviewFinalized, "")
	}

	review.Status = status
	review.ApprovedAt = approvedAt
	s.cache.Invalidate(ctx, cache.TutorProfileKey(review.TutorID))
	s.metrics.RecordReviewDecision(status)
	s.logger.Info("review decided", zap.String("review_id", review.ID), zap.String("status", string(status)))
	return review, nil
}

// Delete removes a review of the caller's tutor profile.
func (s *ReviewService) Delete(ctx context.Context, actor *models.JWTClaims, reviewID string) error {
	review, err := s.ownedReview(ctx, actor, reviewID)
	if err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, review.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Review not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete review")
	}
	s.cache.Invalidate(ctx, cache.TutorProfileKey(review.TutorID))
	return nil
}

// List applies visibility rules: a student sees all of their own reviews, a
// tutor sees all reviews of their profile and everyone else sees accepted ones.
func (s *ReviewService) List(ctx context.Context, actor *models.JWTClaims, query dto.ReviewListQuery) ([]models.ReviewDetail, error) {
	filter := models.ReviewFilter{
		CourseID:   query.CourseID,
		TutorID:    query.TutorID,
		ReviewerID: query.StudentID,
		Status:     models.ReviewStatusAccepted,
	}

	switch {
	case actor != nil && query.StudentID != "" && query.StudentID == actor.UserID:
		filter.Status = ""
	case actor != nil && query.TutorID != "":
		tutor, err := s.tutors.FindByID(ctx, query.TutorID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
		}
		if tutor != nil && tutor.UserID == actor.UserID {
			filter.Status = ""
		}
	}

	items, err := s.reviews.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reviews")
	}
	if items == nil {
		items = []models.ReviewDetail{}
	}
	return items, nil
}

// Export renders every review of the caller's tutor profile.
func (s *ReviewService) Export(ctx context.Context, actor *models.JWTClaims, query dto.ExportReviewsQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}
	format := export.FormatCSV
	if query.Format != "" {
		format = export.Format(query.Format)
	}

	tutor, err := s.callerTutor(ctx, actor)
	if err != nil {
		return nil, err
	}
	items, err := s.reviews.List(ctx, models.ReviewFilter{TutorID: tutor.ID, Limit: s.exportMaxRows})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reviews")
	}

	dataset := export.Dataset{
		Title:   "Reviews",
		Headers: []string{"review_id", "course", "reviewer", "rating", "status", "comment", "created_at"},
		Rows:    make([]map[string]string, 0, len(items)),
	}
	for _, item := range items {
		comment := ""
		if item.Comment != nil {
			comment = *item.Comment
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"review_id":  item.ID,
			"course":     item.CourseTitle,
			"reviewer":   item.ReviewerName,
			"rating":     strconv.Itoa(item.Rating),
			"status":     string(item.Status),
			"comment":    comment,
			"created_at": item.CreatedAt.UTC().Format(exportTimeLayout),
		})
	}

	data, err := export.Render(format, dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportFile{
		Filename:    fmt.Sprintf("reviews-%s.%s", s.now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

func (s *ReviewService) ownedReview(ctx context.Context, actor *models.JWTClaims, reviewID string) (*models.Review, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	review, err := s.reviews.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Review not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	tutor, err := s.tutors.FindByID(ctx, review.TutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	if tutor.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only manage reviews of your own courses")
	}
	return review, nil
}

func (s *ReviewService) callerTutor(ctx context.Context, actor *models.JWTClaims) (*models.Tutor, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	tutor, err := s.tutors.FindByUserID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tutor profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	return tutor, nil
}
