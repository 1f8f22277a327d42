package service

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	"github.com/noah-isme/tutorhub-api/pkg/database"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type submissionRequestRepository interface {
	FindByIDForUpdate(ctx context.Context, tx sqlx.ExtContext, id string) (*models.ReviewRequest, error)
	MarkResponded(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error)
}

type submissionReviewRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error
}

type submissionBookingRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
}

type eligibilityChecker interface {
	Evaluate(ctx context.Context, exec sqlx.ExtContext, studentID, tutorID, courseID string) (*Eligibility, error)
}

// errDuplicateReview marks a unique violation on reviews.booking_id inside the submission transaction.
var errDuplicateReview = errors.New("review already exists for booking")

// ReviewSubmissionService turns a pending review request into a review.
type ReviewSubmissionService struct {
	tx          txProvider
	requests    submissionRequestRepository
	reviews     submissionReviewRepository
	bookings    submissionBookingRepository
	eligibility eligibilityChecker
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	now         func() time.Time
}

// NewReviewSubmissionService constructs the submission service.
func NewReviewSubmissionService(
	tx txProvider,
	requests submissionRequestRepository,
	reviews submissionReviewRepository,
	bookings submissionBookingRepository,
	eligibility eligibilityChecker,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
) *ReviewSubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewSubmissionService{
		tx:          tx,
		requests:    requests,
		reviews:     reviews,
		bookings:    bookings,
		eligibility: eligibility,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// Submit validates the answer, checks eligibility and persists the review
// while consuming the request. Exactly one concurrent submission for a
// request can succeed.
func (s *ReviewSubmissionService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitReviewRequest) (*models.Review, error) {
	requestID := strings.TrimSpace(req.ReviewRequestID)
	if requestID == "" {
		s.metrics.RecordReviewSubmission(SubmissionOutcomeInvalid)
		return nil, appErrors.MissingField("reviewRequestId", "Review request ID is required")
	}
	rating, ratingErr := parseRating(req.Rating)
	if ratingErr != nil {
		s.metrics.RecordReviewSubmission(SubmissionOutcomeInvalid)
		return nil, ratingErr
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	review, synthesized, err := s.submitTx(ctx, actor, requestID, rating, req.Comment)
	switch {
	case errors.Is(err, errDuplicateReview):
		s.markRespondedAfterConflict(ctx, requestID)
		s.metrics.RecordReviewSubmission(SubmissionOutcomeConflict)
		return nil, appErrors.Clone(appErrors.ErrReviewConflict, "")
	case err != nil:
		s.metrics.RecordReviewSubmission(submissionOutcome(err))
		return nil, err
	}

	if synthesized {
		// completed bookings feed the profile's studentsCount
		s.cache.Invalidate(ctx, cache.TutorProfileKey(review.TutorID))
	}
	s.metrics.RecordReviewSubmission(SubmissionOutcomeCreated)
	s.logger.Info("review submitted",
		zap.String("review_id", review.ID),
		zap.String("review_request_id", requestID),
		zap.String("booking_id", review.BookingID),
		zap.Bool("booking_synthesized", synthesized),
	)
	return review, nil
}

func (s *ReviewSubmissionService) submitTx(ctx context.Context, actor *models.JWTClaims, requestID string, rating int, comment *string) (review *models.Review, synthesized bool, err error) {
	if s.tx == nil {
		return nil, false, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	request, err := s.requests.FindByIDForUpdate(ctx, tx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "Review request not found")
			return nil, false, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review request")
		return nil, false, err
	}
	if request.Status != models.ReviewRequestStatusPending {
		err = appErrors.WithDetails(appErrors.ErrAlreadyResponded, fmt.Sprintf("Current status: %s", request.Status))
		return nil, false, err
	}
	if request.StudentID != actor.UserID {
		err = appErrors.Clone(appErrors.ErrForbidden, "This review request is addressed to another student")
		return nil, false, err
	}

	eligibility, err := s.eligibility.Evaluate(ctx, tx, request.StudentID, request.TutorID, request.CourseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate review eligibility")
		return nil, false, err
	}
	if !eligibility.Eligible {
		err = appErrors.Clone(appErrors.ErrForbidden, eligibility.Message())
		return nil, false, err
	}

	now := s.now().UTC()
	booking := eligibility.Booking
	if booking == nil {
		booking = &models.Booking{
			LearnerID:   request.StudentID,
			TutorID:     request.TutorID,
			CourseID:    request.CourseID,
			SessionDate: now,
			DurationMin: models.SynthesizedBookingDuration,
			Status:      models.BookingStatusCompleted,
			CreatedAt:   now,
		}
		if err = s.bookings.Create(ctx, tx, booking); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
			return nil, false, err
		}
		synthesized = true
	}

	review = &models.Review{
		BookingID:  booking.ID,
		ReviewerID: request.StudentID,
		TutorID:    request.TutorID,
		CourseID:   request.CourseID,
		Rating:     rating,
		Comment:    normalizeComment(comment),
		Status:     models.ReviewStatusPending,
		CreatedAt:  now,
	}
	if err = s.reviews.Create(ctx, tx, review); err != nil {
		if database.IsUniqueViolation(err, repository.ReviewBookingConstraint) {
			err = errDuplicateReview
			return nil, false, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review")
		return nil, false, err
	}

	transitioned, err := s.requests.MarkResponded(ctx, tx, request.ID, now)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update review request")
		return nil, false, err
	}
	if !transitioned {
		err = appErrors.WithDetails(appErrors.ErrAlreadyResponded, fmt.Sprintf("Current status: %s", models.ReviewRequestStatusResponded))
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit review")
		return nil, false, err
	}
	return review, synthesized, nil
}

// markRespondedAfterConflict closes a request whose review already exists.
// It runs outside the aborted transaction and never changes the caller's outcome.
func (s *ReviewSubmissionService) markRespondedAfterConflict(ctx context.Context, requestID string) {
	if _, err := s.requests.MarkResponded(ctx, nil, requestID, s.now().UTC()); err != nil {
		s.logger.Error("failed to mark review request responded after duplicate review",
			zap.String("review_request_id", requestID), zap.Error(err))
	}
}

// parseRating accepts only JSON integers within the rating bounds.
func parseRating(raw json.RawMessage) (int, *appErrors.Error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, appErrors.MissingField("rating", "Rating is required")
	}
	invalid := appErrors.WithDetails(appErrors.ErrInvalidRating, fmt.Sprintf("Received: %s", trimmed))

	var value float64
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return 0, invalid
	}
	if value != math.Trunc(value) || value < models.MinRating || value > models.MaxRating {
		return 0, invalid
	}
	return int(value), nil
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comment)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func submissionOutcome(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrAlreadyResponded):
		return SubmissionOutcomeResponded
	case errors.Is(err, appErrors.ErrForbidden):
		return SubmissionOutcomeIneligible
	case errors.Is(err, appErrors.ErrNotFound):
		return SubmissionOutcomeInvalid
	default:
		return SubmissionOutcomeError
	}
}
