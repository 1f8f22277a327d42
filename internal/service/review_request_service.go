package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/dto"
	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
)

// JobReviewRequestCreated is enqueued for every review request that was sent.
const JobReviewRequestCreated = "review_request.created"

const defaultReviewRequestMessage = "Please share your feedback about the course!"

type issuerRequestRepository interface {
	CreatePending(ctx context.Context, exec sqlx.ExtContext, request *models.ReviewRequest) (bool, error)
	HasPending(ctx context.Context, tutorID, courseID, studentID string) (bool, error)
	HasReviewedResponse(ctx context.Context, tutorID, courseID, studentID string) (bool, error)
	ListPendingByTutorUser(ctx context.Context, userID string) ([]models.ReviewRequestDetail, error)
	ListByStudent(ctx context.Context, studentID string, status models.ReviewRequestStatus) ([]models.ReviewRequestDetail, error)
}

type tutorLookup interface {
	FindByID(ctx context.Context, id string) (*models.Tutor, error)
}

type courseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ReviewRequestCreatedPayload is carried by JobReviewRequestCreated jobs.
type ReviewRequestCreatedPayload struct {
	RequestID string
}

// ReviewRequestService issues and lists review requests.
type ReviewRequestService struct {
	requests      issuerRequestRepository
	tutors        tutorLookup
	courses       courseLookup
	queue         jobEnqueuer
	notifications bool
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewReviewRequestService constructs the service. A nil queue disables notifications.
func NewReviewRequestService(requests issuerRequestRepository, tutors tutorLookup, courses courseLookup, queue jobEnqueuer, notificationsEnabled bool, metrics *MetricsService, logger *zap.Logger) *ReviewRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewRequestService{
		requests:      requests,
		tutors:        tutors,
		courses:       courses,
		queue:         queue,
		notifications: notificationsEnabled && queue != nil,
		metrics:       metrics,
		logger:        logger,
	}
}

// Issue sends review requests to each distinct student, skipping those with a
// pending request or an answered one. Skips are counted, never raised.
func (s *ReviewRequestService) Issue(ctx context.Context, actor *models.JWTClaims, req dto.IssueReviewRequestsRequest) (*models.IssueResult, error) {
	tutorID := strings.TrimSpace(req.TutorID)
	courseID := strings.TrimSpace(req.CourseID)
	if tutorID == "" {
		return nil, appErrors.MissingField("tutorId", "Tutor ID is required")
	}
	if courseID == "" {
		return nil, appErrors.MissingField("courseId", "Course ID is required")
	}
	studentIDs := dedupeIDs(req.StudentIDs)
	if len(studentIDs) == 0 {
		return nil, appErrors.MissingField("studentIds", "At least one student is required")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	tutor, err := s.tutors.FindByID(ctx, tutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	if tutor.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only send review requests for your own tutor profile")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TutorID != tutor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Course does not belong to this tutor")
	}

	message := req.Message
	if message == nil || strings.TrimSpace(*message) == "" {
		def := defaultReviewRequestMessage
		message = &def
	}

	var stats models.IssueStats
	for _, studentID := range studentIDs {
		reviewed, err := s.requests.HasReviewedResponse(ctx, tutor.ID, course.ID, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check previous reviews")
		}
		if reviewed {
			stats.ReviewedDuplicates++
			continue
		}

		pending, err := s.requests.HasPending(ctx, tutor.ID, course.ID, studentID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending review requests")
		}
		if pending {
			stats.PendingDuplicates++
			continue
		}

		request := &models.ReviewRequest{TutorID: tutor.ID, CourseID: course.ID, StudentID: studentID, Message: message}
		inserted, err := s.requests.CreatePending(ctx, nil, request)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create review request")
		}
		if !inserted {
			// lost a race with a concurrent issue call for the same student
			stats.PendingDuplicates++
			continue
		}
		stats.Sent++
		s.enqueueNotification(request.ID)
	}

	s.metrics.RecordReviewRequests(stats)
	s.logger.Info("review requests issued",
		zap.String("tutor_id", tutor.ID),
		zap.String("course_id", course.ID),
		zap.Int("sent", stats.Sent),
		zap.Int("pending_duplicates", stats.PendingDuplicates),
		zap.Int("reviewed_duplicates", stats.ReviewedDuplicates),
	)
	return &models.IssueResult{Message: issueMessage(stats), Stats: stats}, nil
}

// ListPending returns the caller's outstanding requests.
func (s *ReviewRequestService) ListPending(ctx context.Context, actor *models.JWTClaims) ([]models.ReviewRequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	items, err := s.requests.ListPendingByTutorUser(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending review requests")
	}
	return items, nil
}

// ListMine returns requests addressed to the calling student.
func (s *ReviewRequestService) ListMine(ctx context.Context, actor *models.JWTClaims, status string) ([]models.ReviewRequestDetail, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	filter := models.ReviewRequestStatus(status)
	switch filter {
	case "", models.ReviewRequestStatusPending, models.ReviewRequestStatusResponded:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be pending or responded")
	}
	items, err := s.requests.ListByStudent(ctx, actor.UserID, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list review requests")
	}
	return items, nil
}

func (s *ReviewRequestService) enqueueNotification(requestID string) {
	if !s.notifications {
		return
	}
	job := jobs.Job{
		ID:      requestID,
		Type:    JobReviewRequestCreated,
		Payload: ReviewRequestCreatedPayload{RequestID: requestID},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue review request notification", zap.String("review_request_id", requestID), zap.Error(err))
	}
}

func issueMessage(stats models.IssueStats) string {
	if stats.Sent == 0 {
		return "No new review requests were sent"
	}
	return fmt.Sprintf("Review requests sent to %d student(s)", stats.Sent)
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
