package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/mailer"
)

type notificationRequestRepository interface {
	FindDetail(ctx context.Context, id string) (*models.ReviewRequestDetail, error)
}

type notificationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// NotificationService emails students about new review requests.
type NotificationService struct {
	requests notificationRequestRepository
	users    notificationUserRepository
	mailer   mailer.Mailer
	baseURL  string
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(requests notificationRequestRepository, users notificationUserRepository, m mailer.Mailer, baseURL string, metrics *MetricsService, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		requests: requests,
		users:    users,
		mailer:   m,
		baseURL:  strings.TrimRight(baseURL, "/"),
		metrics:  metrics,
		logger:   logger,
	}
}

// Register binds the service's handlers on the dispatcher.
func (s *NotificationService) Register(d *jobs.Dispatcher) {
	d.Register(JobReviewRequestCreated, s.HandleReviewRequestCreated)
}

// HandleReviewRequestCreated sends the review invitation email. Returned
// errors are retried by the queue.
func (s *NotificationService) HandleReviewRequestCreated(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(ReviewRequestCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}

	request, err := s.requests.FindDetail(ctx, payload.RequestID)
	if err != nil {
		return fmt.Errorf("load review request %s: %w", payload.RequestID, err)
	}
	if request.Status != models.ReviewRequestStatusPending {
		s.logger.Debug("skip notification for answered request", zap.String("review_request_id", request.ID))
		return nil
	}
	student, err := s.users.FindByID(ctx, request.StudentID)
	if err != nil {
		return fmt.Errorf("load student %s: %w", request.StudentID, err)
	}

	msg := mailer.Message{
		To:      student.Email,
		ToName:  student.FullName,
		Subject: fmt.Sprintf("%s would love your feedback on %s", request.TutorName, request.CourseTitle),
		HTML:    s.renderInvitation(request),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.metrics.RecordNotification(false)
		return fmt.Errorf("send review request email: %w", err)
	}
	s.metrics.RecordNotification(true)
	s.logger.Info("review request notification sent", zap.String("review_request_id", request.ID), zap.String("student_id", student.ID))
	return nil
}

// ReviewLink is the learner dashboard URL answering a request.
func (s *NotificationService) ReviewLink(requestID string) string {
	return fmt.Sprintf("%s/dashboard/learner/reviews?request=%s", s.baseURL, requestID)
}

func (s *NotificationService) renderInvitation(request *models.ReviewRequestDetail) string {
	message := ""
	if request.Message != nil {
		message = *request.Message
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Hi %s,</p>", html.EscapeString(request.StudentName))
	fmt.Fprintf(&b, "<p>%s asked you to review <strong>%s</strong>.</p>", html.EscapeString(request.TutorName), html.EscapeString(request.CourseTitle))
	if message != "" {
		fmt.Fprintf(&b, "<blockquote>%s</blockquote>", html.EscapeString(message))
	}
	fmt.Fprintf(&b, `<p><a href="%s">Leave your review</a></p>`, html.EscapeString(s.ReviewLink(request.ID)))
	return b.String()
}
