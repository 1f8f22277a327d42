package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const reviewRequestColumns = "id, tutor_id, course_id, student_id, message, status, created_at, responded_at"

// ReviewRequestRepository persists tutor review solicitations.
type ReviewRequestRepository struct {
	db *sqlx.DB
}

// NewReviewRequestRepository constructs the repository.
func NewReviewRequestRepository(db *sqlx.DB) *ReviewRequestRepository {
	return &ReviewRequestRepository{db: db}
}

func (r *ReviewRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns a review request by id.
func (r *ReviewRequestRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.ReviewRequest, error) {
	var request models.ReviewRequest
	query := "SELECT " + reviewRequestColumns + " FROM review_requests WHERE id = $1"
	if err := sqlx.GetContext(ctx, r.exec(exec), &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review request: %w", err)
	}
	return &request, nil
}

// FindByIDForUpdate locks the request row for the remainder of the transaction.
func (r *ReviewRequestRepository) FindByIDForUpdate(ctx context.Context, tx sqlx.ExtContext, id string) (*models.ReviewRequest, error) {
	var request models.ReviewRequest
	query := "SELECT " + reviewRequestColumns + " FROM review_requests WHERE id = $1 FOR UPDATE"
	if err := sqlx.GetContext(ctx, r.exec(tx), &request, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock review request: %w", err)
	}
	return &request, nil
}

// MarkResponded transitions a pending request to responded. It reports false
// when the request was no longer pending.
func (r *ReviewRequestRepository) MarkResponded(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error) {
	const query = `UPDATE review_requests SET status = 'responded', responded_at = $2 WHERE id = $1 AND status = 'pending'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("mark review request responded: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark review request responded rows: %w", err)
	}
	return affected == 1, nil
}

// CreatePending inserts a pending request. It reports false when another
// pending request for the same tutor, course and student already exists.
func (r *ReviewRequestRepository) CreatePending(ctx context.Context, exec sqlx.ExtContext, request *models.ReviewRequest) (bool, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = time.Now().UTC()
	}
	request.Status = models.ReviewRequestStatusPending

	const query = `INSERT INTO review_requests (id, tutor_id, course_id, student_id, message, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (tutor_id, course_id, student_id) WHERE status = 'pending' DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query,
		request.ID, request.TutorID, request.CourseID, request.StudentID, request.Message, request.Status, request.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert review request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert review request rows: %w", err)
	}
	return affected == 1, nil
}

// HasPending reports whether a pending request exists for the triple.
func (r *ReviewRequestRepository) HasPending(ctx context.Context, tutorID, courseID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM review_requests WHERE tutor_id = $1 AND course_id = $2 AND student_id = $3 AND status = 'pending')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tutorID, courseID, studentID); err != nil {
		return false, fmt.Errorf("check pending review request: %w", err)
	}
	return exists, nil
}

// HasReviewedResponse reports whether the student already answered a request
// for the tutor and course with a review, whatever its moderation status.
func (r *ReviewRequestRepository) HasReviewedResponse(ctx context.Context, tutorID, courseID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM review_requests rr
JOIN reviews rv ON rv.reviewer_id = rr.student_id AND rv.tutor_id = rr.tutor_id AND rv.course_id = rr.course_id
WHERE rr.tutor_id = $1 AND rr.course_id = $2 AND rr.student_id = $3 AND rr.status = 'responded')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, tutorID, courseID, studentID); err != nil {
		return false, fmt.Errorf("check reviewed review request: %w", err)
	}
	return exists, nil
}

const reviewRequestDetailSelect = `SELECT rr.id, rr.tutor_id, rr.course_id, rr.student_id, rr.message, rr.status, rr.created_at, rr.responded_at,
c.title AS course_title, su.full_name AS student_name, tu.full_name AS tutor_name
FROM review_requests rr
JOIN courses c ON c.id = rr.course_id
JOIN users su ON su.id = rr.student_id
JOIN tutors t ON t.id = rr.tutor_id
JOIN users tu ON tu.id = t.user_id`

// FindDetail returns a request with display names, used by notifications.
func (r *ReviewRequestRepository) FindDetail(ctx context.Context, id string) (*models.ReviewRequestDetail, error) {
	var detail models.ReviewRequestDetail
	if err := r.db.GetContext(ctx, &detail, reviewRequestDetailSelect+" WHERE rr.id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review request detail: %w", err)
	}
	return &detail, nil
}

// ListPendingByTutorUser lists pending requests issued by the tutor owned by userID.
func (r *ReviewRequestRepository) ListPendingByTutorUser(ctx context.Context, userID string) ([]models.ReviewRequestDetail, error) {
	query := reviewRequestDetailSelect + " WHERE t.user_id = $1 AND rr.status = 'pending' ORDER BY rr.created_at DESC"
	var items []models.ReviewRequestDetail
	if err := r.db.SelectContext(ctx, &items, query, userID); err != nil {
		return nil, fmt.Errorf("list pending review requests: %w", err)
	}
	return items, nil
}

// ListByStudent lists requests addressed to a student, newest first.
func (r *ReviewRequestRepository) ListByStudent(ctx context.Context, studentID string, status models.ReviewRequestStatus) ([]models.ReviewRequestDetail, error) {
	query := reviewRequestDetailSelect + " WHERE rr.student_id = $1"
	args := []interface{}{studentID}
	if status != "" {
		query += " AND rr.status = $2"
		args = append(args, status)
	}
	query += " ORDER BY rr.created_at DESC"

	var items []models.ReviewRequestDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list student review requests: %w", err)
	}
	return items, nil
}
