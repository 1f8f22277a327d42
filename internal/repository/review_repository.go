package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// ReviewBookingConstraint names the unique constraint on reviews.booking_id.
const ReviewBookingConstraint = "reviews_booking_id_key"

const reviewColumns = "id, booking_id, reviewer_id, tutor_id, course_id, rating, comment, status, created_at, approved_at"

// ReviewRepository persists course reviews.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a review. A second review for the same booking fails with a
// unique violation on ReviewBookingConstraint.
func (r *ReviewRepository) Create(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	if review.CreatedAt.IsZero() {
		review.CreatedAt = time.Now().UTC()
	}
	if review.Status == "" {
		review.Status = models.ReviewStatusPending
	}

	const query = `INSERT INTO reviews (id, booking_id, reviewer_id, tutor_id, course_id, rating, comment, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		review.ID, review.BookingID, review.ReviewerID, review.TutorID, review.CourseID,
		review.Rating, review.Comment, review.Status, review.CreatedAt); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// FindByID returns a review by id.
func (r *ReviewRepository) FindByID(ctx context.Context, id string) (*models.Review, error) {
	var review models.Review
	if err := r.db.GetContext(ctx, &review, "SELECT "+reviewColumns+" FROM reviews WHERE id = $1", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find review: %w", err)
	}
	return &review, nil
}

// UpdateStatus moves a pending review to its final status. It reports false
// when the review was already decided.
func (r *ReviewRepository) UpdateStatus(ctx context.Context, id string, status models.ReviewStatus, approvedAt *time.Time) (bool, error) {
	const query = `UPDATE reviews SET status = $2, approved_at = $3 WHERE id = $1 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, id, status, approvedAt)
	if err != nil {
		return false, fmt.Errorf("update review status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update review status rows: %w", err)
	}
	return affected == 1, nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM reviews WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete review rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns reviews joined with reviewer and course names, newest first.
func (r *ReviewRepository) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(clause string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.TutorID != "" {
		add("rv.tutor_id = $%d", filter.TutorID)
	}
	if filter.CourseID != "" {
		add("rv.course_id = $%d", filter.CourseID)
	}
	if filter.ReviewerID != "" {
		add("rv.reviewer_id = $%d", filter.ReviewerID)
	}
	if filter.Status != "" {
		add("rv.status = $%d", filter.Status)
	}

	query := `SELECT rv.id, rv.booking_id, rv.reviewer_id, rv.tutor_id, rv.course_id, rv.rating, rv.comment, rv.status, rv.created_at, rv.approved_at,
u.full_name AS reviewer_name, c.title AS course_title
FROM reviews rv
JOIN users u ON u.id = rv.reviewer_id
JOIN courses c ON c.id = rv.course_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rv.created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	var items []models.ReviewDetail
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return items, nil
}
