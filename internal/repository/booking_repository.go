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

// BookingRepository reads and writes tutoring sessions.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs the repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindLatest returns the booking with the greatest session date for the triple.
func (r *BookingRepository) FindLatest(ctx context.Context, exec sqlx.ExtContext, learnerID, tutorID, courseID string) (*models.Booking, error) {
	const query = `SELECT id, learner_id, tutor_id, course_id, session_date, duration_min, status, created_at
FROM bookings WHERE learner_id = $1 AND tutor_id = $2 AND course_id = $3
ORDER BY session_date DESC LIMIT 1`
	var booking models.Booking
	if err := sqlx.GetContext(ctx, r.exec(exec), &booking, query, learnerID, tutorID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find latest booking: %w", err)
	}
	return &booking, nil
}

// Create inserts a booking.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO bookings (id, learner_id, tutor_id, course_id, session_date, duration_min, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.exec(exec).ExecContext(ctx, query,
		booking.ID, booking.LearnerID, booking.TutorID, booking.CourseID,
		booking.SessionDate, booking.DurationMin, booking.Status, booking.CreatedAt); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}
