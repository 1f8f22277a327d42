package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// TutorRepository reads tutor profiles and their aggregates.
type TutorRepository struct {
	db *sqlx.DB
}

// NewTutorRepository constructs the repository.
func NewTutorRepository(db *sqlx.DB) *TutorRepository {
	return &TutorRepository{db: db}
}

// FindByID returns a tutor by id.
func (r *TutorRepository) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	var tutor models.Tutor
	const query = `SELECT id, user_id, bio, hourly_rate, created_at FROM tutors WHERE id = $1`
	if err := r.db.GetContext(ctx, &tutor, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tutor: %w", err)
	}
	return &tutor, nil
}

// FindByUserID returns the tutor profile owned by a user.
func (r *TutorRepository) FindByUserID(ctx context.Context, userID string) (*models.Tutor, error) {
	var tutor models.Tutor
	const query = `SELECT id, user_id, bio, hourly_rate, created_at FROM tutors WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &tutor, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tutor by user: %w", err)
	}
	return &tutor, nil
}

// FindDetail returns the tutor joined with its user.
func (r *TutorRepository) FindDetail(ctx context.Context, id string) (*models.TutorDetail, error) {
	var detail models.TutorDetail
	const query = `SELECT t.id, t.user_id, t.bio, t.hourly_rate, t.created_at, u.full_name AS name, u.email
FROM tutors t JOIN users u ON u.id = t.user_id WHERE t.id = $1`
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find tutor detail: %w", err)
	}
	return &detail, nil
}

// Stats aggregates accepted reviews and distinct learners of completed bookings.
func (r *TutorRepository) Stats(ctx context.Context, tutorID string) (*models.TutorStats, error) {
	const query = `SELECT
COALESCE((SELECT AVG(rating)::float8 FROM reviews WHERE tutor_id = $1 AND status = 'accepted'), 0) AS average_rating,
(SELECT COUNT(*) FROM reviews WHERE tutor_id = $1 AND status = 'accepted') AS total_reviews,
(SELECT COUNT(DISTINCT learner_id) FROM bookings WHERE tutor_id = $1 AND status = 'completed') AS students_count`
	var stats models.TutorStats
	if err := r.db.GetContext(ctx, &stats, query, tutorID); err != nil {
		return nil, fmt.Errorf("aggregate tutor stats: %w", err)
	}
	return &stats, nil
}
