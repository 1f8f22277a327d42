package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// CourseRepository reads courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	const query = `SELECT id, tutor_id, title, full_course_rate, created_at FROM courses WHERE id = $1`
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	return &course, nil
}

// ListSummariesByTutor lists a tutor's courses for profile display.
func (r *CourseRepository) ListSummariesByTutor(ctx context.Context, tutorID string) ([]models.CourseSummary, error) {
	const query = `SELECT id, title, full_course_rate FROM courses WHERE tutor_id = $1 ORDER BY created_at ASC`
	items := []models.CourseSummary{}
	if err := r.db.SelectContext(ctx, &items, query, tutorID); err != nil {
		return nil, fmt.Errorf("list tutor courses: %w", err)
	}
	return items, nil
}
