package models

import "time"

// DefaultHourlyRate is shown for tutors that never set a rate.
const DefaultHourlyRate = 25.0

// Tutor is the teaching profile attached to a user.
type Tutor struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Bio        *string   `db:"bio" json:"bio,omitempty"`
	HourlyRate *float64  `db:"hourly_rate" json:"hourly_rate,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TutorDetail joins the tutor with its user record.
type TutorDetail struct {
	Tutor
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// TutorStats aggregates review and booking figures for a tutor.
type TutorStats struct {
	AverageRating float64 `db:"average_rating" json:"average_rating"`
	TotalReviews  int     `db:"total_reviews" json:"total_reviews"`
	StudentsCount int     `db:"students_count" json:"students_count"`
}

// TutorProfile is the public tutor page payload.
type TutorProfile struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Bio           string          `json:"bio"`
	HourlyRate    float64         `json:"hourlyRate"`
	Rating        float64         `json:"rating"`
	TotalReviews  int             `json:"totalReviews"`
	StudentsCount int             `json:"studentsCount"`
	Courses       []CourseSummary `json:"courses"`
}
