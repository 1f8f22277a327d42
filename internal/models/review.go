package models

import "time"

// ReviewStatus represents the moderation state of a review.
type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusAccepted ReviewStatus = "accepted"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a student's rating of a course, anchored to a booking.
type Review struct {
	ID         string       `db:"id" json:"id"`
	BookingID  string       `db:"booking_id" json:"bookingId"`
	ReviewerID string       `db:"reviewer_id" json:"reviewerId"`
	TutorID    string       `db:"tutor_id" json:"tutorId"`
	CourseID   string       `db:"course_id" json:"courseId"`
	Rating     int          `db:"rating" json:"rating"`
	Comment    *string      `db:"comment" json:"comment,omitempty"`
	Status     ReviewStatus `db:"status" json:"status"`
	CreatedAt  time.Time    `db:"created_at" json:"createdAt"`
	ApprovedAt *time.Time   `db:"approved_at" json:"approvedAt,omitempty"`
}

// ReviewDetail enriches a review with reviewer and course names.
type ReviewDetail struct {
	Review
	ReviewerName string `db:"reviewer_name" json:"reviewerName"`
	CourseTitle  string `db:"course_title" json:"courseTitle"`
}

// ReviewFilter scopes review listings.
type ReviewFilter struct {
	TutorID    string
	CourseID   string
	ReviewerID string
	Status     ReviewStatus
	Limit      int
}
