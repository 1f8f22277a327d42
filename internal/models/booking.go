package models

import "time"

// BookingStatus represents the lifecycle of a tutoring session.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// SynthesizedBookingDuration is the length given to bookings created only to anchor a review.
const SynthesizedBookingDuration = 60

// Booking is a scheduled session between a learner and a tutor for a course.
type Booking struct {
	ID          string        `db:"id" json:"id"`
	LearnerID   string        `db:"learner_id" json:"learnerId"`
	TutorID     string        `db:"tutor_id" json:"tutorId"`
	CourseID    string        `db:"course_id" json:"courseId"`
	SessionDate time.Time     `db:"session_date" json:"sessionDate"`
	DurationMin int           `db:"duration_min" json:"durationMin"`
	Status      BookingStatus `db:"status" json:"status"`
	CreatedAt   time.Time     `db:"created_at" json:"createdAt"`
}
