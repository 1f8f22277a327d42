package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// EligibilityReason explains why a student may not review a course.
type EligibilityReason string

const (
	ReasonSessionNotAttended  EligibilityReason = "SESSION_NOT_ATTENDED"
	ReasonNotEnrolledOrBooked EligibilityReason = "NOT_ENROLLED_OR_BOOKED"
)

const sessionDateLayout = "Jan 2, 2006"

// Eligibility is the outcome of an eligibility check.
type Eligibility struct {
	Eligible    bool
	Reason      EligibilityReason
	SessionDate *time.Time
	// Booking is the student's latest booking, nil when only an enrollment exists.
	Booking *models.Booking
}

// Message renders the user-facing explanation of an ineligible outcome.
func (e Eligibility) Message() string {
	switch e.Reason {
	case ReasonSessionNotAttended:
		date := ""
		if e.SessionDate != nil {
			date = e.SessionDate.Format(sessionDateLayout)
		}
		return fmt.Sprintf("You cannot submit a review before attending the session. Please wait until after your scheduled session on %s.", date)
	case ReasonNotEnrolledOrBooked:
		return "You must be enrolled in this course or have booked a session to leave a review."
	default:
		return ""
	}
}

type eligibilityBookingRepository interface {
	FindLatest(ctx context.Context, exec sqlx.ExtContext, learnerID, tutorID, courseID string) (*models.Booking, error)
}

type eligibilityEnrollmentRepository interface {
	FindByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error)
}

// EligibilityEvaluator decides whether a student may review a tutor's course.
type EligibilityEvaluator struct {
	bookings    eligibilityBookingRepository
	enrollments eligibilityEnrollmentRepository
	now         func() time.Time
}

// NewEligibilityEvaluator constructs the evaluator.
func NewEligibilityEvaluator(bookings eligibilityBookingRepository, enrollments eligibilityEnrollmentRepository) *EligibilityEvaluator {
	return &EligibilityEvaluator{bookings: bookings, enrollments: enrollments, now: time.Now}
}

// Evaluate applies the single review eligibility policy: a booking or an
// enrollment is required, and when a booking exists its latest session must
// not lie in the future. exec may be a transaction or nil for the pool.
func (e *EligibilityEvaluator) Evaluate(ctx context.Context, exec sqlx.ExtContext, studentID, tutorID, courseID string) (*Eligibility, error) {
	booking, err := e.bookings.FindLatest(ctx, exec, studentID, tutorID, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if errors.Is(err, sql.ErrNoRows) {
		booking = nil
	}

	if booking != nil && booking.SessionDate.After(e.now()) {
		date := booking.SessionDate
		return &Eligibility{Reason: ReasonSessionNotAttended, SessionDate: &date, Booking: booking}, nil
	}

	enrollment, err := e.enrollments.FindByStudentCourse(ctx, exec, studentID, courseID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if errors.Is(err, sql.ErrNoRows) {
		enrollment = nil
	}

	if booking == nil && enrollment == nil {
		return &Eligibility{Reason: ReasonNotEnrolledOrBooked}, nil
	}
	return &Eligibility{Eligible: true, Booking: booking}, nil
}
