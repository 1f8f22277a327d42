package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func newEvaluatorFixture(now time.Time) (*EligibilityEvaluator, *memoryStore) {
	store := newMemoryStore()
	seedMarketplace(store)
	evaluator := NewEligibilityEvaluator(fakeBookingRepo{store}, fakeEnrollmentRepo{store})
	evaluator.now = func() time.Time { return now }
	return evaluator, store
}

func TestEligibilityFutureSessionBlocksEvenWhenEnrolled(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	evaluator, store := newEvaluatorFixture(now)
	store.addBooking("b-past", "s-1", now.AddDate(0, 0, -7))
	store.addBooking("b-next", "s-1", time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC))
	store.addEnrollment("s-1", "c-1")

	result, err := evaluator.Evaluate(context.Background(), nil, "s-1", "t-1", "c-1")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, ReasonSessionNotAttended, result.Reason)
	require.NotNil(t, result.SessionDate)
	assert.Equal(t, "You cannot submit a review before attending the session. Please wait until after your scheduled session on May 20, 2026.", result.Message())
}

func TestEligibilitySessionAtNowIsAttended(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	evaluator, store := newEvaluatorFixture(now)
	store.addBooking("b-1", "s-1", now)

	result, err := evaluator.Evaluate(context.Background(), nil, "s-1", "t-1", "c-1")
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	require.NotNil(t, result.Booking)
	assert.Equal(t, "b-1", result.Booking.ID)
}

func TestEligibilityEnrollmentOnly(t *testing.T) {
	evaluator, store := newEvaluatorFixture(time.Now())
	store.addEnrollment("s-1", "c-1")

	result, err := evaluator.Evaluate(context.Background(), nil, "s-1", "t-1", "c-1")
	require.NoError(t, err)
	assert.True(t, result.Eligible)
	assert.Nil(t, result.Booking)
}

func TestEligibilityNeitherBookingNorEnrollment(t *testing.T) {
	evaluator, _ := newEvaluatorFixture(time.Now())

	result, err := evaluator.Evaluate(context.Background(), nil, "s-1", "t-1", "c-1")
	require.NoError(t, err)
	assert.False(t, result.Eligible)
	assert.Equal(t, ReasonNotEnrolledOrBooked, result.Reason)
	assert.Equal(t, "You must be enrolled in this course or have booked a session to leave a review.", result.Message())
}

type brokenBookings struct{}

func (brokenBookings) FindLatest(context.Context, sqlx.ExtContext, string, string, string) (*models.Booking, error) {
	return nil, errors.New("connection reset")
}

func TestEligibilityPropagatesLookupFailure(t *testing.T) {
	store := newMemoryStore()
	evaluator := NewEligibilityEvaluator(brokenBookings{}, fakeEnrollmentRepo{store})

	_, err := evaluator.Evaluate(context.Background(), nil, "s-1", "t-1", "c-1")
	assert.Error(t, err)
}
