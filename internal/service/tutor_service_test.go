package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

func TestProfileAggregatesAcceptedReviews(t *testing.T) {
	store := newMemoryStore()
	seedMarketplace(store)
	addReview(store, "rv-1", "s-1", 5, models.ReviewStatusAccepted)
	addReview(store, "rv-2", "s-2", 4, models.ReviewStatusAccepted)
	addReview(store, "rv-3", "s-2", 4, models.ReviewStatusAccepted)
	addReview(store, "rv-4", "s-2", 1, models.ReviewStatusRejected)
	addReview(store, "rv-5", "s-2", 1, models.ReviewStatusPending)
	store.addBooking("b-a", "s-1", time.Now().Add(-time.Hour))
	store.addBooking("b-b", "s-1", time.Now().Add(-2*time.Hour))
	store.addBooking("b-c", "s-2", time.Now().Add(-time.Hour))
	store.bookings["b-c"].Status = models.BookingStatusCancelled

	memCache := newMemoryCache()
	svc := NewTutorService(fakeTutorRepo{store}, fakeCourseRepo{store}, NewCacheService(memCache, nil, time.Minute, nil, true), time.Minute, nil)

	profile, err := svc.Profile(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, "Tia Tutor", profile.Name)
	assert.Equal(t, 4.3, profile.Rating)
	assert.Equal(t, 3, profile.TotalReviews)
	assert.Equal(t, 1, profile.StudentsCount)
	assert.Equal(t, models.DefaultHourlyRate, profile.HourlyRate)
	require.Len(t, profile.Courses, 1)
	assert.Equal(t, 120.0, profile.Courses[0].Price)
	assert.Contains(t, memCache.entries, cache.TutorProfileKey("t-1"))

	// served from cache even after the data changes
	addReview(store, "rv-6", "s-1", 1, models.ReviewStatusAccepted)
	cached, err := svc.Profile(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 3, cached.TotalReviews)
}

func TestProfileUnknownTutor(t *testing.T) {
	store := newMemoryStore()
	svc := NewTutorService(fakeTutorRepo{store}, fakeCourseRepo{store}, nil, 0, nil)

	_, err := svc.Profile(context.Background(), "nope")
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestProfileUsesConfiguredRate(t *testing.T) {
	store := newMemoryStore()
	seedMarketplace(store)
	rate := 40.0
	bio := "Maths tutor"
	store.tutors["t-1"].HourlyRate = &rate
	store.tutors["t-1"].Bio = &bio
	svc := NewTutorService(fakeTutorRepo{store}, fakeCourseRepo{store}, nil, 0, nil)

	profile, err := svc.Profile(context.Background(), "t-1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, profile.HourlyRate)
	assert.Equal(t, "Maths tutor", profile.Bio)
	assert.Zero(t, profile.Rating)
}
