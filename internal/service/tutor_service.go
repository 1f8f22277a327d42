package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type tutorProfileRepository interface {
	FindDetail(ctx context.Context, id string) (*models.TutorDetail, error)
	Stats(ctx context.Context, tutorID string) (*models.TutorStats, error)
}

type tutorCourseRepository interface {
	ListSummariesByTutor(ctx context.Context, tutorID string) ([]models.CourseSummary, error)
}

// TutorService builds public tutor profiles.
type TutorService struct {
	tutors   tutorProfileRepository
	courses  tutorCourseRepository
	cache    *CacheService
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewTutorService constructs the service.
func NewTutorService(tutors tutorProfileRepository, courses tutorCourseRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *TutorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TutorService{tutors: tutors, courses: courses, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Profile returns the tutor with accepted-review aggregates.
func (s *TutorService) Profile(ctx context.Context, tutorID string) (*models.TutorProfile, error) {
	key := cache.TutorProfileKey(tutorID)
	var cached models.TutorProfile
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	detail, err := s.tutors.FindDetail(ctx, tutorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Tutor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor")
	}
	stats, err := s.tutors.Stats(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate tutor stats")
	}
	courses, err := s.courses.ListSummariesByTutor(ctx, tutorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load tutor courses")
	}

	profile := &models.TutorProfile{
		ID:            detail.ID,
		Name:          detail.Name,
		Email:         detail.Email,
		HourlyRate:    models.DefaultHourlyRate,
		Rating:        math.Round(stats.AverageRating*10) / 10,
		TotalReviews:  stats.TotalReviews,
		StudentsCount: stats.StudentsCount,
		Courses:       courses,
	}
	if detail.Bio != nil {
		profile.Bio = *detail.Bio
	}
	if detail.HourlyRate != nil && *detail.HourlyRate > 0 {
		profile.HourlyRate = *detail.HourlyRate
	}
	if profile.Courses == nil {
		profile.Courses = []models.CourseSummary{}
	}

	s.cache.Set(ctx, key, profile, s.cacheTTL)
	return profile, nil
}
