package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type tutorServiceMock struct {
	profile *models.TutorProfile
	err     error
	lastID  string
}

func (m *tutorServiceMock) Profile(ctx context.Context, tutorID string) (*models.TutorProfile, error) {
	m.lastID = tutorID
	return m.profile, m.err
}

func ginParam(key, value string) gin.Param {
	return gin.Param{Key: key, Value: value}
}

func TestTutorHandlerProfile(t *testing.T) {
	svc := &tutorServiceMock{profile: &models.TutorProfile{
		ID:           "t-1",
		Name:         "Tia Tutor",
		Rating:       4.5,
		TotalReviews: 2,
		HourlyRate:   models.DefaultHourlyRate,
		Courses:      []models.CourseSummary{},
	}}
	handler := NewTutorHandler(svc)

	c, w := jsonContext(http.MethodGet, "/tutors/t-1", "", nil)
	c.Params = append(c.Params, ginParam("id", "t-1"))
	handler.Profile(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t-1", svc.lastID)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, 4.5, data["rating"])
	assert.Equal(t, float64(25), data["hourlyRate"])
	assert.Equal(t, []interface{}{}, data["courses"])
}

func TestTutorHandlerProfileNotFound(t *testing.T) {
	handler := NewTutorHandler(&tutorServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "Tutor not found")})

	c, w := jsonContext(http.MethodGet, "/tutors/missing", "", nil)
	c.Params = append(c.Params, ginParam("id", "missing"))
	handler.Profile(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
