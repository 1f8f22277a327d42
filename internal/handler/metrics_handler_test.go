package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/service"
)

type pingerStub struct{ err error }

func (p pingerStub) PingContext(ctx context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(service.NewMetricsService(), pingerStub{})
	c, w := jsonContext(http.MethodGet, "/ready", "", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	handler = NewMetricsHandler(service.NewMetricsService(), pingerStub{err: errors.New("dial tcp: refused")})
	c, w = jsonContext(http.MethodGet, "/ready", "", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "refused")
}

func TestMetricsHandlerSummaryCountsSubmissions(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordReviewSubmission(service.SubmissionOutcomeCreated)
	metrics.RecordReviewSubmission(service.SubmissionOutcomeConflict)
	handler := NewMetricsHandler(metrics, nil)

	c, w := jsonContext(http.MethodGet, "/metrics/summary", "", nil)
	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	submissions := data["review_submissions"].(map[string]interface{})
	assert.Equal(t, float64(1), submissions[service.SubmissionOutcomeCreated])
	assert.Equal(t, float64(1), submissions[service.SubmissionOutcomeConflict])
}
