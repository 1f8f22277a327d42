package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

func TestReviewCreateSurfacesBookingUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("INSERT INTO reviews").
		WillReturnError(&pq.Error{Code: "23505", Constraint: ReviewBookingConstraint})

	err := repo.Create(context.Background(), nil, &models.Review{BookingID: "b-1", ReviewerID: "s-1", TutorID: "t-1", CourseID: "c-1", Rating: 5})
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err, ReviewBookingConstraint))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs(sqlmock.AnyArg(), "b-1", "s-1", "t-1", "c-1", 4, nil, models.ReviewStatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	review := &models.Review{BookingID: "b-1", ReviewerID: "s-1", TutorID: "t-1", CourseID: "c-1", Rating: 4}
	require.NoError(t, repo.Create(context.Background(), nil, review))
	assert.NotEmpty(t, review.ID)
	assert.Equal(t, models.ReviewStatusPending, review.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewUpdateStatusOnlyFromPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reviews SET status = $2, approved_at = $3 WHERE id = $1 AND status = 'pending'")).
		WithArgs("rv-1", models.ReviewStatusAccepted, &now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateStatus(context.Background(), "rv-1", models.ReviewStatusAccepted, &now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewListBuildsFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	now := time.Now()
	cols := []string{"id", "booking_id", "reviewer_id", "tutor_id", "course_id", "rating", "comment", "status", "created_at", "approved_at", "reviewer_name", "course_title"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE rv.tutor_id = $1 AND rv.status = $2 ORDER BY rv.created_at DESC")).
		WithArgs("t-1", models.ReviewStatusAccepted).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("rv-1", "b-1", "s-1", "t-1", "c-1", 5, "great", "accepted", now, now, "Sam", "Algebra"))

	items, err := repo.List(context.Background(), models.ReviewFilter{TutorID: "t-1", Status: models.ReviewStatusAccepted})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Sam", items[0].ReviewerName)
	assert.Equal(t, 5, items[0].Rating)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewDeleteMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReviewRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM reviews WHERE id = $1")).
		WithArgs("rv-x").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.Error(t, repo.Delete(context.Background(), "rv-x"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
