package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

// memoryStore is an in-memory marketplace shared by the repository fakes.
type memoryStore struct {
	mu sync.Mutex

	users       map[string]*models.User
	tutors      map[string]*models.Tutor
	courses     map[string]*models.Course
	enrollments map[string]*models.Enrollment
	bookings    map[string]*models.Booking
	requests    map[string]*models.ReviewRequest
	reviews     map[string]*models.Review

	seq int

	// staleRead makes FindByIDForUpdate report pending regardless of the stored status.
	staleRead bool
	// backfillErr fails MarkResponded calls made outside a transaction.
	backfillErr error
	// rowLocks emulates SELECT FOR UPDATE, released when the request leaves pending.
	rowLocks bool
	rowLock  sync.Mutex
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:       map[string]*models.User{},
		tutors:      map[string]*models.Tutor{},
		courses:     map[string]*models.Course{},
		enrollments: map[string]*models.Enrollment{},
		bookings:    map[string]*models.Booking{},
		requests:    map[string]*models.ReviewRequest{},
		reviews:     map[string]*models.Review{},
	}
}

func (s *memoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// seedMarketplace creates tutor t-1 owned by user u-tutor, course c-1 and students s-1, s-2.
func seedMarketplace(s *memoryStore) {
	now := time.Now().UTC()
	s.users["u-tutor"] = &models.User{ID: "u-tutor", Email: "tia@example.com", FullName: "Tia Tutor", Role: models.RoleTutor, Active: true}
	s.users["s-1"] = &models.User{ID: "s-1", Email: "sam@example.com", FullName: "Sam Student", Role: models.RoleStudent, Active: true}
	s.users["s-2"] = &models.User{ID: "s-2", Email: "ria@example.com", FullName: "Ria Student", Role: models.RoleStudent, Active: true}
	s.tutors["t-1"] = &models.Tutor{ID: "t-1", UserID: "u-tutor", CreatedAt: now}
	s.courses["c-1"] = &models.Course{ID: "c-1", TutorID: "t-1", Title: "Algebra", FullCourseRate: 120, CreatedAt: now}
}

func (s *memoryStore) addRequest(id, studentID string, status models.ReviewRequestStatus) *models.ReviewRequest {
	request := &models.ReviewRequest{ID: id, TutorID: "t-1", CourseID: "c-1", StudentID: studentID, Status: status, CreatedAt: time.Now().UTC()}
	s.requests[id] = request
	return request
}

func (s *memoryStore) addBooking(id, learnerID string, session time.Time) *models.Booking {
	booking := &models.Booking{ID: id, LearnerID: learnerID, TutorID: "t-1", CourseID: "c-1", SessionDate: session, DurationMin: 60, Status: models.BookingStatusCompleted, CreatedAt: session}
	s.bookings[id] = booking
	return booking
}

func (s *memoryStore) addEnrollment(studentID, courseID string) {
	s.enrollments[studentID+"|"+courseID] = &models.Enrollment{ID: "e-" + studentID, StudentID: studentID, CourseID: courseID, EnrolledAt: time.Now().UTC()}
}

type fakeRequestRepo struct{ *memoryStore }

func (r fakeRequestRepo) FindByIDForUpdate(ctx context.Context, tx sqlx.ExtContext, id string) (*models.ReviewRequest, error) {
	if r.rowLocks {
		r.rowLock.Lock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		if r.rowLocks {
			r.rowLock.Unlock()
		}
		return nil, sql.ErrNoRows
	}
	clone := *request
	if r.staleRead {
		clone.Status = models.ReviewRequestStatusPending
	}
	if r.rowLocks && clone.Status != models.ReviewRequestStatusPending {
		r.rowLock.Unlock()
	}
	return &clone, nil
}

func (r fakeRequestRepo) MarkResponded(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if exec == nil && r.backfillErr != nil {
		return false, r.backfillErr
	}
	if exec != nil && r.rowLocks {
		defer r.rowLock.Unlock()
	}
	request, ok := r.requests[id]
	if !ok || request.Status != models.ReviewRequestStatusPending {
		return false, nil
	}
	request.Status = models.ReviewRequestStatusResponded
	request.RespondedAt = &at
	return true, nil
}

func (r fakeRequestRepo) CreatePending(ctx context.Context, exec sqlx.ExtContext, request *models.ReviewRequest) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.requests {
		if existing.Status == models.ReviewRequestStatusPending && existing.TutorID == request.TutorID &&
			existing.CourseID == request.CourseID && existing.StudentID == request.StudentID {
			return false, nil
		}
	}
	if request.ID == "" {
		request.ID = r.nextID("rr")
	}
	request.Status = models.ReviewRequestStatusPending
	request.CreatedAt = time.Now().UTC()
	clone := *request
	r.requests[request.ID] = &clone
	return true, nil
}

func (r fakeRequestRepo) HasPending(ctx context.Context, tutorID, courseID, studentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rr := range r.requests {
		if rr.TutorID == tutorID && rr.CourseID == courseID && rr.StudentID == studentID && rr.Status == models.ReviewRequestStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r fakeRequestRepo) HasReviewedResponse(ctx context.Context, tutorID, courseID, studentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rr := range r.requests {
		if rr.TutorID != tutorID || rr.CourseID != courseID || rr.StudentID != studentID || rr.Status != models.ReviewRequestStatusResponded {
			continue
		}
		for _, rv := range r.reviews {
			if rv.ReviewerID == studentID && rv.TutorID == tutorID && rv.CourseID == courseID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r fakeRequestRepo) detail(rr *models.ReviewRequest) models.ReviewRequestDetail {
	detail := models.ReviewRequestDetail{ReviewRequest: *rr}
	if c, ok := r.courses[rr.CourseID]; ok {
		detail.CourseTitle = c.Title
	}
	if u, ok := r.users[rr.StudentID]; ok {
		detail.StudentName = u.FullName
	}
	if t, ok := r.tutors[rr.TutorID]; ok {
		if u, ok := r.users[t.UserID]; ok {
			detail.TutorName = u.FullName
		}
	}
	return detail
}

func (r fakeRequestRepo) FindDetail(ctx context.Context, id string) (*models.ReviewRequestDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rr, ok := r.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := r.detail(rr)
	return &detail, nil
}

func (r fakeRequestRepo) ListPendingByTutorUser(ctx context.Context, userID string) ([]models.ReviewRequestDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReviewRequestDetail
	for _, rr := range r.requests {
		if t, ok := r.tutors[rr.TutorID]; ok && t.UserID == userID && rr.Status == models.ReviewRequestStatusPending {
			out = append(out, r.detail(rr))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeRequestRepo) ListByStudent(ctx context.Context, studentID string, status models.ReviewRequestStatus) ([]models.ReviewRequestDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReviewRequestDetail
	for _, rr := range r.requests {
		if rr.StudentID == studentID && (status == "" || rr.Status == status) {
			out = append(out, r.detail(rr))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeReviewRepo struct{ *memoryStore }

func (r fakeReviewRepo) Create(ctx context.Context, exec sqlx.ExtContext, review *models.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reviews {
		if existing.BookingID == review.BookingID {
			return fmt.Errorf("insert review: %w", &pq.Error{Code: "23505", Constraint: repository.ReviewBookingConstraint})
		}
	}
	if review.ID == "" {
		review.ID = r.nextID("rv")
	}
	clone := *review
	r.reviews[review.ID] = &clone
	return nil
}

func (r fakeReviewRepo) FindByID(ctx context.Context, id string) (*models.Review, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *review
	return &clone, nil
}

func (r fakeReviewRepo) UpdateStatus(ctx context.Context, id string, status models.ReviewStatus, approvedAt *time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review, ok := r.reviews[id]
	if !ok || review.Status != models.ReviewStatusPending {
		return false, nil
	}
	review.Status = status
	review.ApprovedAt = approvedAt
	return true, nil
}

func (r fakeReviewRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reviews[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.reviews, id)
	return nil
}

func (r fakeReviewRepo) List(ctx context.Context, filter models.ReviewFilter) ([]models.ReviewDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ReviewDetail
	for _, rv := range r.reviews {
		if filter.TutorID != "" && rv.TutorID != filter.TutorID ||
			filter.CourseID != "" && rv.CourseID != filter.CourseID ||
			filter.ReviewerID != "" && rv.ReviewerID != filter.ReviewerID ||
			filter.Status != "" && rv.Status != filter.Status {
			continue
		}
		detail := models.ReviewDetail{Review: *rv}
		if u, ok := r.users[rv.ReviewerID]; ok {
			detail.ReviewerName = u.FullName
		}
		if c, ok := r.courses[rv.CourseID]; ok {
			detail.CourseTitle = c.Title
		}
		out = append(out, detail)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

type fakeBookingRepo struct{ *memoryStore }

func (r fakeBookingRepo) FindLatest(ctx context.Context, exec sqlx.ExtContext, learnerID, tutorID, courseID string) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *models.Booking
	for _, b := range r.bookings {
		if b.LearnerID != learnerID || b.TutorID != tutorID || b.CourseID != courseID {
			continue
		}
		if latest == nil || b.SessionDate.After(latest.SessionDate) {
			latest = b
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	clone := *latest
	return &clone, nil
}

func (r fakeBookingRepo) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if booking.ID == "" {
		booking.ID = r.nextID("b")
	}
	clone := *booking
	r.bookings[booking.ID] = &clone
	return nil
}

type fakeEnrollmentRepo struct{ *memoryStore }

func (r fakeEnrollmentRepo) FindByStudentCourse(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (*models.Enrollment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.enrollments[studentID+"|"+courseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *e
	return &clone, nil
}

type fakeTutorRepo struct{ *memoryStore }

func (r fakeTutorRepo) FindByID(ctx context.Context, id string) (*models.Tutor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tutors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *t
	return &clone, nil
}

func (r fakeTutorRepo) FindByUserID(ctx context.Context, userID string) (*models.Tutor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tutors {
		if t.UserID == userID {
			clone := *t
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (r fakeTutorRepo) FindDetail(ctx context.Context, id string) (*models.TutorDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tutors[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	detail := &models.TutorDetail{Tutor: *t}
	if u, ok := r.users[t.UserID]; ok {
		detail.Name = u.FullName
		detail.Email = u.Email
	}
	return detail, nil
}

func (r fakeTutorRepo) Stats(ctx context.Context, tutorID string) (*models.TutorStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var stats models.TutorStats
	sum := 0
	for _, rv := range r.reviews {
		if rv.TutorID == tutorID && rv.Status == models.ReviewStatusAccepted {
			sum += rv.Rating
			stats.TotalReviews++
		}
	}
	if stats.TotalReviews > 0 {
		stats.AverageRating = float64(sum) / float64(stats.TotalReviews)
	}
	learners := map[string]struct{}{}
	for _, b := range r.bookings {
		if b.TutorID == tutorID && b.Status == models.BookingStatusCompleted {
			learners[b.LearnerID] = struct{}{}
		}
	}
	stats.StudentsCount = len(learners)
	return &stats, nil
}

type fakeCourseRepo struct{ *memoryStore }

func (r fakeCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (r fakeCourseRepo) ListSummariesByTutor(ctx context.Context, tutorID string) ([]models.CourseSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.CourseSummary{}
	for _, c := range r.courses {
		if c.TutorID == tutorID {
			out = append(out, models.CourseSummary{ID: c.ID, Title: c.Title, Price: c.FullCourseRate})
		}
	}
	return out, nil
}

type fakeUserRepo struct{ *memoryStore }

func (r fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

type recordingQueue struct {
	mu   sync.Mutex
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func claimsFor(userID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: role}
}
