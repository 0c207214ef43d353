package reputation

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "nearserve/internal/common/errors"
	"nearserve/internal/common/logger"
	"nearserve/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

type notifierCall struct {
	workerID         string
	change           int
	newScore         int
	assessmentType   models.AssessmentType
	becameRestricted bool
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (f *fakeNotifier) ReputationChanged(workerID string, change int, newScore int, assessmentType models.AssessmentType, becameRestricted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifierCall{workerID, change, newScore, assessmentType, becameRestricted})
}

type serviceFixture struct {
	service  *Service
	mock     sqlmock.Sqlmock
	redis    *miniredis.Miniredis
	notifier *fakeNotifier
	close    func()
}

func newServiceFixture(t *testing.T) *serviceFixture {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	notifier := &fakeNotifier{}
	log := logger.NewZapAdapter(zaptest.NewLogger(t))
	service := NewService(db, NewStore(db), rdb, notifier, Config{
		ProfileCacheTTL: time.Minute,
		HistoryLimit:    50,
	}, log)

	return &serviceFixture{
		service:  service,
		mock:     mock,
		redis:    mr,
		notifier: notifier,
		close: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func expectJobLock(mock sqlmock.Sqlmock, jobID, customerID, workerID, status string, assessed bool) {
	var worker interface{} = workerID
	if workerID == "" {
		worker = nil
	}
	mock.ExpectQuery(`SELECT customer_id, worker_id, status, reputation_assessed`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"customer_id", "worker_id", "status", "reputation_assessed"}).
			AddRow(customerID, worker, status, assessed))
}

func expectSuccessfulSubmission(mock sqlmock.Sqlmock, jobID, customerID, workerID string, assessmentType models.AssessmentType, delta, prev, current int) {
	mock.ExpectBegin()
	expectJobLock(mock, jobID, customerID, workerID, string(models.JobStatusCompleted), false)
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(jobID, assessmentType).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE workers w`).
		WithArgs(workerID, delta, ReputationCeiling, ReputationFloor).
		WillReturnRows(sqlmock.NewRows([]string{"prev", "reputation"}).AddRow(prev, current))
	mock.ExpectExec(`INSERT INTO reputation_log`).
		WithArgs(
			sqlmock.AnyArg(), workerID, customerID, jobID,
			current-prev, models.ReasonAttendanceAssessment, assessmentType,
			prev, current, sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func assertStandardErrorCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	stdErr := apperrors.FromError(err)
	assert.Equal(t, code, stdErr.Code)
}

// ==========================
// SubmitAssessment
// ==========================

func TestService_SubmitAssessment_Success(t *testing.T) {
	tests := []struct {
		name           string
		assessmentType models.AssessmentType
		delta          int
		prev           int
		current        int
	}{
		{"on time", models.AssessmentOnTime, 1, 4, 5},
		{"late", models.AssessmentLate, 0, 4, 4},
		{"no show", models.AssessmentNoShow, -1, 4, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			defer f.close()

			// A stale cached profile must be invalidated by the submission.
			f.redis.Set(profileCacheKey("worker-1"), `{"stale":true}`)

			expectSuccessfulSubmission(f.mock, "job-1", "customer-1", "worker-1",
				tt.assessmentType, tt.delta, tt.prev, tt.current)

			result, err := f.service.SubmitAssessment(context.Background(), "job-1", tt.assessmentType, "customer-1")

			require.NoError(t, err)
			assert.Equal(t, tt.assessmentType, result.AssessmentType)
			assert.Equal(t, tt.current-tt.prev, result.ReputationChange)
			assert.Equal(t, tt.current, result.NewReputation)
			assert.Equal(t, AssessmentDescription(tt.assessmentType), result.Description)
			assert.NoError(t, f.mock.ExpectationsWereMet())

			assert.False(t, f.redis.Exists(profileCacheKey("worker-1")))

			require.Len(t, f.notifier.calls, 1)
			call := f.notifier.calls[0]
			assert.Equal(t, "worker-1", call.workerID)
			assert.Equal(t, tt.current, call.newScore)
			assert.False(t, call.becameRestricted)
		})
	}
}

func TestService_SubmitAssessment_ClampedAtCeiling(t *testing.T) {
	f := newServiceFixture(t)
	defer f.close()

	// Worker already at 100: the recorded change is zero, not one.
	expectSuccessfulSubmission(f.mock, "job-1", "customer-1", "worker-1",
		models.AssessmentOnTime, 1, 100, 100)

	result, err := f.service.SubmitAssessment(context.Background(), "job-1", models.AssessmentOnTime, "customer-1")

	require.NoError(t, err)
	assert.Equal(t, 0, result.ReputationChange)
	assert.Equal(t, 100, result.NewReputation)
}

func TestService_SubmitAssessment_BecameRestricted(t *testing.T) {
	f := newServiceFixture(t)
	defer f.close()

	// Crossing the booking threshold downward flags the notification.
	expectSuccessfulSubmission(f.mock, "job-1", "customer-1", "worker-1",
		models.AssessmentNoShow, -1, -5, -6)

	_, err := f.service.SubmitAssessment(context.Background(), "job-1", models.AssessmentNoShow, "customer-1")

	require.NoError(t, err)
	require.Len(t, f.notifier.calls, 1)
	assert.True(t, f.notifier.calls[0].becameRestricted)
}

func TestService_SubmitAssessment_AlreadyRestrictedDoesNotReflag(t *testing.T) {
	f := newServiceFixture(t)
	defer f.close()

	expectSuccessfulSubmission(f.mock, "job-1", "customer-1", "worker-1",
		models.AssessmentNoShow, -1, -6, -7)

	_, err := f.service.SubmitAssessment(context.Background(), "job-1", models.AssessmentNoShow, "customer-1")

	require.NoError(t, err)
	require.Len(t, f.notifier.calls, 1)
	assert.False(t, f.notifier.calls[0].becameRestricted)
}

func TestService_SubmitAssessment_Errors(t *testing.T) {
	tests := []struct {
		name           string
		assessmentType models.AssessmentType
		setupMock      func(mock sqlmock.Sqlmock)
		expectedCode   apperrors.ErrorCode
	}{
		{
			name:           "invalid assessment type",
			assessmentType: models.AssessmentType("SOMEWHAT_LATE"),
			setupMock:      func(mock sqlmock.Sqlmock) {},
			expectedCode:   apperrors.ErrCodeValidation,
		},
		{
			name:           "job not found",
			assessmentType: models.AssessmentOnTime,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectQuery(`SELECT customer_id, worker_id, status, reputation_assessed`).
					WithArgs("job-1").
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			expectedCode: apperrors.ErrCodeNotFound,
		},
		{
			name:           "caller is not the booking customer",
			assessmentType: models.AssessmentOnTime,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectJobLock(mock, "job-1", "someone-else", "worker-1", string(models.JobStatusCompleted), false)
				mock.ExpectRollback()
			},
			expectedCode: apperrors.ErrCodeForbidden,
		},
		{
			name:           "job not completed",
			assessmentType: models.AssessmentOnTime,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectJobLock(mock, "job-1", "customer-1", "worker-1", string(models.JobStatusInProgress), false)
				mock.ExpectRollback()
			},
			expectedCode: apperrors.ErrCodeInvalidState,
		},
		{
			name:           "already assessed",
			assessmentType: models.AssessmentOnTime,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectJobLock(mock, "job-1", "customer-1", "worker-1", string(models.JobStatusCompleted), true)
				mock.ExpectRollback()
			},
			expectedCode: apperrors.ErrCodeAlreadyAssessed,
		},
		{
			name:           "assigned worker has no reputation row",
			assessmentType: models.AssessmentOnTime,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectJobLock(mock, "job-1", "customer-1", "worker-1", string(models.JobStatusCompleted), false)
				mock.ExpectExec(`UPDATE jobs`).
					WithArgs("job-1", models.AssessmentOnTime).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(`UPDATE workers w`).
					WithArgs("worker-1", 1, ReputationCeiling, ReputationFloor).
					WillReturnError(sql.ErrNoRows)
				mock.ExpectRollback()
			},
			expectedCode: apperrors.ErrCodeNotFound,
		},
		{
			name:           "job has no assigned worker",
			assessmentType: models.AssessmentOnTime,
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				expectJobLock(mock, "job-1", "customer-1", "", string(models.JobStatusCompleted), false)
				mock.ExpectRollback()
			},
			expectedCode: apperrors.ErrCodeInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			defer f.close()

			tt.setupMock(f.mock)

			result, err := f.service.SubmitAssessment(context.Background(), "job-1", tt.assessmentType, "customer-1")

			assert.Nil(t, result)
			assertStandardErrorCode(t, err, tt.expectedCode)
			assert.Empty(t, f.notifier.calls)
			assert.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestService_SubmitAssessment_SecondSubmissionRejected(t *testing.T) {
	f := newServiceFixture(t)
	defer f.close()

	expectSuccessfulSubmission(f.mock, "job-1", "customer-1", "worker-1",
		models.AssessmentOnTime, 1, 0, 1)

	_, err := f.service.SubmitAssessment(context.Background(), "job-1", models.AssessmentOnTime, "customer-1")
	require.NoError(t, err)

	// The flag was flipped in the first transaction, so the retry sees it.
	f.mock.ExpectBegin()
	expectJobLock(f.mock, "job-1", "customer-1", "worker-1", string(models.JobStatusCompleted), true)
	f.mock.ExpectRollback()

	_, err = f.service.SubmitAssessment(context.Background(), "job-1", models.AssessmentNoShow, "customer-1")
	assertStandardErrorCode(t, err, apperrors.ErrCodeAlreadyAssessed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

// ==========================
// WorkerReputation
// ==========================

func expectProfileQueries(mock sqlmock.Sqlmock, workerID string, score, completedJobs int) {
	mock.ExpectQuery(`SELECT reputation, completed_jobs FROM workers WHERE user_id = \$1`).
		WithArgs(workerID).
		WillReturnRows(sqlmock.NewRows([]string{"reputation", "completed_jobs"}).AddRow(score, completedJobs))
	mock.ExpectQuery(`SELECT completed_jobs FROM workers WHERE user_id = \$1`).
		WithArgs(workerID).
		WillReturnRows(sqlmock.NewRows([]string{"completed_jobs"}).AddRow(completedJobs))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(workerID, models.AssessmentOnTime, models.AssessmentNoShow, models.ReasonAttendanceAssessment).
		WillReturnRows(sqlmock.NewRows([]string{"count", "on_time", "no_shows"}).AddRow(completedJobs, completedJobs, 0))
	mock.ExpectQuery(`SELECT id, worker_id, customer_id, job_id, change, reason`).
		WithArgs(workerID, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "worker_id", "customer_id", "job_id", "change", "reason",
			"assessment_type", "previous_reputation", "new_reputation", "created_at",
		}).AddRow(
			"log-1", workerID, "customer-1", "job-1", 1,
			models.ReasonAttendanceAssessment, models.AssessmentOnTime, score-1, score, time.Now().UTC(),
		))
}

func TestService_WorkerReputation(t *testing.T) {
	t.Run("builds profile and caches it", func(t *testing.T) {
		f := newServiceFixture(t)
		defer f.close()

		expectProfileQueries(f.mock, "worker-1", 21, 21)

		profile, err := f.service.WorkerReputation(context.Background(), "worker-1")

		require.NoError(t, err)
		assert.Equal(t, "worker-1", profile.WorkerID)
		assert.Equal(t, 21, profile.Reputation.Score)
		assert.Equal(t, models.CategoryTopRated, profile.Reputation.Category)
		assert.True(t, profile.Reputation.IsBookable)
		assert.Empty(t, profile.Reputation.BookingRestrictionReason)
		assert.Equal(t, 21, profile.Stats.CompletedJobs)
		require.Len(t, profile.History, 1)
		assert.Equal(t, "log-1", profile.History[0].ID)
		assert.NoError(t, f.mock.ExpectationsWereMet())

		cached, err := f.redis.Get(profileCacheKey("worker-1"))
		require.NoError(t, err)
		var cachedProfile Profile
		require.NoError(t, json.Unmarshal([]byte(cached), &cachedProfile))
		assert.Equal(t, 21, cachedProfile.Reputation.Score)
	})

	t.Run("serves cached profile without touching the database", func(t *testing.T) {
		f := newServiceFixture(t)
		defer f.close()

		expectProfileQueries(f.mock, "worker-1", 6, 6)

		_, err := f.service.WorkerReputation(context.Background(), "worker-1")
		require.NoError(t, err)

		// No further mock expectations: a second call must be a cache hit.
		profile, err := f.service.WorkerReputation(context.Background(), "worker-1")
		require.NoError(t, err)
		assert.Equal(t, 6, profile.Reputation.Score)
		assert.NoError(t, f.mock.ExpectationsWereMet())
	})

	t.Run("restricted worker", func(t *testing.T) {
		f := newServiceFixture(t)
		defer f.close()

		expectProfileQueries(f.mock, "worker-1", -6, 10)

		profile, err := f.service.WorkerReputation(context.Background(), "worker-1")

		require.NoError(t, err)
		assert.Equal(t, models.CategoryLow, profile.Reputation.Category)
		assert.False(t, profile.Reputation.IsBookable)
		assert.Equal(t, BookingRestrictionReason, profile.Reputation.BookingRestrictionReason)
	})

	t.Run("fresh worker is NEW even with a positive score", func(t *testing.T) {
		f := newServiceFixture(t)
		defer f.close()

		f.mock.ExpectQuery(`SELECT reputation, completed_jobs FROM workers WHERE user_id = \$1`).
			WithArgs("worker-1").
			WillReturnRows(sqlmock.NewRows([]string{"reputation", "completed_jobs"}).AddRow(25, 0))
		f.mock.ExpectQuery(`SELECT completed_jobs FROM workers WHERE user_id = \$1`).
			WithArgs("worker-1").
			WillReturnRows(sqlmock.NewRows([]string{"completed_jobs"}).AddRow(0))
		f.mock.ExpectQuery(`SELECT COUNT\(\*\)`).
			WithArgs("worker-1", models.AssessmentOnTime, models.AssessmentNoShow, models.ReasonAttendanceAssessment).
			WillReturnRows(sqlmock.NewRows([]string{"count", "on_time", "no_shows"}).AddRow(0, 0, 0))
		f.mock.ExpectQuery(`SELECT id, worker_id, customer_id, job_id, change, reason`).
			WithArgs("worker-1", 50).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "worker_id", "customer_id", "job_id", "change", "reason",
				"assessment_type", "previous_reputation", "new_reputation", "created_at",
			}))

		profile, err := f.service.WorkerReputation(context.Background(), "worker-1")

		require.NoError(t, err)
		assert.Equal(t, models.CategoryNew, profile.Reputation.Category)
		assert.Empty(t, profile.History)
	})

	t.Run("worker not found", func(t *testing.T) {
		f := newServiceFixture(t)
		defer f.close()

		f.mock.ExpectQuery(`SELECT reputation, completed_jobs FROM workers WHERE user_id = \$1`).
			WithArgs("nobody").
			WillReturnError(sql.ErrNoRows)

		profile, err := f.service.WorkerReputation(context.Background(), "nobody")

		assert.Nil(t, profile)
		assertStandardErrorCode(t, err, apperrors.ErrCodeNotFound)
	})
}

// ==========================
// CanBeBooked
// ==========================

func TestService_CanBeBooked(t *testing.T) {
	tests := []struct {
		name    string
		score   int
		allowed bool
	}{
		{"at threshold", -5, true},
		{"below threshold", -6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			defer f.close()

			f.mock.ExpectQuery(`SELECT reputation FROM workers WHERE user_id = \$1`).
				WithArgs("worker-1").
				WillReturnRows(sqlmock.NewRows([]string{"reputation"}).AddRow(tt.score))

			decision, err := f.service.CanBeBooked(context.Background(), "worker-1")

			require.NoError(t, err)
			assert.Equal(t, tt.allowed, decision.Allowed)
		})
	}

	t.Run("unknown worker counts as fresh", func(t *testing.T) {
		f := newServiceFixture(t)
		defer f.close()

		f.mock.ExpectQuery(`SELECT reputation FROM workers WHERE user_id = \$1`).
			WithArgs("nobody").
			WillReturnError(sql.ErrNoRows)

		decision, err := f.service.CanBeBooked(context.Background(), "nobody")

		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	})
}

// ==========================
// Lifecycle Scenario
// ==========================

// A worker starts at zero, earns one ON_TIME point, then accumulates no-shows.
// Bookings stay allowed down to the threshold and stop just below it.
func TestService_ReputationLifecycle(t *testing.T) {
	f := newServiceFixture(t)
	defer f.close()

	score := 0
	submit := func(jobID string, at models.AssessmentType) {
		t.Helper()
		next := ApplyDelta(score, Delta(at))
		expectSuccessfulSubmission(f.mock, jobID, "customer-1", "worker-1", at, Delta(at), score, next)
		result, err := f.service.SubmitAssessment(context.Background(), jobID, at, "customer-1")
		require.NoError(t, err)
		assert.Equal(t, next, result.NewReputation)
		score = next
	}
	gate := func() BookingDecision {
		t.Helper()
		f.mock.ExpectQuery(`SELECT reputation FROM workers WHERE user_id = \$1`).
			WithArgs("worker-1").
			WillReturnRows(sqlmock.NewRows([]string{"reputation"}).AddRow(score))
		decision, err := f.service.CanBeBooked(context.Background(), "worker-1")
		require.NoError(t, err)
		return decision
	}

	submit("job-1", models.AssessmentOnTime)
	assert.Equal(t, 1, score)

	for i := 0; i < 4; i++ {
		submit("job-noshow-"+string(rune('a'+i)), models.AssessmentNoShow)
	}
	assert.Equal(t, -3, score)
	assert.True(t, gate().Allowed)

	submit("job-5", models.AssessmentNoShow)
	submit("job-6", models.AssessmentNoShow)
	assert.Equal(t, -5, score)
	assert.True(t, gate().Allowed)

	submit("job-7", models.AssessmentNoShow)
	assert.Equal(t, -6, score)
	assert.False(t, gate().Allowed)

	assert.NoError(t, f.mock.ExpectationsWereMet())
}
