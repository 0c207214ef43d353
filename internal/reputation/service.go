package reputation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperrors "nearserve/internal/common/errors"
	"nearserve/internal/common/logger"
	"nearserve/internal/common/metrics"
	"nearserve/internal/models"
)

// Notifier receives reputation change events. Delivery is fire-and-forget;
// implementations must never block or fail the assessment path.
type Notifier interface {
	ReputationChanged(workerID string, change int, newScore int, assessmentType models.AssessmentType, becameRestricted bool)
}

// Service implements assessment submission and the worker reputation view.
type Service struct {
	db       *sql.DB
	store    *Store
	redis    *redis.Client
	notifier Notifier
	config   Config
	logger   logger.Logger
}

func NewService(db *sql.DB, store *Store, rdb *redis.Client, notifier Notifier, cfg Config, log logger.Logger) *Service {
	return &Service{
		db:       db,
		store:    store,
		redis:    rdb,
		notifier: notifier,
		config:   cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "reputation"}),
	}
}

func profileCacheKey(workerID string) string {
	return "worker:reputation:" + workerID
}

// SubmitAssessment applies a customer's attendance assessment for a completed
// job. The job row lock, the assessed-flag flip, the clamped score update and
// the audit log insert all happen in one transaction, so an assessment is
// applied at most once per job.
func (s *Service) SubmitAssessment(ctx context.Context, jobID string, assessmentType models.AssessmentType, customerID string) (*AssessmentResult, error) {
	if !assessmentType.IsValid() {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("assessmentType must be one of ON_TIME, LATE, NO_SHOW; got %q", assessmentType))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	var (
		jobCustomerID string
		workerID      sql.NullString
		status        string
		assessed      bool
	)
	err = tx.QueryRowContext(ctx, `
		SELECT customer_id, worker_id, status, reputation_assessed
		FROM jobs
		WHERE id = $1
		FOR UPDATE`,
		jobID,
	).Scan(&jobCustomerID, &workerID, &status, &assessed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("job", fmt.Sprintf("jobId: %s", jobID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load job: %w", err))
	}

	if jobCustomerID != customerID {
		return nil, apperrors.NewForbiddenError("only the booking customer may assess this job")
	}
	if models.JobStatus(status) != models.JobStatusCompleted {
		return nil, apperrors.NewInvalidStateError(
			"Job is not completed",
			fmt.Sprintf("jobId: %s, status: %s", jobID, status))
	}
	if assessed {
		return nil, apperrors.NewAlreadyAssessedError(jobID)
	}
	if !workerID.Valid || workerID.String == "" {
		return nil, apperrors.NewInvalidStateError(
			"Job has no assigned worker",
			fmt.Sprintf("jobId: %s", jobID))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs
		SET reputation_assessed = TRUE,
		    reputation_assessment_type = $2,
		    updated_at = now()
		WHERE id = $1`,
		jobID, assessmentType,
	); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("mark job assessed: %w", err))
	}

	previous, current, err := s.store.ApplyDelta(ctx, tx, workerID.String, Delta(assessmentType))
	if errors.Is(err, ErrWorkerNotFound) {
		return nil, apperrors.NewNotFoundError("worker", fmt.Sprintf("workerId: %s", workerID.String))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("update reputation: %w", err))
	}

	entry := models.ReputationLogEntry{
		ID:                 uuid.New().String(),
		WorkerID:           workerID.String,
		CustomerID:         customerID,
		JobID:              jobID,
		Change:             current - previous,
		Reason:             models.ReasonAttendanceAssessment,
		AssessmentType:     assessmentType,
		PreviousReputation: previous,
		NewReputation:      current,
		CreatedAt:          time.Now().UTC(),
	}
	if err := s.store.AppendLog(ctx, tx, entry); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("commit: %w", err))
	}

	s.invalidateProfile(ctx, workerID.String)
	metrics.AssessmentsSubmitted.WithLabelValues(string(assessmentType)).Inc()

	s.logger.Info("assessment recorded", map[string]interface{}{
		"jobId":    jobID,
		"workerId": workerID.String,
		"type":     assessmentType,
		"change":   entry.Change,
		"newScore": current,
	})

	if s.notifier != nil {
		becameRestricted := previous >= BookingThreshold && current < BookingThreshold
		s.notifier.ReputationChanged(workerID.String, entry.Change, current, assessmentType, becameRestricted)
	}

	return &AssessmentResult{
		AssessmentType:   assessmentType,
		ReputationChange: entry.Change,
		NewReputation:    current,
		Description:      AssessmentDescription(assessmentType),
	}, nil
}

// WorkerReputation builds the public reputation profile for a worker,
// cache-aside through Redis.
func (s *Service) WorkerReputation(ctx context.Context, workerID string) (*Profile, error) {
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, profileCacheKey(workerID)).Result(); err == nil {
			var profile Profile
			if err := json.Unmarshal([]byte(cached), &profile); err == nil {
				metrics.ProfileCacheHits.WithLabelValues("hit").Inc()
				return &profile, nil
			}
		}
		metrics.ProfileCacheHits.WithLabelValues("miss").Inc()
	}

	score, completedJobs, err := s.store.GetWorker(ctx, workerID)
	if errors.Is(err, ErrWorkerNotFound) {
		return nil, apperrors.NewNotFoundError("worker", fmt.Sprintf("workerId: %s", workerID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	stats, err := s.store.Stats(ctx, workerID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	entries, err := s.store.History(ctx, workerID, s.config.HistoryLimit)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	category := Categorize(score, completedJobs)
	decision := CanBeBooked(score)

	history := make([]HistoryItem, 0, len(entries))
	for _, e := range entries {
		history = append(history, HistoryItem{
			ID:          e.ID,
			Change:      e.Change,
			Reason:      e.Reason,
			Description: AssessmentDescription(e.AssessmentType),
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	profile := &Profile{
		WorkerID: workerID,
		Reputation: ProfileSummary{
			Score:                    score,
			Category:                 category,
			Description:              CategoryDescription(category),
			IsBookable:               decision.Allowed,
			BookingRestrictionReason: decision.Reason,
		},
		Stats:   stats,
		History: history,
	}

	if s.redis != nil {
		if data, err := json.Marshal(profile); err == nil {
			if err := s.redis.Set(ctx, profileCacheKey(workerID), data, s.config.ProfileCacheTTL).Err(); err != nil {
				s.logger.Warn("profile cache set failed", map[string]interface{}{
					"workerId": workerID,
					"error":    err.Error(),
				})
			}
		}
	}

	return profile, nil
}

// CanBeBooked consults the booking eligibility gate for a worker using the
// persisted score. Workers without a profile row count as fresh (score 0).
func (s *Service) CanBeBooked(ctx context.Context, workerID string) (BookingDecision, error) {
	score, err := s.store.GetReputation(ctx, workerID)
	if err != nil {
		return BookingDecision{}, apperrors.NewInternalError(err)
	}
	decision := CanBeBooked(score)
	if !decision.Allowed {
		metrics.BookingGateDenials.Inc()
	}
	return decision, nil
}

func (s *Service) invalidateProfile(ctx context.Context, workerID string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, profileCacheKey(workerID)).Err(); err != nil {
		s.logger.Warn("profile cache invalidation failed", map[string]interface{}{
			"workerId": workerID,
			"error":    err.Error(),
		})
	}
}
