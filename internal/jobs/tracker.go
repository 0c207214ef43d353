// Package jobs records booking lifecycle transitions. The reputation
// assessment path relies on the COMPLETED state and the completed_jobs
// counter maintained here.
package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "nearserve/internal/common/errors"
	"nearserve/internal/common/logger"
	"nearserve/internal/models"
)

// allowedTransitions is the forward-only booking lifecycle.
var allowedTransitions = map[models.JobStatus]models.JobStatus{
	models.JobStatusPending:    models.JobStatusAccepted,
	models.JobStatusAccepted:   models.JobStatusInProgress,
	models.JobStatusInProgress: models.JobStatusCompleted,
}

type Tracker struct {
	db     *sql.DB
	logger logger.Logger
}

func NewTracker(db *sql.DB, log logger.Logger) *Tracker {
	return &Tracker{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "jobs"}),
	}
}

// Transition moves a job to the next lifecycle state and appends a status log
// row. On COMPLETED the worker's completed_jobs counter is incremented in the
// same transaction. The actor must be a participant of the job.
func (t *Tracker) Transition(ctx context.Context, jobID string, to models.JobStatus, actorID string) (*models.JobStatusTransition, error) {
	switch to {
	case models.JobStatusAccepted, models.JobStatusInProgress, models.JobStatusCompleted:
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown target status %q", to))
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	var (
		current    string
		customerID string
		workerID   sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT status, customer_id, worker_id
		FROM jobs
		WHERE id = $1
		FOR UPDATE`,
		jobID,
	).Scan(&current, &customerID, &workerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("job", fmt.Sprintf("jobId: %s", jobID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("load job: %w", err))
	}

	if actorID != customerID && (!workerID.Valid || actorID != workerID.String) {
		return nil, apperrors.NewForbiddenError("only job participants may change its status")
	}

	from := models.JobStatus(current)
	if allowedTransitions[from] != to {
		return nil, apperrors.NewInvalidStateError(
			"Invalid job status transition",
			fmt.Sprintf("jobId: %s, from: %s, to: %s", jobID, from, to))
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = $2, updated_at = now() WHERE id = $1`,
		jobID, to,
	); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("update job status: %w", err))
	}

	transition := &models.JobStatusTransition{
		ID:         uuid.New().String(),
		JobID:      jobID,
		FromStatus: from,
		ToStatus:   to,
		ActorID:    actorID,
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO job_status_log (id, job_id, from_status, to_status, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		transition.ID, transition.JobID, transition.FromStatus,
		transition.ToStatus, transition.ActorID, transition.CreatedAt,
	); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("append status log: %w", err))
	}

	if to == models.JobStatusCompleted && workerID.Valid {
		if _, err := tx.ExecContext(ctx, `
			UPDATE workers SET completed_jobs = completed_jobs + 1, updated_at = now()
			WHERE user_id = $1`,
			workerID.String,
		); err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("increment completed jobs: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("commit: %w", err))
	}

	t.logger.Info("job status changed", map[string]interface{}{
		"jobId": jobID,
		"from":  from,
		"to":    to,
	})

	return transition, nil
}
