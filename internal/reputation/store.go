package reputation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"nearserve/internal/models"
)

// ErrWorkerNotFound is returned by lookups that require an existing worker row.
var ErrWorkerNotFound = errors.New("worker not found")

// Querier is satisfied by *sql.DB and *sql.Tx so store writes can run inside
// the assessment transaction.
type Querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Store persists worker reputation values and the append-only audit log.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetReputation returns the current reputation for a worker. Absence of a
// worker row is treated as a fresh worker with score 0, not an error.
func (s *Store) GetReputation(ctx context.Context, workerID string) (int, error) {
	var score int
	err := s.db.QueryRowContext(ctx,
		`SELECT reputation FROM workers WHERE user_id = $1`, workerID).Scan(&score)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get reputation: %w", err)
	}
	return score, nil
}

// GetWorker returns the reputation and completed job count for a worker,
// or ErrWorkerNotFound when no profile row exists.
func (s *Store) GetWorker(ctx context.Context, workerID string) (reputation int, completedJobs int, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT reputation, completed_jobs FROM workers WHERE user_id = $1`,
		workerID).Scan(&reputation, &completedJobs)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrWorkerNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("get worker: %w", err)
	}
	return reputation, completedJobs, nil
}

// ApplyDelta mutates the worker's reputation by delta, clamped to the domain
// interval, in a single UPDATE. Concurrent assessments against the same
// worker serialize on the row lock, so updates are never lost. Returns the
// previous and new scores.
func (s *Store) ApplyDelta(ctx context.Context, q Querier, workerID string, delta int) (previous int, current int, err error) {
	err = q.QueryRowContext(ctx, `
		UPDATE workers w
		SET reputation = LEAST($3, GREATEST($4, w.reputation + $2)),
		    updated_at = now()
		FROM (SELECT user_id, reputation AS prev FROM workers WHERE user_id = $1 FOR UPDATE) old
		WHERE w.user_id = old.user_id
		RETURNING old.prev, w.reputation`,
		workerID, delta, ReputationCeiling, ReputationFloor,
	).Scan(&previous, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, ErrWorkerNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("apply reputation delta: %w", err)
	}
	return previous, current, nil
}

// AppendLog inserts an immutable audit record. Failures propagate to the
// caller; they are never swallowed.
func (s *Store) AppendLog(ctx context.Context, q Querier, entry models.ReputationLogEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO reputation_log (
			id, worker_id, customer_id, job_id, change, reason,
			assessment_type, previous_reputation, new_reputation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID,
		entry.WorkerID,
		entry.CustomerID,
		entry.JobID,
		entry.Change,
		entry.Reason,
		entry.AssessmentType,
		entry.PreviousReputation,
		entry.NewReputation,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append reputation log: %w", err)
	}
	return nil
}

// History returns the worker's reputation log entries, newest first.
func (s *Store) History(ctx context.Context, workerID string, limit int) ([]models.ReputationLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, customer_id, job_id, change, reason,
		       assessment_type, previous_reputation, new_reputation, created_at
		FROM reputation_log
		WHERE worker_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		workerID, limit)
	if err != nil {
		return nil, fmt.Errorf("reputation history: %w", err)
	}
	defer rows.Close()

	var entries []models.ReputationLogEntry
	for rows.Next() {
		var e models.ReputationLogEntry
		if err := rows.Scan(
			&e.ID, &e.WorkerID, &e.CustomerID, &e.JobID, &e.Change, &e.Reason,
			&e.AssessmentType, &e.PreviousReputation, &e.NewReputation, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reputation log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reputation history rows: %w", err)
	}
	return entries, nil
}

// Stats derives reputation statistics from the workers row and the log.
func (s *Store) Stats(ctx context.Context, workerID string) (models.ReputationStats, error) {
	var stats models.ReputationStats
	err := s.db.QueryRowContext(ctx,
		`SELECT completed_jobs FROM workers WHERE user_id = $1`,
		workerID).Scan(&stats.CompletedJobs)
	if errors.Is(err, sql.ErrNoRows) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("reputation stats: %w", err)
	}

	var assessed, onTime int
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE assessment_type = $2),
		       COUNT(*) FILTER (WHERE assessment_type = $3)
		FROM reputation_log
		WHERE worker_id = $1 AND reason = $4`,
		workerID, models.AssessmentOnTime, models.AssessmentNoShow,
		models.ReasonAttendanceAssessment,
	).Scan(&assessed, &onTime, &stats.TotalNoShows)
	if err != nil {
		return stats, fmt.Errorf("reputation stats aggregate: %w", err)
	}

	if assessed > 0 {
		stats.SuccessRate = float64(onTime) / float64(assessed)
	}
	return stats, nil
}
