// Package search implements the worker browse/search surface with
// reputation-based filters.
package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	apperrors "nearserve/internal/common/errors"
	"nearserve/internal/common/logger"
	"nearserve/internal/models"
	"nearserve/internal/reputation"
)

// Filters are the supported worker search parameters.
type Filters struct {
	MinReputation  *int
	Category       models.WorkerCategory
	ServiceArea    string
	HideIneligible bool
	Limit          int
}

// Result is one worker row in the search response. Category and bookability
// come from the canonical reputation functions so browse surfaces never
// re-derive thresholds.
type Result struct {
	WorkerID      string                `json:"workerId"`
	FullName      string                `json:"fullName"`
	ServiceArea   string                `json:"serviceArea,omitempty"`
	Reputation    int                   `json:"reputation"`
	CompletedJobs int                   `json:"completedJobs"`
	Category      models.WorkerCategory `json:"category"`
	IsBookable    bool                  `json:"isBookable"`
}

const defaultLimit = 50

type Service struct {
	db     *sql.DB
	logger logger.Logger
}

func NewService(db *sql.DB, log logger.Logger) *Service {
	return &Service{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "search"}),
	}
}

// Search returns workers matching the filters, highest reputation first.
// All filters, the category one included, run in SQL so the LIMIT applies
// after filtering; a category is a pure function of reputation and
// completed_jobs, so it translates into range predicates on those columns.
func (s *Service) Search(ctx context.Context, filters Filters) ([]Result, error) {
	if filters.Category != "" && !validCategory(filters.Category) {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("unknown category %q", filters.Category))
	}

	limit := filters.Limit
	if limit <= 0 || limit > defaultLimit {
		limit = defaultLimit
	}

	conditions := []string{"u.role = 'worker'"}
	args := []interface{}{}

	if filters.MinReputation != nil {
		args = append(args, *filters.MinReputation)
		conditions = append(conditions, fmt.Sprintf("w.reputation >= $%d", len(args)))
	}
	if filters.HideIneligible {
		args = append(args, reputation.BookingThreshold)
		conditions = append(conditions, fmt.Sprintf("w.reputation >= $%d", len(args)))
	}
	if filters.ServiceArea != "" {
		args = append(args, "%"+filters.ServiceArea+"%")
		conditions = append(conditions, fmt.Sprintf("w.service_area ILIKE $%d", len(args)))
	}
	if filters.Category != "" {
		predicate, categoryArgs := categoryPredicate(filters.Category, len(args))
		args = append(args, categoryArgs...)
		conditions = append(conditions, predicate)
	}

	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT u.id, u.full_name, COALESCE(w.service_area, ''), w.reputation, w.completed_jobs
		FROM workers w
		JOIN users u ON u.id = w.user_id
		WHERE %s
		ORDER BY w.reputation DESC, w.completed_jobs DESC
		LIMIT $%d`,
		strings.Join(conditions, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("worker search: %w", err))
	}
	defer rows.Close()

	results := []Result{}
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.WorkerID, &r.FullName, &r.ServiceArea, &r.Reputation, &r.CompletedJobs); err != nil {
			return nil, apperrors.NewInternalError(fmt.Errorf("scan worker: %w", err))
		}

		r.Category = reputation.Categorize(r.Reputation, r.CompletedJobs)
		r.IsBookable = reputation.CanBeBooked(r.Reputation).Allowed
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError(fmt.Errorf("worker search rows: %w", err))
	}

	return results, nil
}

// categoryPredicate translates a worker category into SQL range predicates
// over reputation and completed_jobs, parameterized with the canonical
// threshold constants. offset is the number of placeholders already bound.
// Categorize stays the single source for the rendered label; this only
// mirrors its boundaries so filtering happens before the LIMIT.
func categoryPredicate(c models.WorkerCategory, offset int) (string, []interface{}) {
	switch c {
	case models.CategoryNew:
		return "w.completed_jobs = 0", nil
	case models.CategoryTopRated:
		return fmt.Sprintf("w.completed_jobs > 0 AND w.reputation >= $%d", offset+1),
			[]interface{}{reputation.ThresholdTopRated}
	case models.CategoryReliable:
		return fmt.Sprintf("w.completed_jobs > 0 AND w.reputation >= $%d AND w.reputation < $%d", offset+1, offset+2),
			[]interface{}{reputation.ThresholdReliable, reputation.ThresholdTopRated}
	case models.CategoryNeedsImprovement:
		return fmt.Sprintf("w.completed_jobs > 0 AND w.reputation >= $%d AND w.reputation < $%d", offset+1, offset+2),
			[]interface{}{reputation.ThresholdNeedsImprovement, reputation.ThresholdReliable}
	default:
		return fmt.Sprintf("w.completed_jobs > 0 AND w.reputation < $%d", offset+1),
			[]interface{}{reputation.ThresholdNeedsImprovement}
	}
}

func validCategory(c models.WorkerCategory) bool {
	switch c {
	case models.CategoryNew, models.CategoryTopRated, models.CategoryReliable,
		models.CategoryNeedsImprovement, models.CategoryLow:
		return true
	}
	return false
}
