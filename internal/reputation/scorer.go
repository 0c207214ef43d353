// Package reputation implements worker attendance scoring, the booking
// eligibility gate, and the assessment submission flow.
package reputation

import (
	"nearserve/internal/models"
)

// Reputation domain bounds. The booking threshold in gate.go is a separate
// constant and must never be conflated with the floor.
const (
	ReputationFloor   = -50
	ReputationCeiling = 100
)

// Category thresholds, evaluated highest-to-lowest. Exported so search
// surfaces can translate category filters into SQL against the same
// constants Categorize uses.
const (
	ThresholdTopRated         = 20
	ThresholdReliable         = 5
	ThresholdNeedsImprovement = 0
)

// Delta maps an attendance outcome to a reputation delta.
func Delta(assessmentType models.AssessmentType) int {
	switch assessmentType {
	case models.AssessmentOnTime:
		return 1
	case models.AssessmentLate:
		return 0
	case models.AssessmentNoShow:
		return -1
	}
	return 0
}

// ApplyDelta clamps current+delta into [ReputationFloor, ReputationCeiling].
// The effective recorded delta for audit purposes is the difference between
// the returned value and current, which may be smaller than delta at the bounds.
func ApplyDelta(current, delta int) int {
	next := current + delta
	if next > ReputationCeiling {
		return ReputationCeiling
	}
	if next < ReputationFloor {
		return ReputationFloor
	}
	return next
}

// Categorize derives the worker category from reputation and completed jobs.
// A worker with zero completed jobs is always NEW, whatever the score.
func Categorize(reputation, completedJobs int) models.WorkerCategory {
	if completedJobs == 0 {
		return models.CategoryNew
	}
	switch {
	case reputation >= ThresholdTopRated:
		return models.CategoryTopRated
	case reputation >= ThresholdReliable:
		return models.CategoryReliable
	case reputation >= ThresholdNeedsImprovement:
		return models.CategoryNeedsImprovement
	default:
		return models.CategoryLow
	}
}

// CategoryDescription returns the profile copy for a category.
func CategoryDescription(category models.WorkerCategory) string {
	switch category {
	case models.CategoryNew:
		return "New worker with no completed jobs yet"
	case models.CategoryTopRated:
		return "Consistently reliable, top-rated attendance"
	case models.CategoryReliable:
		return "Reliable attendance record"
	case models.CategoryNeedsImprovement:
		return "Attendance record needs improvement"
	case models.CategoryLow:
		return "Poor attendance record"
	}
	return ""
}

// AssessmentDescription returns the confirmation copy for an assessment outcome.
func AssessmentDescription(assessmentType models.AssessmentType) string {
	switch assessmentType {
	case models.AssessmentOnTime:
		return "Worker arrived on time, reputation increased"
	case models.AssessmentLate:
		return "Worker arrived late, reputation unchanged"
	case models.AssessmentNoShow:
		return "Worker did not show up, reputation decreased"
	}
	return ""
}
