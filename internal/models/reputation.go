package models

import "time"

// AssessmentType is a customer's attendance report for a completed job.
type AssessmentType string

const (
	AssessmentOnTime AssessmentType = "ON_TIME"
	AssessmentLate   AssessmentType = "LATE"
	AssessmentNoShow AssessmentType = "NO_SHOW"
)

// IsValid reports whether the assessment type is one of the allowed values.
func (a AssessmentType) IsValid() bool {
	switch a {
	case AssessmentOnTime, AssessmentLate, AssessmentNoShow:
		return true
	}
	return false
}

// WorkerCategory is the derived reputation label shown on worker profiles.
type WorkerCategory string

const (
	CategoryNew              WorkerCategory = "NEW"
	CategoryTopRated         WorkerCategory = "TOP_RATED"
	CategoryReliable         WorkerCategory = "RELIABLE"
	CategoryNeedsImprovement WorkerCategory = "NEEDS_IMPROVEMENT"
	CategoryLow              WorkerCategory = "LOW"
)

// ReasonAttendanceAssessment tags reputation log entries produced by assessments.
const ReasonAttendanceAssessment = "ATTENDANCE_ASSESSMENT"

// ReputationLogEntry is one immutable audit record of a reputation change.
type ReputationLogEntry struct {
	ID                 string         `json:"id" db:"id"`
	WorkerID           string         `json:"workerId" db:"worker_id"`
	CustomerID         string         `json:"customerId" db:"customer_id"`
	JobID              string         `json:"jobId" db:"job_id"`
	Change             int            `json:"change" db:"change"`
	Reason             string         `json:"reason" db:"reason"`
	AssessmentType     AssessmentType `json:"assessmentType" db:"assessment_type"`
	PreviousReputation int            `json:"previousReputation" db:"previous_reputation"`
	NewReputation      int            `json:"newReputation" db:"new_reputation"`
	CreatedAt          time.Time      `json:"createdAt" db:"created_at"`
}

// ReputationStats are derived counters for a worker profile.
type ReputationStats struct {
	CompletedJobs int     `json:"completedJobs"`
	TotalNoShows  int     `json:"totalNoShows"`
	SuccessRate   float64 `json:"successRate"`
}
