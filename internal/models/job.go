package models

import "time"

// JobStatus is the lifecycle state of a booking.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusAccepted   JobStatus = "ACCEPTED"
	JobStatusInProgress JobStatus = "IN_PROGRESS"
	JobStatusCompleted  JobStatus = "COMPLETED"
)

// Job represents a booking between a customer and a worker.
type Job struct {
	ID                       string         `json:"id" db:"id"`
	CustomerID               string         `json:"customerId" db:"customer_id"`
	WorkerID                 string         `json:"workerId,omitempty" db:"worker_id"`
	Title                    string         `json:"title" db:"title"`
	Status                   JobStatus      `json:"status" db:"status"`
	ReputationAssessed       bool           `json:"reputationAssessed" db:"reputation_assessed"`
	ReputationAssessmentType AssessmentType `json:"reputationAssessmentType,omitempty" db:"reputation_assessment_type"`
	CreatedAt                time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt                time.Time      `json:"updatedAt" db:"updated_at"`
}

// JobStatusTransition is one recorded lifecycle change.
type JobStatusTransition struct {
	ID         string    `json:"id" db:"id"`
	JobID      string    `json:"jobId" db:"job_id"`
	FromStatus JobStatus `json:"fromStatus,omitempty" db:"from_status"`
	ToStatus   JobStatus `json:"toStatus" db:"to_status"`
	ActorID    string    `json:"actorId,omitempty" db:"actor_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
