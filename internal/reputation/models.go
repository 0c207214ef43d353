package reputation

import "nearserve/internal/models"

// AssessmentResult is the outcome of a successful assessment submission.
type AssessmentResult struct {
	AssessmentType   models.AssessmentType `json:"assessmentType"`
	ReputationChange int                   `json:"reputationChange"`
	NewReputation    int                   `json:"newReputation"`
	Description      string                `json:"description"`
}

// ProfileSummary is the reputation block of a worker profile.
type ProfileSummary struct {
	Score                    int                   `json:"score"`
	Category                 models.WorkerCategory `json:"category"`
	Description              string                `json:"description"`
	IsBookable               bool                  `json:"isBookable"`
	BookingRestrictionReason string                `json:"bookingRestrictionReason,omitempty"`
}

// HistoryItem is one audit entry rendered for the profile view.
type HistoryItem struct {
	ID          string `json:"id"`
	Change      int    `json:"change"`
	Reason      string `json:"reason"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// Profile is the full reputation view for a worker.
type Profile struct {
	WorkerID   string                 `json:"workerId"`
	Reputation ProfileSummary         `json:"reputation"`
	Stats      models.ReputationStats `json:"stats"`
	History    []HistoryItem          `json:"history"`
}
