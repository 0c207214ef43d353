package httptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	apperrors "nearserve/internal/common/errors"
	"nearserve/internal/common/logger"
	"nearserve/internal/common/metrics"
	"nearserve/internal/common/validation"
	"nearserve/internal/models"
	"nearserve/internal/reputation"
	"nearserve/internal/search"
)

// ReputationService is the assessment and profile surface consumed by handlers.
type ReputationService interface {
	SubmitAssessment(ctx context.Context, jobID string, assessmentType models.AssessmentType, customerID string) (*reputation.AssessmentResult, error)
	WorkerReputation(ctx context.Context, workerID string) (*reputation.Profile, error)
}

// SearchService is the worker browse surface consumed by handlers.
type SearchService interface {
	Search(ctx context.Context, filters search.Filters) ([]search.Result, error)
}

// JobTracker records booking lifecycle transitions.
type JobTracker interface {
	Transition(ctx context.Context, jobID string, to models.JobStatus, actorID string) (*models.JobStatusTransition, error)
}

type Handler struct {
	reputation ReputationService
	search     SearchService
	jobs       JobTracker
	logger     logger.Logger
}

func NewHandler(reputationSvc ReputationService, searchSvc SearchService, jobTracker JobTracker, log logger.Logger) *Handler {
	return &Handler{
		reputation: reputationSvc,
		search:     searchSvc,
		jobs:       jobTracker,
		logger:     log.WithFields(map[string]interface{}{"component": "http"}),
	}
}

func assessmentInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"jobId", "assessmentType"},
		Properties: map[string]validation.Property{
			"jobId": {
				Type:        "string",
				Description: "Identifier of the completed job",
				MinLength:   intPtr(1),
				MaxLength:   intPtr(64),
			},
			"assessmentType": {
				Type:        "string",
				Description: "Attendance outcome reported by the customer",
				Enum:        []string{"ON_TIME", "LATE", "NO_SHOW"},
			},
		},
	}
}

type submitAssessmentResp struct {
	Success          bool                  `json:"success"`
	Message          string                `json:"message"`
	AssessmentType   models.AssessmentType `json:"assessmentType"`
	ReputationChange int                   `json:"reputationChange"`
	Description      string                `json:"description"`
}

// SubmitAssessment handles POST /reputation/assessment.
func (h *Handler) SubmitAssessment(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStdError(w, apperrors.NewValidationError("invalid JSON body"))
		return
	}

	if result := validation.ValidateInput(body, assessmentInputSchema()); !result.Valid {
		metrics.AssessmentsRejected.WithLabelValues(string(apperrors.ErrCodeValidation)).Inc()
		writeStdError(w, apperrors.NewValidationError(result.ErrorSummary()))
		return
	}

	jobID, _ := body["jobId"].(string)
	assessmentType, _ := body["assessmentType"].(string)

	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeStdError(w, apperrors.NewUnauthenticatedError("no session in context"))
		return
	}

	result, err := h.reputation.SubmitAssessment(r.Context(), jobID, models.AssessmentType(assessmentType), session.UserID)
	if err != nil {
		stdErr := apperrors.FromError(err)
		metrics.AssessmentsRejected.WithLabelValues(string(stdErr.Code)).Inc()
		writeStdError(w, stdErr)
		return
	}

	writeJSON(w, http.StatusOK, submitAssessmentResp{
		Success:          true,
		Message:          "Assessment recorded",
		AssessmentType:   result.AssessmentType,
		ReputationChange: result.ReputationChange,
		Description:      result.Description,
	})
}

type workerReputationResp struct {
	Success bool `json:"success"`
	*reputation.Profile
}

// GetWorkerReputation handles GET /workers/{workerId}/reputation. Public.
func (h *Handler) GetWorkerReputation(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerId")

	profile, err := h.reputation.WorkerReputation(r.Context(), workerID)
	if err != nil {
		writeStdError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, workerReputationResp{Success: true, Profile: profile})
}

type searchWorkersResp struct {
	Success bool            `json:"success"`
	Workers []search.Result `json:"workers"`
}

// SearchWorkers handles GET /workers/search. Public.
func (h *Handler) SearchWorkers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := search.Filters{
		Category:    models.WorkerCategory(q.Get("category")),
		ServiceArea: q.Get("serviceArea"),
	}

	if raw := q.Get("minReputation"); raw != "" {
		min, err := strconv.Atoi(raw)
		if err != nil {
			writeStdError(w, apperrors.NewValidationError(
				fmt.Sprintf("minReputation must be an integer; got %q", raw)))
			return
		}
		filters.MinReputation = &min
	}
	if raw := q.Get("hideIneligible"); raw != "" {
		hide, err := strconv.ParseBool(raw)
		if err != nil {
			writeStdError(w, apperrors.NewValidationError(
				fmt.Sprintf("hideIneligible must be a boolean; got %q", raw)))
			return
		}
		filters.HideIneligible = hide
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeStdError(w, apperrors.NewValidationError(
				fmt.Sprintf("limit must be an integer; got %q", raw)))
			return
		}
		filters.Limit = limit
	}

	results, err := h.search.Search(r.Context(), filters)
	if err != nil {
		writeStdError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchWorkersResp{Success: true, Workers: results})
}

type updateJobStatusDTO struct {
	Status models.JobStatus `json:"status"`
}

type updateJobStatusResp struct {
	Success    bool             `json:"success"`
	JobID      string           `json:"jobId"`
	FromStatus models.JobStatus `json:"fromStatus"`
	ToStatus   models.JobStatus `json:"toStatus"`
}

// UpdateJobStatus handles POST /jobs/{jobId}/status. Authenticated; the
// caller must be a participant of the job.
func (h *Handler) UpdateJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	var dto updateJobStatusDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeStdError(w, apperrors.NewValidationError("invalid JSON body"))
		return
	}

	session, ok := SessionFromContext(r.Context())
	if !ok {
		writeStdError(w, apperrors.NewUnauthenticatedError("no session in context"))
		return
	}

	transition, err := h.jobs.Transition(r.Context(), jobID, dto.Status, session.UserID)
	if err != nil {
		writeStdError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, updateJobStatusResp{
		Success:    true,
		JobID:      transition.JobID,
		FromStatus: transition.FromStatus,
		ToStatus:   transition.ToStatus,
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intPtr(v int) *int {
	return &v
}
