package httptransport

import (
	"encoding/json"
	"net/http"

	apperrors "nearserve/internal/common/errors"
)

type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStdError renders a StandardError with its mapped HTTP status.
func writeStdError(w http.ResponseWriter, err error) {
	stdErr := apperrors.FromError(err)
	writeJSON(w, apperrors.HTTPStatus(stdErr.Code), apiError{
		Success: false,
		Error:   stdErr.Message,
		Code:    string(stdErr.Code),
		Details: stdErr.Details,
	})
}
