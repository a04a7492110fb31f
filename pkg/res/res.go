package res

import (
	"encoding/json"
	"net/http"

	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// ErrorResponse is the JSON shape for error replies.
type ErrorResponse struct {
	Error     string `json:"error"`                // user-facing message
	ErrorCode int    `json:"error_code,omitempty"` // machine-readable code
	Details   any    `json:"details,omitempty"`    // e.g. validation errors
}

// JsonResponse writes a JSON response with the given status.
func JsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// JsonErrorResponse writes a JSON error response and logs it.
func JsonErrorResponse(w http.ResponseWriter, errResponse ErrorResponse, status int, log *logger.Logger) {
	JsonResponse(w, errResponse, status)
	log.Warnw("request failed", "status", status, "error", errResponse.Error)
}
