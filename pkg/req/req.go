package req

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
	"github.com/ocrpur/ocr-gateway/pkg/res"
)

// Decode decodes JSON from an io.ReadCloser into a value of type T.
func Decode[T any](body io.ReadCloser) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid validates a value of type T against its validate tags.
func IsValid[T any](payload T) error {
	validate := validator.New()
	return validate.Struct(payload)
}

// HandleBody decodes, validates and returns the request body.
func HandleBody[T any](w http.ResponseWriter, r *http.Request, log *logger.Logger) (*T, error) {
	body, err := Decode[T](r.Body)
	if err != nil {
		log.Errorw("failed to decode request body", "error", err)
		res.JsonResponse(w, res.ErrorResponse{Error: "malformed request body"}, http.StatusUnprocessableEntity)
		return nil, err
	}

	if err := IsValid(body); err != nil {
		log.Errorw("request body validation failed", "error", err)
		res.JsonResponse(w, res.ErrorResponse{Error: "invalid request data"}, http.StatusUnprocessableEntity)
		return nil, err
	}
	return &body, nil
}
