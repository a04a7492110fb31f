package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/service"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// fakeUserService returns canned results per operation
type fakeUserService struct {
	keyResult service.APIKeyResult
	keyErr    error
}

func (f *fakeUserService) EnsureAPIKey(ctx context.Context, userID string) (service.APIKeyResult, error) {
	return f.keyResult, f.keyErr
}

func (f *fakeUserService) History(ctx context.Context, userID string) (service.HistoryResult, error) {
	return service.HistoryResult{History: []byte(`[]`), Message: "History fetched successfully"}, nil
}

func (f *fakeUserService) Stats(ctx context.Context, userID string) (service.StatsResult, error) {
	return service.StatsResult{Stats: []byte(`{"total_requests":5}`), Message: "Stats fetched successfully"}, nil
}

func generateKeyRequest(t *testing.T, svc service.UserService) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewUserHandler(svc, logger.New(logger.ERROR))
	router.POST("/api/v1/user/generate-api-key", handler.GenerateAPIKey)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/user/generate-api-key", nil))
	return w
}

func TestGenerateAPIKeyFirstIssue(t *testing.T) {
	svc := &fakeUserService{keyResult: service.APIKeyResult{APIKey: "ocr_abc", Created: true}}

	w := generateKeyRequest(t, svc)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"api_key":"ocr_abc","message":"API key generated successfully"}`, w.Body.String())
}

func TestGenerateAPIKeyExisting(t *testing.T) {
	svc := &fakeUserService{keyResult: service.APIKeyResult{APIKey: "ocr_abc", Created: false}}

	w := generateKeyRequest(t, svc)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"api_key":"ocr_abc","message":"API key already exists"}`, w.Body.String())
}

func TestGenerateAPIKeyRequiresPro(t *testing.T) {
	svc := &fakeUserService{keyErr: domain.ErrProRequired}

	w := generateKeyRequest(t, svc)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Pro subscription required")
}

func TestGenerateAPIKeyMissingProfile(t *testing.T) {
	svc := &fakeUserService{keyErr: domain.NewNotFoundError("profile", "user-1")}

	w := generateKeyRequest(t, svc)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
