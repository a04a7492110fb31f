package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/metrics"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// fakeBackendReader serves canned history/stats payloads
type fakeBackendReader struct {
	history json.RawMessage
	stats   json.RawMessage
	err     error
	lastKey string
}

func (f *fakeBackendReader) History(ctx context.Context, apiKey string) (json.RawMessage, error) {
	f.lastKey = apiKey
	return f.history, f.err
}

func (f *fakeBackendReader) Stats(ctx context.Context, apiKey string) (json.RawMessage, error) {
	f.lastKey = apiKey
	return f.stats, f.err
}

type userServiceFixture struct {
	service      UserService
	entitlements *repository.InMemoryEntitlementRepository
	keys         *fakeKeyIssuer
	backend      *fakeBackendReader
}

func newUserServiceFixture(t *testing.T) *userServiceFixture {
	t.Helper()
	log := logger.New(logger.ERROR)
	entitlements := repository.NewInMemoryEntitlementRepository(log)
	keys := &fakeKeyIssuer{}
	backend := &fakeBackendReader{}
	m := metrics.NewBillingMetrics(prometheus.NewRegistry(), log)

	return &userServiceFixture{
		service:      NewUserService(entitlements, keys, backend, m, log),
		entitlements: entitlements,
		keys:         keys,
		backend:      backend,
	}
}

func (f *userServiceFixture) seedPro(userID, apiKey string) {
	expiry := time.Now().Add(24 * time.Hour)
	f.entitlements.Seed(domain.EntitlementRecord{
		UserID:                userID,
		Email:                 userID + "@example.com",
		Tier:                  domain.TierPro,
		SubscriptionExpiresAt: &expiry,
		APIKey:                apiKey,
	})
}

func TestEnsureAPIKeyMissingProfile(t *testing.T) {
	f := newUserServiceFixture(t)

	_, err := f.service.EnsureAPIKey(context.Background(), "no-such-user")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnsureAPIKeyRequiresPro(t *testing.T) {
	f := newUserServiceFixture(t)
	f.entitlements.Seed(domain.EntitlementRecord{UserID: "free-user", Tier: domain.TierFree})

	_, err := f.service.EnsureAPIKey(context.Background(), "free-user")
	require.ErrorIs(t, err, domain.ErrProRequired)
	assert.Equal(t, 0, f.keys.calls)
}

func TestEnsureAPIKeyExpiredProRejected(t *testing.T) {
	f := newUserServiceFixture(t)
	expiry := time.Now().Add(-time.Hour)
	f.entitlements.Seed(domain.EntitlementRecord{
		UserID:                "lapsed-user",
		Tier:                  domain.TierPro,
		SubscriptionExpiresAt: &expiry,
	})

	_, err := f.service.EnsureAPIKey(context.Background(), "lapsed-user")
	require.ErrorIs(t, err, domain.ErrProRequired)
}

func TestEnsureAPIKeyIdempotent(t *testing.T) {
	f := newUserServiceFixture(t)
	f.seedPro("pro-user", "")
	ctx := context.Background()

	first, err := f.service.EnsureAPIKey(ctx, "pro-user")
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.APIKey)

	second, err := f.service.EnsureAPIKey(ctx, "pro-user")
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.APIKey, second.APIKey)

	assert.Equal(t, 1, f.keys.calls)
}

func TestEnsureAPIKeyIssuanceFailureLeavesNoState(t *testing.T) {
	f := newUserServiceFixture(t)
	f.seedPro("pro-user", "")
	f.keys.err = errors.New("admin endpoint unreachable")

	_, err := f.service.EnsureAPIKey(context.Background(), "pro-user")
	require.Error(t, err)

	record, err := f.entitlements.GetByUserID(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.Empty(t, record.APIKey)
}

func TestHistoryWithoutKeyDegrades(t *testing.T) {
	f := newUserServiceFixture(t)
	f.entitlements.Seed(domain.EntitlementRecord{UserID: "free-user", Tier: domain.TierFree})

	result, err := f.service.History(context.Background(), "free-user")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(result.History))
	assert.Equal(t, "No active subscription or API key", result.Message)
}

func TestHistoryBackendFailureDegrades(t *testing.T) {
	f := newUserServiceFixture(t)
	f.seedPro("pro-user", "ocr_key_1")
	f.backend.err = errors.New("backend down")

	result, err := f.service.History(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(result.History))
	assert.Equal(t, "Could not fetch history from OCR API", result.Message)
}

func TestHistoryPassesThroughBackendPayload(t *testing.T) {
	f := newUserServiceFixture(t)
	f.seedPro("pro-user", "ocr_key_1")
	f.backend.history = json.RawMessage(`[{"id":"req-1","pages":3}]`)

	result, err := f.service.History(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"req-1","pages":3}]`, string(result.History))
	assert.Equal(t, "History fetched successfully", result.Message)
	assert.Equal(t, "ocr_key_1", f.backend.lastKey)
}

func TestStatsBackendFailureDegrades(t *testing.T) {
	f := newUserServiceFixture(t)
	f.seedPro("pro-user", "ocr_key_1")
	f.backend.err = errors.New("backend down")

	result, err := f.service.Stats(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.Equal(t, "Could not fetch stats from OCR API", result.Message)

	var stats map[string]any
	require.NoError(t, json.Unmarshal(result.Stats, &stats))
	assert.EqualValues(t, 0, stats["total_requests"])
}

func TestStatsPassesThroughBackendPayload(t *testing.T) {
	f := newUserServiceFixture(t)
	f.seedPro("pro-user", "ocr_key_1")
	f.backend.stats = json.RawMessage(`{"total_requests":42}`)

	result, err := f.service.Stats(context.Background(), "pro-user")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total_requests":42}`, string(result.Stats))
	assert.Equal(t, "Stats fetched successfully", result.Message)
}
