package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/metrics"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// BackendReader fetches the keyed read-only surfaces of the OCR backend.
// Implemented by ocrbackend.Client; faked in tests.
type BackendReader interface {
	History(ctx context.Context, apiKey string) (json.RawMessage, error)
	Stats(ctx context.Context, apiKey string) (json.RawMessage, error)
}

// APIKeyResult is the outcome of EnsureAPIKey
type APIKeyResult struct {
	APIKey  string
	Created bool
}

// HistoryResult is the dashboard history payload. Degraded responses
// carry an empty history plus an explanatory message, never an error.
type HistoryResult struct {
	History json.RawMessage `json:"history"`
	Message string          `json:"message"`
}

// StatsResult is the dashboard stats payload
type StatsResult struct {
	Stats   json.RawMessage `json:"stats"`
	Message string          `json:"message"`
}

// emptyStats is what the dashboard renders when the backend is
// unreachable or the user has no key yet
var emptyStats = json.RawMessage(`{"total_requests":0,"successful_requests":0,"failed_requests":0,"total_pages_processed":0,"avg_processing_time_ms":0}`)

// UserService covers the authenticated dashboard operations: API key
// issuance and the backend pass-throughs.
type UserService interface {
	// EnsureAPIKey returns the user's OCR API key, issuing one on first
	// call. Requires an active pro subscription. Idempotent: a stored key
	// is returned unchanged, never rotated.
	EnsureAPIKey(ctx context.Context, userID string) (APIKeyResult, error)

	// History returns the user's OCR request history, degrading to an
	// empty payload when no key exists or the backend is unreachable
	History(ctx context.Context, userID string) (HistoryResult, error)

	// Stats returns the user's OCR usage stats with the same degradation
	Stats(ctx context.Context, userID string) (StatsResult, error)
}

type userService struct {
	entitlements repository.EntitlementRepository
	keys         KeyIssuer
	backend      BackendReader
	metrics      metrics.BillingMetrics
	log          *logger.Logger
}

// NewUserService creates a new user service
func NewUserService(
	entitlements repository.EntitlementRepository,
	keys KeyIssuer,
	backend BackendReader,
	m metrics.BillingMetrics,
	log *logger.Logger,
) UserService {
	return &userService{
		entitlements: entitlements,
		keys:         keys,
		backend:      backend,
		metrics:      m,
		log:          log,
	}
}

// EnsureAPIKey returns the stored key or issues a new one
func (s *userService) EnsureAPIKey(ctx context.Context, userID string) (APIKeyResult, error) {
	profile, err := s.entitlements.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return APIKeyResult{}, domain.NewNotFoundError("profile", userID)
		}
		return APIKeyResult{}, err
	}

	if profile.EffectiveTier(time.Now()) != domain.TierPro {
		return APIKeyResult{}, domain.ErrProRequired
	}

	if profile.APIKey != "" {
		return APIKeyResult{APIKey: profile.APIKey, Created: false}, nil
	}

	issued, err := s.keys.IssueKey(ctx, keyName(profile, userID))
	if err != nil {
		s.metrics.IncKeyIssuance("failed")
		return APIKeyResult{}, err
	}

	// Store only after the issuance fully succeeded; no partial state
	update := domain.EntitlementUpdate{
		APIKey:   &issued.APIKey,
		APIKeyID: &issued.ID,
	}
	if err := s.entitlements.Upsert(ctx, userID, update); err != nil {
		return APIKeyResult{}, err
	}

	s.metrics.IncKeyIssuance("issued")
	s.log.Infow("API key issued", "user_id", userID)

	return APIKeyResult{APIKey: issued.APIKey, Created: true}, nil
}

// History returns the user's request history
func (s *userService) History(ctx context.Context, userID string) (HistoryResult, error) {
	apiKey, ok, err := s.activeKey(ctx, userID)
	if err != nil {
		return HistoryResult{}, err
	}
	if !ok {
		return HistoryResult{
			History: json.RawMessage(`[]`),
			Message: "No active subscription or API key",
		}, nil
	}

	history, err := s.backend.History(ctx, apiKey)
	if err != nil {
		s.log.Warnw("History fetch failed, returning empty history", "user_id", userID, "error", err)
		return HistoryResult{
			History: json.RawMessage(`[]`),
			Message: "Could not fetch history from OCR API",
		}, nil
	}

	return HistoryResult{History: history, Message: "History fetched successfully"}, nil
}

// Stats returns the user's usage stats
func (s *userService) Stats(ctx context.Context, userID string) (StatsResult, error) {
	apiKey, ok, err := s.activeKey(ctx, userID)
	if err != nil {
		return StatsResult{}, err
	}
	if !ok {
		return StatsResult{
			Stats:   emptyStats,
			Message: "No active subscription or API key",
		}, nil
	}

	stats, err := s.backend.Stats(ctx, apiKey)
	if err != nil {
		s.log.Warnw("Stats fetch failed, returning empty stats", "user_id", userID, "error", err)
		return StatsResult{
			Stats:   emptyStats,
			Message: "Could not fetch stats from OCR API",
		}, nil
	}

	return StatsResult{Stats: stats, Message: "Stats fetched successfully"}, nil
}

// activeKey returns the user's API key when the subscription is active
// and a key exists. A missing profile reports not-found; anything else
// degrades instead of erroring.
func (s *userService) activeKey(ctx context.Context, userID string) (string, bool, error) {
	profile, err := s.entitlements.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", false, domain.NewNotFoundError("profile", userID)
		}
		return "", false, err
	}

	if profile.EffectiveTier(time.Now()) != domain.TierPro || profile.APIKey == "" {
		return "", false, nil
	}
	return profile.APIKey, true, nil
}
