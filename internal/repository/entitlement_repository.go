package repository

import (
	"context"
	"sync"
	"time"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// EntitlementRepository is the narrow surface the core logic needs from
// the entitlement store. Scan counting must be atomic at the storage
// layer; everything else is plain get/partial-update.
type EntitlementRepository interface {
	// GetByUserID returns the entitlement record for a user
	GetByUserID(ctx context.Context, userID string) (domain.EntitlementRecord, error)

	// Upsert applies a partial, last-write-wins update, creating the
	// record with free-tier defaults when it does not exist yet
	Upsert(ctx context.Context, userID string, update domain.EntitlementUpdate) error

	// IncrementScanCount atomically increments the scan counter for the
	// current UTC day window and returns the new count. Never a
	// read-modify-write in application code.
	IncrementScanCount(ctx context.Context, userID string) (int, error)
}

// InMemoryEntitlementRepository keeps entitlement records in memory.
// Used by tests and local development.
type InMemoryEntitlementRepository struct {
	records map[string]domain.EntitlementRecord
	mutex   sync.RWMutex
	log     *logger.Logger
}

// NewInMemoryEntitlementRepository creates a new in-memory entitlement repository
func NewInMemoryEntitlementRepository(log *logger.Logger) *InMemoryEntitlementRepository {
	return &InMemoryEntitlementRepository{
		records: make(map[string]domain.EntitlementRecord),
		log:     log,
	}
}

// Seed inserts a record verbatim; test helper.
func (r *InMemoryEntitlementRepository) Seed(record domain.EntitlementRecord) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.records[record.UserID] = record
}

// GetByUserID returns the entitlement record for a user
func (r *InMemoryEntitlementRepository) GetByUserID(ctx context.Context, userID string) (domain.EntitlementRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, exists := r.records[userID]
	if !exists {
		return domain.EntitlementRecord{}, ErrNotFound
	}

	return record, nil
}

// Upsert applies a partial update, creating the record when missing
func (r *InMemoryEntitlementRepository) Upsert(ctx context.Context, userID string, update domain.EntitlementUpdate) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.records[userID]
	if !exists {
		record = domain.EntitlementRecord{
			UserID:    userID,
			Tier:      domain.TierFree,
			CreatedAt: time.Now(),
		}
	}

	if update.Tier != nil {
		record.Tier = *update.Tier
	}
	if update.SubscriptionExpiresAt != nil {
		record.SubscriptionExpiresAt = update.SubscriptionExpiresAt
	}
	if update.ScanCount != nil {
		record.ScanCount = *update.ScanCount
		record.ScanCountDate = dayStart(time.Now())
	}
	if update.APIKey != nil {
		record.APIKey = *update.APIKey
	}
	if update.APIKeyID != nil {
		record.APIKeyID = *update.APIKeyID
	}
	record.UpdatedAt = time.Now()

	r.records[userID] = record
	return nil
}

// IncrementScanCount atomically increments the scan counter, rolling the
// daily window forward when the stored count belongs to a previous day
func (r *InMemoryEntitlementRepository) IncrementScanCount(ctx context.Context, userID string) (int, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	today := dayStart(time.Now())

	record, exists := r.records[userID]
	if !exists {
		record = domain.EntitlementRecord{
			UserID:    userID,
			Tier:      domain.TierFree,
			CreatedAt: time.Now(),
		}
	}

	if record.ScanCountDate.Before(today) {
		record.ScanCount = 1
		record.ScanCountDate = today
	} else {
		record.ScanCount++
	}
	record.UpdatedAt = time.Now()

	r.records[userID] = record
	return record.ScanCount, nil
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
