package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/kafka/producer"
	"github.com/ocrpur/ocr-gateway/internal/metrics"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// GuestCounter is the client-owned scan counter for anonymous callers.
// The gateway does not own or trust this state; it is injected by the
// transport layer (a signed cookie, a device-local store behind an
// endpoint, ...). Clearing it resets the guest allowance, which is an
// accepted limitation.
type GuestCounter interface {
	// Get returns the current guest scan count
	Get(ctx context.Context) (int, error)

	// Increment adds one scan to the guest counter
	Increment(ctx context.Context) error
}

// ScanGate is the single admission-control point for OCR scans
type ScanGate interface {
	// CheckScanLimit decides whether the caller may scan right now.
	// An empty userID means an anonymous caller. Limit-reached outcomes
	// are normal decisions, never errors.
	CheckScanLimit(ctx context.Context, userID string, guests GuestCounter) (domain.ScanDecision, error)

	// RecordScan records that a scan happened. Callers are expected to
	// have consulted CheckScanLimit first; this never re-verifies.
	RecordScan(ctx context.Context, userID string, guests GuestCounter) error
}

type scanGate struct {
	entitlements repository.EntitlementRepository
	events       producer.BillingProducer
	metrics      metrics.ScanMetrics
	log          *logger.Logger
}

// NewScanGate creates a new scan gate
func NewScanGate(
	entitlements repository.EntitlementRepository,
	events producer.BillingProducer,
	m metrics.ScanMetrics,
	log *logger.Logger,
) ScanGate {
	return &scanGate{
		entitlements: entitlements,
		events:       events,
		metrics:      m,
		log:          log,
	}
}

// CheckScanLimit evaluates the admission policy. It never mutates state:
// an expired pro subscription is read as free without a stored downgrade.
func (s *scanGate) CheckScanLimit(ctx context.Context, userID string, guests GuestCounter) (domain.ScanDecision, error) {
	if userID == "" {
		return s.checkGuest(ctx, guests)
	}

	now := time.Now()

	record, err := s.entitlements.GetByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			// Fail open: a transient lookup failure must not block a
			// new user, same as a missing record.
			s.log.Errorw("Entitlement lookup failed, degrading to free defaults", "user_id", userID, "error", err)
		}
		decision := domain.ScanDecision{
			Allowed:   true,
			Remaining: domain.FreeScanLimit,
			Tier:      domain.TierFree,
		}
		s.metrics.IncScanAllowed(string(decision.Tier))
		return decision, nil
	}

	if record.EffectiveTier(now) == domain.TierPro {
		s.metrics.IncScanAllowed(string(domain.TierPro))
		return domain.ScanDecision{
			Allowed:   true,
			Remaining: domain.UnlimitedScans,
			Tier:      domain.TierPro,
		}, nil
	}

	// Free, or expired pro read as free
	remaining := domain.FreeScanLimit - record.EffectiveScanCount(now)
	if remaining < 0 {
		remaining = 0
	}

	decision := domain.ScanDecision{
		Allowed:         remaining > 0,
		Remaining:       remaining,
		Tier:            domain.TierFree,
		RequiresUpgrade: remaining <= 0,
	}

	if decision.Allowed {
		s.metrics.IncScanAllowed(string(decision.Tier))
	} else {
		s.metrics.IncScanDenied(string(decision.Tier))
	}
	return decision, nil
}

// checkGuest evaluates the guest allowance from the injected counter
func (s *scanGate) checkGuest(ctx context.Context, guests GuestCounter) (domain.ScanDecision, error) {
	count := 0
	if guests != nil {
		c, err := guests.Get(ctx)
		if err != nil {
			// Unreadable client state reads as zero
			s.log.Warnw("Guest counter read failed, treating as zero", "error", err)
		} else {
			count = c
		}
	}

	remaining := domain.GuestScanLimit - count
	if remaining < 0 {
		remaining = 0
	}

	decision := domain.ScanDecision{
		Allowed:       remaining > 0,
		Remaining:     remaining,
		Tier:          domain.TierGuest,
		RequiresLogin: remaining <= 0,
	}

	if decision.Allowed {
		s.metrics.IncScanAllowed(string(decision.Tier))
	} else {
		s.metrics.IncScanDenied(string(decision.Tier))
	}
	return decision, nil
}

// RecordScan records one scan against the caller's counter. For
// identified users the increment is atomic at the storage layer and is
// never decremented; an increment failure surfaces as a retryable
// infrastructure error while the scan result itself stands.
func (s *scanGate) RecordScan(ctx context.Context, userID string, guests GuestCounter) error {
	if userID == "" {
		if guests == nil {
			return nil
		}
		if err := guests.Increment(ctx); err != nil {
			return fmt.Errorf("failed to increment guest counter: %w", err)
		}
		s.metrics.IncScanRecorded(string(domain.TierGuest))
		return nil
	}

	newCount, err := s.entitlements.IncrementScanCount(ctx, userID)
	if err != nil {
		return domain.NewExternalServiceError("entitlement-store", "increment",
			"failed to record scan", 0, err)
	}

	s.metrics.IncScanRecorded(string(domain.TierFree))

	// Usage accounting event; never fails the scan
	if err := s.events.PublishScanRecorded(ctx, userID, newCount); err != nil {
		s.log.Warnw("Failed to publish scan event", "user_id", userID, "error", err)
	}

	return nil
}
