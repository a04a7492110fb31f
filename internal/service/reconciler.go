package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/integration/midtrans"
	"github.com/ocrpur/ocr-gateway/internal/integration/ocrbackend"
	"github.com/ocrpur/ocr-gateway/internal/kafka/producer"
	"github.com/ocrpur/ocr-gateway/internal/metrics"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// KeyIssuer requests OCR API keys from the backend's admin surface.
// Implemented by ocrbackend.Client; faked in tests.
type KeyIssuer interface {
	IssueKey(ctx context.Context, name string) (ocrbackend.IssuedKey, error)
}

// SubscriptionReconciler turns one payment-provider webhook delivery into
// an idempotent entitlement state transition
type SubscriptionReconciler interface {
	// HandleWebhook authenticates, maps and applies a provider
	// notification. Once the signature and order lookup pass, the
	// returned error is always nil even when activation sub-steps
	// soft-fail: the provider retries non-2xx responses, and a retry of
	// an already-mapped event must not reprocess it.
	HandleWebhook(ctx context.Context, notification domain.ProviderNotification) (domain.WebhookResult, error)
}

type reconciler struct {
	serverKey    string
	payments     repository.PaymentRepository
	entitlements repository.EntitlementRepository
	keys         KeyIssuer
	events       producer.BillingProducer
	metrics      metrics.BillingMetrics
	log          *logger.Logger
}

// NewSubscriptionReconciler creates a new subscription reconciler
func NewSubscriptionReconciler(
	serverKey string,
	payments repository.PaymentRepository,
	entitlements repository.EntitlementRepository,
	keys KeyIssuer,
	events producer.BillingProducer,
	m metrics.BillingMetrics,
	log *logger.Logger,
) SubscriptionReconciler {
	return &reconciler{
		serverKey:    serverKey,
		payments:     payments,
		entitlements: entitlements,
		keys:         keys,
		events:       events,
		metrics:      m,
		log:          log,
	}
}

// HandleWebhook processes one webhook delivery
func (r *reconciler) HandleWebhook(ctx context.Context, n domain.ProviderNotification) (domain.WebhookResult, error) {
	// 1. Authenticate. The signature is the only thing standing between
	// the internet and an entitlement grant; nothing below runs without it.
	if !midtrans.VerifySignature(n.OrderID, n.StatusCode, n.GrossAmount, r.serverKey, n.SignatureKey) {
		r.log.Warnw("Webhook signature mismatch", "order_id", n.OrderID)
		r.metrics.IncWebhookRejected("signature")
		return domain.WebhookResult{}, domain.ErrSignatureMismatch
	}

	// 2. Look up the transaction
	payment, err := r.payments.GetByOrderID(ctx, n.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.log.Warnw("Webhook for unknown order", "order_id", n.OrderID)
			r.metrics.IncWebhookRejected("unknown_order")
			return domain.WebhookResult{}, domain.NewNotFoundError("payment", n.OrderID)
		}
		return domain.WebhookResult{}, fmt.Errorf("failed to load payment %s: %w", n.OrderID, err)
	}

	// 3. Map the provider status
	newStatus, activate := domain.MapProviderStatus(n.TransactionStatus, n.FraudStatus)

	// Terminal statuses are sticky. A later webhook reporting a different
	// terminal status for the same order is logged and ignored.
	if payment.Status.IsTerminal() && newStatus != payment.Status {
		r.log.Warnw("Ignoring status transition out of terminal state",
			"order_id", n.OrderID, "stored", payment.Status, "reported", newStatus)
		r.metrics.IncWebhookProcessed(string(payment.Status))
		return domain.WebhookResult{Status: payment.Status}, nil
	}

	// 4. Persist the mapped status before activation, so a retried
	// delivery observes it even when a later step failed
	if err := r.payments.UpdateStatus(ctx, n.OrderID, newStatus, n.TransactionID, n.PaymentType); err != nil {
		r.log.Errorw("Failed to update payment status", "order_id", n.OrderID, "error", err)
	}

	// 5. Activate the subscription on success
	if activate {
		r.activate(ctx, payment, n.OrderID)
	}

	r.metrics.IncWebhookProcessed(string(newStatus))
	r.metrics.ObservePaymentAmount(float64(payment.Amount), string(newStatus))

	if err := r.events.PublishPaymentStatusChanged(ctx, n.OrderID, payment.UserID, newStatus); err != nil {
		r.log.Warnw("Failed to publish payment status event", "order_id", n.OrderID, "error", err)
	}

	return domain.WebhookResult{Status: newStatus}, nil
}

// activate grants the pro entitlement for a paid order. Every failure in
// here is soft: the payment already succeeded, so the webhook response
// must stay positive and the user can retry key generation later.
func (r *reconciler) activate(ctx context.Context, payment domain.PaymentTransaction, orderID string) {
	cycle := domain.CycleFromOrderID(orderID)
	pricing := domain.Pricing[cycle]

	// Replays recompute the expiry from now rather than extending the
	// stored one, so duplicate deliveries self-correct instead of
	// accumulating subscription time.
	expiresAt := time.Now().AddDate(0, 0, pricing.DurationDays)

	profile, err := r.entitlements.GetByUserID(ctx, payment.UserID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		r.log.Errorw("Failed to load profile during activation", "user_id", payment.UserID, "error", err)
	}

	apiKey := profile.APIKey
	apiKeyID := profile.APIKeyID

	if apiKey == "" {
		issued, err := r.keys.IssueKey(ctx, keyName(profile, payment.UserID))
		if err != nil {
			// Log and continue: the user can retry via the key endpoint
			r.log.Errorw("API key issuance failed during activation", "user_id", payment.UserID, "error", err)
			r.metrics.IncKeyIssuance("failed")
			if pubErr := r.events.PublishKeyIssuanceFailed(ctx, payment.UserID, err.Error()); pubErr != nil {
				r.log.Warnw("Failed to publish key issuance event", "user_id", payment.UserID, "error", pubErr)
			}
		} else {
			apiKey = issued.APIKey
			apiKeyID = issued.ID
			r.metrics.IncKeyIssuance("issued")
		}
	}

	tier := domain.TierPro
	scanCount := 0
	update := domain.EntitlementUpdate{
		Tier:                  &tier,
		SubscriptionExpiresAt: &expiresAt,
		ScanCount:             &scanCount,
	}
	if apiKey != "" {
		update.APIKey = &apiKey
		update.APIKeyID = &apiKeyID
	}

	if err := r.entitlements.Upsert(ctx, payment.UserID, update); err != nil {
		r.log.Errorw("Failed to upsert entitlement during activation", "user_id", payment.UserID, "error", err)
		return
	}

	r.log.Infow("Subscription activated",
		"user_id", payment.UserID, "order_id", orderID, "expires_at", expiresAt.Format(time.RFC3339))

	if err := r.events.PublishSubscriptionActivated(ctx, payment.UserID, orderID, expiresAt); err != nil {
		r.log.Warnw("Failed to publish activation event", "order_id", orderID, "error", err)
	}
}

// keyName derives the human-readable key label: full name, else email,
// else a truncated user id.
func keyName(profile domain.EntitlementRecord, userID string) string {
	if profile.FullName != "" {
		return profile.FullName
	}
	if profile.Email != "" {
		return profile.Email
	}
	if len(userID) > 8 {
		userID = userID[:8]
	}
	return "user_" + userID
}
