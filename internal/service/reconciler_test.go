package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/integration/midtrans"
	"github.com/ocrpur/ocr-gateway/internal/integration/ocrbackend"
	"github.com/ocrpur/ocr-gateway/internal/kafka/producer"
	"github.com/ocrpur/ocr-gateway/internal/metrics"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

const testServerKey = "test-server-key"

// fakeKeyIssuer records issuance calls and hands out sequential keys
type fakeKeyIssuer struct {
	calls int
	err   error
}

func (f *fakeKeyIssuer) IssueKey(ctx context.Context, name string) (ocrbackend.IssuedKey, error) {
	f.calls++
	if f.err != nil {
		return ocrbackend.IssuedKey{}, f.err
	}
	return ocrbackend.IssuedKey{
		ID:     fmt.Sprintf("key-id-%d", f.calls),
		APIKey: fmt.Sprintf("ocr_key_%d", f.calls),
		Name:   name,
	}, nil
}

type reconcilerFixture struct {
	reconciler   SubscriptionReconciler
	payments     *repository.InMemoryPaymentRepository
	entitlements *repository.InMemoryEntitlementRepository
	keys         *fakeKeyIssuer
}

func newReconcilerFixture(t *testing.T) *reconcilerFixture {
	t.Helper()
	log := logger.New(logger.ERROR)
	payments := repository.NewInMemoryPaymentRepository(log)
	entitlements := repository.NewInMemoryEntitlementRepository(log)
	keys := &fakeKeyIssuer{}
	m := metrics.NewBillingMetrics(prometheus.NewRegistry(), log)

	return &reconcilerFixture{
		reconciler:   NewSubscriptionReconciler(testServerKey, payments, entitlements, keys, producer.NoOpBillingProducer{}, m, log),
		payments:     payments,
		entitlements: entitlements,
		keys:         keys,
	}
}

// seedPayment creates a pending transaction and returns its order id
func (f *reconcilerFixture) seedPayment(t *testing.T, userID string, cycle domain.BillingCycle) string {
	t.Helper()
	orderID := domain.GenerateOrderID(domain.PlanPro, cycle)
	_, err := f.payments.Create(context.Background(), domain.PaymentTransaction{
		OrderID:      orderID,
		UserID:       userID,
		Amount:       domain.Pricing[cycle].Price,
		Plan:         domain.PlanPro,
		BillingCycle: cycle,
		Status:       domain.PaymentStatusPending,
	})
	require.NoError(t, err)
	return orderID
}

// notification builds a correctly signed provider notification
func notification(orderID, transactionStatus, fraudStatus string) domain.ProviderNotification {
	const statusCode = "200"
	const grossAmount = "1000000.00"
	return domain.ProviderNotification{
		OrderID:           orderID,
		StatusCode:        statusCode,
		GrossAmount:       grossAmount,
		SignatureKey:      midtrans.ExpectedSignature(orderID, statusCode, grossAmount, testServerKey),
		TransactionStatus: transactionStatus,
		FraudStatus:       fraudStatus,
		PaymentType:       "credit_card",
		TransactionID:     "provider-tx-1",
	}
}

func TestHandleWebhookRejectsTamperedSignature(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)

	n := notification(orderID, "settlement", "accept")
	n.SignatureKey = "x" + n.SignatureKey[1:]

	_, err := f.reconciler.HandleWebhook(context.Background(), n)
	require.ErrorIs(t, err, domain.ErrSignatureMismatch)

	// Nothing was mutated
	payment, err := f.payments.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)

	_, err = f.entitlements.GetByUserID(context.Background(), "user-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 0, f.keys.calls)
}

func TestHandleWebhookUnknownOrder(t *testing.T) {
	f := newReconcilerFixture(t)

	_, err := f.reconciler.HandleWebhook(context.Background(), notification("OCR-PRO-MONTHLY-1-nosuch", "settlement", "accept"))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleWebhookSettlementActivatesSubscription(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)
	before := time.Now()

	result, err := f.reconciler.HandleWebhook(context.Background(), notification(orderID, "settlement", "accept"))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, result.Status)

	payment, err := f.payments.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "provider-tx-1", payment.ProviderTransactionID)
	assert.Equal(t, "credit_card", payment.PaymentType)

	record, err := f.entitlements.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, record.Tier)
	assert.Equal(t, 0, record.ScanCount)
	assert.Equal(t, "ocr_key_1", record.APIKey)

	require.NotNil(t, record.SubscriptionExpiresAt)
	expected := before.AddDate(0, 0, 30)
	assert.WithinDuration(t, expected, *record.SubscriptionExpiresAt, time.Minute)
}

func TestHandleWebhookYearlyCycleFromOrderID(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingYearly)

	_, err := f.reconciler.HandleWebhook(context.Background(), notification(orderID, "settlement", ""))
	require.NoError(t, err)

	record, err := f.entitlements.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, record.SubscriptionExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, 365), *record.SubscriptionExpiresAt, time.Minute)
}

func TestHandleWebhookReplayIssuesOneKey(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)
	ctx := context.Background()

	n := notification(orderID, "settlement", "accept")

	first, err := f.reconciler.HandleWebhook(ctx, n)
	require.NoError(t, err)
	second, err := f.reconciler.HandleWebhook(ctx, n)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, 1, f.keys.calls, "replay must not issue a second key")

	record, err := f.entitlements.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "ocr_key_1", record.APIKey)
}

func TestHandleWebhookDenyMarksFailed(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)

	result, err := f.reconciler.HandleWebhook(context.Background(), notification(orderID, "deny", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, result.Status)

	payment, err := f.payments.GetByOrderID(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusFailed, payment.Status)

	_, err = f.entitlements.GetByUserID(context.Background(), "user-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, 0, f.keys.calls)
}

func TestHandleWebhookPendingDoesNotActivate(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)

	result, err := f.reconciler.HandleWebhook(context.Background(), notification(orderID, "pending", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, result.Status)
	assert.Equal(t, 0, f.keys.calls)
}

func TestHandleWebhookTerminalStatusIsSticky(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)
	ctx := context.Background()

	_, err := f.reconciler.HandleWebhook(ctx, notification(orderID, "settlement", "accept"))
	require.NoError(t, err)

	// A late contradictory delivery is acknowledged but ignored
	result, err := f.reconciler.HandleWebhook(ctx, notification(orderID, "deny", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, result.Status)

	payment, err := f.payments.GetByOrderID(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)

	record, err := f.entitlements.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, record.Tier)
}

func TestHandleWebhookKeyIssuanceFailureIsSoft(t *testing.T) {
	f := newReconcilerFixture(t)
	f.keys.err = errors.New("admin endpoint unreachable")
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)

	result, err := f.reconciler.HandleWebhook(context.Background(), notification(orderID, "settlement", "accept"))
	require.NoError(t, err, "key issuance failure must not fail the webhook")
	assert.Equal(t, domain.PaymentStatusSuccess, result.Status)

	// Activation still happened, the key slot stays empty for a later retry
	record, err := f.entitlements.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, record.Tier)
	assert.Empty(t, record.APIKey)
}

func TestHandleWebhookKeepsExistingKey(t *testing.T) {
	f := newReconcilerFixture(t)
	orderID := f.seedPayment(t, "user-1", domain.BillingMonthly)
	f.entitlements.Seed(domain.EntitlementRecord{
		UserID:   "user-1",
		Tier:     domain.TierFree,
		APIKey:   "pre-existing-key",
		APIKeyID: "pre-existing-id",
	})

	_, err := f.reconciler.HandleWebhook(context.Background(), notification(orderID, "settlement", "accept"))
	require.NoError(t, err)

	record, err := f.entitlements.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "pre-existing-key", record.APIKey)
	assert.Equal(t, 0, f.keys.calls)
}
