package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

func TestInMemoryPaymentCreateAndGet(t *testing.T) {
	repo := NewInMemoryPaymentRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	created, err := repo.Create(ctx, domain.PaymentTransaction{
		OrderID: "OCR-PRO-MONTHLY-1-abc",
		UserID:  "user-1",
		Amount:  1_000_000,
		Status:  domain.PaymentStatusPending,
	})
	require.NoError(t, err)
	assert.False(t, created.CreatedAt.IsZero())

	payment, err := repo.GetByOrderID(ctx, "OCR-PRO-MONTHLY-1-abc")
	require.NoError(t, err)
	assert.Equal(t, "user-1", payment.UserID)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
}

func TestInMemoryPaymentCreateDuplicate(t *testing.T) {
	repo := NewInMemoryPaymentRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	payment := domain.PaymentTransaction{OrderID: "OCR-PRO-MONTHLY-1-abc"}
	_, err := repo.Create(ctx, payment)
	require.NoError(t, err)

	_, err = repo.Create(ctx, payment)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestInMemoryPaymentUpdateStatus(t *testing.T) {
	repo := NewInMemoryPaymentRepository(logger.New(logger.ERROR))
	ctx := context.Background()

	_, err := repo.Create(ctx, domain.PaymentTransaction{
		OrderID: "OCR-PRO-MONTHLY-1-abc",
		Status:  domain.PaymentStatusPending,
	})
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(ctx, "OCR-PRO-MONTHLY-1-abc",
		domain.PaymentStatusSuccess, "provider-tx-1", "credit_card"))

	payment, err := repo.GetByOrderID(ctx, "OCR-PRO-MONTHLY-1-abc")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "provider-tx-1", payment.ProviderTransactionID)
	assert.Equal(t, "credit_card", payment.PaymentType)

	// Empty provider fields do not erase stored ones
	require.NoError(t, repo.UpdateStatus(ctx, "OCR-PRO-MONTHLY-1-abc",
		domain.PaymentStatusSuccess, "", ""))

	payment, err = repo.GetByOrderID(ctx, "OCR-PRO-MONTHLY-1-abc")
	require.NoError(t, err)
	assert.Equal(t, "provider-tx-1", payment.ProviderTransactionID)
}

func TestInMemoryPaymentUpdateStatusMissing(t *testing.T) {
	repo := NewInMemoryPaymentRepository(logger.New(logger.ERROR))

	err := repo.UpdateStatus(context.Background(), "no-such-order",
		domain.PaymentStatusFailed, "", "")
	require.ErrorIs(t, err, ErrNotFound)
}
