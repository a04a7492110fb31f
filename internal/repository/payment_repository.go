package repository

import (
	"context"
	"sync"
	"time"

	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// PaymentRepository stores checkout transactions, keyed by order id
type PaymentRepository interface {
	// Create inserts a new pending transaction
	Create(ctx context.Context, payment domain.PaymentTransaction) (domain.PaymentTransaction, error)

	// GetByOrderID returns a transaction by order id
	GetByOrderID(ctx context.Context, orderID string) (domain.PaymentTransaction, error)

	// UpdateStatus persists the mapped provider status plus the provider's
	// transaction reference onto an existing transaction
	UpdateStatus(ctx context.Context, orderID string, status domain.PaymentStatus, providerTxID, paymentType string) error
}

// InMemoryPaymentRepository keeps payment transactions in memory
type InMemoryPaymentRepository struct {
	payments map[string]domain.PaymentTransaction
	mutex    sync.RWMutex
	log      *logger.Logger
}

// NewInMemoryPaymentRepository creates a new in-memory payment repository
func NewInMemoryPaymentRepository(log *logger.Logger) *InMemoryPaymentRepository {
	return &InMemoryPaymentRepository{
		payments: make(map[string]domain.PaymentTransaction),
		log:      log,
	}
}

// Create inserts a new pending transaction
func (r *InMemoryPaymentRepository) Create(ctx context.Context, payment domain.PaymentTransaction) (domain.PaymentTransaction, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.payments[payment.OrderID]; exists {
		return domain.PaymentTransaction{}, ErrDuplicate
	}

	payment.CreatedAt = time.Now()
	payment.UpdatedAt = time.Now()

	r.payments[payment.OrderID] = payment
	return payment, nil
}

// GetByOrderID returns a transaction by order id
func (r *InMemoryPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (domain.PaymentTransaction, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	payment, exists := r.payments[orderID]
	if !exists {
		return domain.PaymentTransaction{}, ErrNotFound
	}

	return payment, nil
}

// UpdateStatus persists the mapped status onto an existing transaction
func (r *InMemoryPaymentRepository) UpdateStatus(ctx context.Context, orderID string, status domain.PaymentStatus, providerTxID, paymentType string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	payment, exists := r.payments[orderID]
	if !exists {
		return ErrNotFound
	}

	payment.Status = status
	if providerTxID != "" {
		payment.ProviderTransactionID = providerTxID
	}
	if paymentType != "" {
		payment.PaymentType = paymentType
	}
	payment.UpdatedAt = time.Now()

	r.payments[orderID] = payment
	return nil
}
