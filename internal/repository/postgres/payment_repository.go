package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// PostgresPaymentRepository stores payment transactions in the payments table
type PostgresPaymentRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresPaymentRepository creates a new PostgreSQL payment repository
func NewPostgresPaymentRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{
		db:  db,
		log: log,
	}
}

// Create inserts a new pending transaction
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment domain.PaymentTransaction) (domain.PaymentTransaction, error) {
	query := `
		INSERT INTO payments (order_id, user_id, amount, plan, billing_cycle, status, provider_transaction_id, payment_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		payment.OrderID,
		payment.UserID,
		payment.Amount,
		payment.Plan,
		payment.BillingCycle,
		payment.Status,
		payment.ProviderTransactionID,
		payment.PaymentType,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.PaymentTransaction{}, repository.ErrDuplicate
		}
		return domain.PaymentTransaction{}, fmt.Errorf("failed to create payment: %w", err)
	}

	return payment, nil
}

// GetByOrderID returns a transaction by order id
func (r *PostgresPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (domain.PaymentTransaction, error) {
	query := `
		SELECT order_id, user_id, amount, plan, billing_cycle, status, provider_transaction_id, payment_type, created_at, updated_at
		FROM payments
		WHERE order_id = $1
	`

	var payment domain.PaymentTransaction

	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&payment.OrderID,
		&payment.UserID,
		&payment.Amount,
		&payment.Plan,
		&payment.BillingCycle,
		&payment.Status,
		&payment.ProviderTransactionID,
		&payment.PaymentType,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentTransaction{}, repository.ErrNotFound
		}
		return domain.PaymentTransaction{}, fmt.Errorf("failed to get payment: %w", err)
	}

	return payment, nil
}

// UpdateStatus persists the mapped status onto an existing transaction
func (r *PostgresPaymentRepository) UpdateStatus(ctx context.Context, orderID string, status domain.PaymentStatus, providerTxID, paymentType string) error {
	query := `
		UPDATE payments
		SET status = $1,
		    provider_transaction_id = CASE WHEN $2 = '' THEN provider_transaction_id ELSE $2 END,
		    payment_type = CASE WHEN $3 = '' THEN payment_type ELSE $3 END,
		    updated_at = now()
		WHERE order_id = $4
	`

	result, err := r.db.Exec(ctx, query, status, providerTxID, paymentType, orderID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}
