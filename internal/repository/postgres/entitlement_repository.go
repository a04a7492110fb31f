package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ocrpur/ocr-gateway/internal/domain"
	"github.com/ocrpur/ocr-gateway/internal/repository"
	"github.com/ocrpur/ocr-gateway/pkg/logger"
)

// PostgresEntitlementRepository stores entitlement records in the
// profiles table
type PostgresEntitlementRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewPostgresEntitlementRepository creates a new PostgreSQL entitlement repository
func NewPostgresEntitlementRepository(db *pgxpool.Pool, log *logger.Logger) *PostgresEntitlementRepository {
	return &PostgresEntitlementRepository{
		db:  db,
		log: log,
	}
}

// GetByUserID returns the entitlement record for a user
func (r *PostgresEntitlementRepository) GetByUserID(ctx context.Context, userID string) (domain.EntitlementRecord, error) {
	query := `
		SELECT user_id, email, full_name, tier, subscription_expires_at,
		       scan_count, scan_count_date, api_key, api_key_id, created_at, updated_at
		FROM profiles
		WHERE user_id = $1
	`

	var record domain.EntitlementRecord

	err := r.db.QueryRow(ctx, query, userID).Scan(
		&record.UserID,
		&record.Email,
		&record.FullName,
		&record.Tier,
		&record.SubscriptionExpiresAt,
		&record.ScanCount,
		&record.ScanCountDate,
		&record.APIKey,
		&record.APIKeyID,
		&record.CreatedAt,
		&record.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.EntitlementRecord{}, repository.ErrNotFound
		}
		return domain.EntitlementRecord{}, fmt.Errorf("failed to get entitlement: %w", err)
	}

	return record, nil
}

// Upsert applies a partial update, creating the record with free-tier
// defaults when it does not exist. Only non-nil fields are written.
func (r *PostgresEntitlementRepository) Upsert(ctx context.Context, userID string, update domain.EntitlementUpdate) error {
	query := `
		INSERT INTO profiles (user_id, tier, subscription_expires_at, scan_count, scan_count_date, api_key, api_key_id, created_at, updated_at)
		VALUES ($1, COALESCE($2, 'free'), $3, COALESCE($4, 0), (now() at time zone 'utc')::date, COALESCE($5, ''), COALESCE($6, ''), now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			tier = COALESCE($2, profiles.tier),
			subscription_expires_at = COALESCE($3, profiles.subscription_expires_at),
			scan_count = COALESCE($4, profiles.scan_count),
			scan_count_date = CASE WHEN $4 IS NULL THEN profiles.scan_count_date ELSE (now() at time zone 'utc')::date END,
			api_key = COALESCE($5, profiles.api_key),
			api_key_id = COALESCE($6, profiles.api_key_id),
			updated_at = now()
	`

	_, err := r.db.Exec(ctx, query,
		userID,
		update.Tier,
		update.SubscriptionExpiresAt,
		update.ScanCount,
		update.APIKey,
		update.APIKeyID,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert entitlement: %w", err)
	}

	return nil
}

// IncrementScanCount atomically increments the scan counter for the
// current UTC day window. Runs as a single statement so concurrent scans
// by the same user never lose an increment.
func (r *PostgresEntitlementRepository) IncrementScanCount(ctx context.Context, userID string) (int, error) {
	query := `
		INSERT INTO profiles (user_id, tier, scan_count, scan_count_date, created_at, updated_at)
		VALUES ($1, 'free', 1, (now() at time zone 'utc')::date, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			scan_count = CASE
				WHEN profiles.scan_count_date < (now() at time zone 'utc')::date THEN 1
				ELSE profiles.scan_count + 1
			END,
			scan_count_date = (now() at time zone 'utc')::date,
			updated_at = now()
		RETURNING scan_count
	`

	var newCount int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&newCount); err != nil {
		return 0, fmt.Errorf("failed to increment scan count: %w", err)
	}

	return newCount, nil
}
