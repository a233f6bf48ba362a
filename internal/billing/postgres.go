package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a Postgres-backed subscription repository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// Upsert creates or replaces the subscription for sub's organization.
func (r *PostgresRepository) Upsert(ctx context.Context, sub *Subscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	query := `
		INSERT INTO subscriptions (id, organization_id, stripe_customer_id, stripe_subscription_id, status, price_id, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (organization_id) DO UPDATE SET
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			status = EXCLUDED.status,
			price_id = EXCLUDED.price_id,
			current_period_end = EXCLUDED.current_period_end,
			updated_at = NOW()`

	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.OrganizationID, sub.StripeCustomerID, sub.StripeSubscriptionID,
		sub.Status, sub.PriceID, sub.CurrentPeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// GetByOrganization retrieves the subscription for an organization.
func (r *PostgresRepository) GetByOrganization(ctx context.Context, orgID string) (*Subscription, error) {
	query := `
		SELECT id, organization_id, stripe_customer_id, stripe_subscription_id, status, price_id, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE organization_id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, orgID))
}

// GetByStripeSubscription retrieves a subscription by its Stripe subscription ID.
func (r *PostgresRepository) GetByStripeSubscription(ctx context.Context, stripeSubID string) (*Subscription, error) {
	query := `
		SELECT id, organization_id, stripe_customer_id, stripe_subscription_id, status, price_id, current_period_end, created_at, updated_at
		FROM subscriptions
		WHERE stripe_subscription_id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, stripeSubID))
}

// UpdateStatus updates the status and period end of a subscription
// identified by its Stripe subscription ID.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, stripeSubID, status string, periodEnd *time.Time) error {
	query := `
		UPDATE subscriptions
		SET status = $2, current_period_end = COALESCE($3, current_period_end), updated_at = NOW()
		WHERE stripe_subscription_id = $1`

	result, err := r.db.ExecContext(ctx, query, stripeSubID, status, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.OrganizationID, &sub.StripeCustomerID, &sub.StripeSubscriptionID,
		&sub.Status, &sub.PriceID, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubscriptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &sub, nil
}
