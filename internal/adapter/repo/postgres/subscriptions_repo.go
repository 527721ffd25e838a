package postgres

import (
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/bridgeos/internal/domain"
)

// SubscriptionRepo mirrors billing state, one row per manager.
type SubscriptionRepo struct{ Pool PgxPool }

// NewSubscriptionRepo constructs a SubscriptionRepo with the given pool.
func NewSubscriptionRepo(p PgxPool) *SubscriptionRepo { return &SubscriptionRepo{Pool: p} }

// GetByManager loads the manager's subscription row.
func (r *SubscriptionRepo) GetByManager(ctx domain.Context, managerID int64) (domain.Subscription, error) {
	tracer := otel.Tracer("repo.subscriptions")
	ctx, span := tracer.Start(ctx, "subscriptions.GetByManager")
	defer span.End()
	q := `SELECT subscription_id, manager_id, COALESCE(external_id,''), status,
	             COALESCE(customer_portal_url,''), renews_at, ends_at, created_at, updated_at
	      FROM subscriptions WHERE manager_id=$1`
	var s domain.Subscription
	err := r.Pool.QueryRow(ctx, q, managerID).Scan(
		&s.SubscriptionID, &s.ManagerID, &s.ExternalID, &s.Status,
		&s.CustomerPortalURL, &s.RenewsAt, &s.EndsAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Subscription{}, fmt.Errorf("op=subscription.get: %w", domain.ErrNotFound)
		}
		return domain.Subscription{}, fmt.Errorf("op=subscription.get: %w", translateErr(err))
	}
	return s, nil
}

// Upsert writes the row keyed on manager_id. Replaying the same webhook
// event converges to the same state; an empty portal URL never erases a
// stored one.
func (r *SubscriptionRepo) Upsert(ctx domain.Context, s domain.Subscription) error {
	tracer := otel.Tracer("repo.subscriptions")
	ctx, span := tracer.Start(ctx, "subscriptions.Upsert")
	defer span.End()
	q := `INSERT INTO subscriptions (manager_id, external_id, status, customer_portal_url, renews_at, ends_at)
	      VALUES ($1, NULLIF($2,''), $3, NULLIF($4,''), $5, $6)
	      ON CONFLICT (manager_id) DO UPDATE SET
	        external_id         = COALESCE(NULLIF($2,''), subscriptions.external_id),
	        status              = EXCLUDED.status,
	        customer_portal_url = COALESCE(NULLIF($4,''), subscriptions.customer_portal_url),
	        renews_at           = EXCLUDED.renews_at,
	        ends_at             = EXCLUDED.ends_at,
	        updated_at          = NOW()`
	_, err := r.Pool.Exec(ctx, q, s.ManagerID, s.ExternalID, s.Status, s.CustomerPortalURL, s.RenewsAt, s.EndsAt)
	if err != nil {
		return fmt.Errorf("op=subscription.upsert: %w", translateErr(err))
	}
	return nil
}
