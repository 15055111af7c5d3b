package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/pkg/logger"
	"github.com/jmoiron/sqlx"
)

const subscriptionColumns = `id, user_id, plan_id, status, start_date, end_date,
       external_subscription_id, external_price_id, last_event_at, created_at, updated_at`

// Условие WHERE делает апсерт условным: устаревшее событие, попытка
// "воскресить" отмененную подписку и повтор уже записанных фактов
// не меняют строку и не возвращают ее.
const upsertSubscriptionQuery = `
        INSERT INTO subscriptions (
            id, user_id, plan_id, status, start_date, end_date,
            external_subscription_id, external_price_id, last_event_at, created_at, updated_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
        ON CONFLICT (external_subscription_id) DO UPDATE SET
            status = EXCLUDED.status,
            end_date = EXCLUDED.end_date,
            external_price_id = EXCLUDED.external_price_id,
            last_event_at = EXCLUDED.last_event_at,
            updated_at = EXCLUDED.updated_at
        WHERE subscriptions.last_event_at <= EXCLUDED.last_event_at
          AND (subscriptions.status <> 'canceled' OR EXCLUDED.status = 'canceled')
          AND (subscriptions.status, subscriptions.end_date, subscriptions.external_price_id, subscriptions.last_event_at)
              IS DISTINCT FROM (EXCLUDED.status, EXCLUDED.end_date, EXCLUDED.external_price_id, EXCLUDED.last_event_at)
        RETURNING (xmax = 0) AS inserted`

// postgresSubscriptionRepo реализует SubscriptionRepository для PostgreSQL.
type postgresSubscriptionRepo struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewPostgresSubscriptionRepository создает новый экземпляр репозитория для PostgreSQL.
func NewPostgresSubscriptionRepository(db *sqlx.DB, log *logger.Logger) SubscriptionRepository {
	return &postgresSubscriptionRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresSubscriptionRepo) Upsert(ctx context.Context, sub *models.Subscription) (UpsertOutcome, error) {
	var inserted bool
	err := r.db.QueryRowxContext(ctx, upsertSubscriptionQuery,
		sub.ID, sub.UserID, sub.PlanID, string(sub.Status), sub.StartDate, sub.EndDate,
		sub.ExternalSubscriptionID, sub.ExternalPriceID, sub.LastEventAt, sub.CreatedAt, sub.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugw("Subscription upsert skipped by ordering guard",
				"externalSubscriptionID", sub.ExternalSubscriptionID, "status", sub.Status, "lastEventAt", sub.LastEventAt)
			return UpsertStale, nil
		}
		r.log.Errorw("Failed to upsert subscription", "error", err, "externalSubscriptionID", sub.ExternalSubscriptionID)
		return UpsertStale, fmt.Errorf("repository: failed to upsert subscription: %w", err)
	}

	if inserted {
		return UpsertInserted, nil
	}
	return UpsertUpdated, nil
}

func (r *postgresSubscriptionRepo) GetByExternalID(ctx context.Context, externalSubscriptionID string) (*models.Subscription, error) {
	var sub models.Subscription
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE external_subscription_id = $1`

	if err := r.db.GetContext(ctx, &sub, query, externalSubscriptionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to get subscription by external ID", "error", err, "externalSubscriptionID", externalSubscriptionID)
		return nil, fmt.Errorf("repository: failed to get subscription by external ID: %w", err)
	}
	return &sub, nil
}

func (r *postgresSubscriptionRepo) FindLatestByUserID(ctx context.Context, userID string, statuses []domain.SubscriptionStatus) (*models.Subscription, error) {
	if len(statuses) == 0 {
		return nil, ErrNotFound
	}

	query, args, err := sqlx.In(`SELECT `+subscriptionColumns+`
        FROM subscriptions
        WHERE user_id = ? AND status IN (?)
        ORDER BY end_date DESC NULLS LAST
        LIMIT 1`, userID, statusStrings(statuses))
	if err != nil {
		return nil, fmt.Errorf("repository: failed to build query: %w", err)
	}

	var sub models.Subscription
	if err := r.db.GetContext(ctx, &sub, r.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.log.Errorw("Failed to find latest subscription for user", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to find latest subscription: %w", err)
	}
	return &sub, nil
}

func (r *postgresSubscriptionRepo) ListByUserID(ctx context.Context, userID string) ([]models.Subscription, error) {
	subs := make([]models.Subscription, 0)
	query := `SELECT ` + subscriptionColumns + `
        FROM subscriptions
        WHERE user_id = $1
        ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &subs, query, userID); err != nil {
		r.log.Errorw("Failed to list subscriptions for user", "error", err, "userID", userID)
		return nil, fmt.Errorf("repository: failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (r *postgresSubscriptionRepo) CountByStatus(ctx context.Context, status domain.SubscriptionStatus) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM subscriptions WHERE status = $1`, string(status)); err != nil {
		return 0, fmt.Errorf("repository: failed to count subscriptions: %w", err)
	}
	return count, nil
}
