package repository

import (
	"context"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/models"
)

// UpsertOutcome - результат атомарной записи подписки.
type UpsertOutcome int

const (
	// UpsertStale - событие старее сохраненного, пытается отменить отмену
	// или повторяет уже записанные факты; запись не изменена.
	UpsertStale UpsertOutcome = iota
	// UpsertInserted - создана новая запись.
	UpsertInserted
	// UpsertUpdated - перезаписаны status, end_date, external_price_id.
	UpsertUpdated
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertInserted:
		return "created"
	case UpsertUpdated:
		return "updated"
	default:
		return "stale"
	}
}

// SubscriptionRepository определяет методы для работы с хранилищем подписок.
type SubscriptionRepository interface {
	// Upsert вставляет запись или перезаписывает status, end_date и
	// external_price_id одной атомарной операцией по external_subscription_id.
	// Поля id, user_id, plan_id, start_date и created_at берутся только при вставке.
	Upsert(ctx context.Context, sub *models.Subscription) (UpsertOutcome, error)

	// GetByExternalID возвращает подписку по ID подписки в шлюзе.
	GetByExternalID(ctx context.Context, externalSubscriptionID string) (*models.Subscription, error)

	// FindLatestByUserID возвращает запись пользователя с одним из статусов
	// и наибольшим end_date. ErrNotFound, если таких нет.
	FindLatestByUserID(ctx context.Context, userID string, statuses []domain.SubscriptionStatus) (*models.Subscription, error)

	// ListByUserID возвращает все записи пользователя, новые первыми.
	ListByUserID(ctx context.Context, userID string) ([]models.Subscription, error)

	// CountByStatus считает записи с заданным статусом.
	CountByStatus(ctx context.Context, status domain.SubscriptionStatus) (int, error)
}

// supersedes повторяет условие WHERE из SQL апсерта: входящее событие не
// старше сохраненного, а canceled - терминальный статус.
func supersedes(stored *models.Subscription, lastEventAt time.Time, status domain.SubscriptionStatus) bool {
	if lastEventAt.Before(stored.LastEventAt) {
		return false
	}
	return stored.Status != domain.StatusCanceled || status == domain.StatusCanceled
}

// sameFacts: входящая запись повторяет сохраненные факты (IS DISTINCT FROM в SQL).
func sameFacts(stored, incoming *models.Subscription) bool {
	if stored.Status != incoming.Status ||
		stored.ExternalPriceID != incoming.ExternalPriceID ||
		!stored.LastEventAt.Equal(incoming.LastEventAt) {
		return false
	}
	switch {
	case stored.EndDate == nil || incoming.EndDate == nil:
		return stored.EndDate == nil && incoming.EndDate == nil
	default:
		return stored.EndDate.Equal(*incoming.EndDate)
	}
}

func statusStrings(statuses []domain.SubscriptionStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
