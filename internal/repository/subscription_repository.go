package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/pkg/logger"
)

// InMemorySubscriptionRepository - хранилище подписок в памяти с теми же
// гарантиями апсерта, что и PostgreSQL (проверка и запись под одной блокировкой).
type InMemorySubscriptionRepository struct {
	mu    sync.RWMutex
	byExt map[string]*models.Subscription
	log   *logger.Logger
}

// NewInMemorySubscriptionRepository создает пустое хранилище.
func NewInMemorySubscriptionRepository(log *logger.Logger) *InMemorySubscriptionRepository {
	return &InMemorySubscriptionRepository{
		byExt: make(map[string]*models.Subscription),
		log:   log,
	}
}

func (r *InMemorySubscriptionRepository) Upsert(_ context.Context, sub *models.Subscription) (UpsertOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byExt[sub.ExternalSubscriptionID]
	if !ok {
		cp := *sub
		cp.EndDate = copyTime(sub.EndDate)
		r.byExt[sub.ExternalSubscriptionID] = &cp
		return UpsertInserted, nil
	}

	if !supersedes(stored, sub.LastEventAt, sub.Status) || sameFacts(stored, sub) {
		r.log.Debugw("Subscription upsert skipped by ordering guard",
			"externalSubscriptionID", sub.ExternalSubscriptionID, "status", sub.Status, "storedStatus", stored.Status)
		return UpsertStale, nil
	}
	stored.Status = sub.Status
	stored.EndDate = copyTime(sub.EndDate)
	stored.ExternalPriceID = sub.ExternalPriceID
	stored.LastEventAt = sub.LastEventAt
	stored.UpdatedAt = sub.UpdatedAt
	return UpsertUpdated, nil
}

func (r *InMemorySubscriptionRepository) GetByExternalID(_ context.Context, externalSubscriptionID string) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.byExt[externalSubscriptionID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *stored
	return &cp, nil
}

func (r *InMemorySubscriptionRepository) FindLatestByUserID(_ context.Context, userID string, statuses []domain.SubscriptionStatus) (*models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	allowed := make(map[domain.SubscriptionStatus]bool, len(statuses))
	for _, s := range statuses {
		allowed[s] = true
	}

	var best *models.Subscription
	for _, sub := range r.byExt {
		if sub.UserID != userID || !allowed[sub.Status] {
			continue
		}
		if best == nil || laterEnd(sub, best) {
			best = sub
		}
	}
	if best == nil {
		return nil, ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *InMemorySubscriptionRepository) ListByUserID(_ context.Context, userID string) ([]models.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]models.Subscription, 0)
	for _, sub := range r.byExt {
		if sub.UserID == userID {
			subs = append(subs, *sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].CreatedAt.After(subs[j].CreatedAt) })
	return subs, nil
}

func (r *InMemorySubscriptionRepository) CountByStatus(_ context.Context, status domain.SubscriptionStatus) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.byExt {
		if sub.Status == status {
			count++
		}
	}
	return count, nil
}

// laterEnd - порядок ORDER BY end_date DESC NULLS LAST.
func laterEnd(a, b *models.Subscription) bool {
	switch {
	case a.EndDate == nil:
		return false
	case b.EndDate == nil:
		return true
	default:
		return a.EndDate.After(*b.EndDate)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
