package repository

import (
	"context"

	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/pkg/logger"
)

// CachedUserRepository кэширует поиск пользователя по ID клиента шлюза.
// Ошибки кэша только логируются.
type CachedUserRepository struct {
	repo  UserRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedUserRepository создает репозиторий с кешированием
func NewCachedUserRepository(repo UserRepository, cache *RedisCacheRepository, log *logger.Logger) *CachedUserRepository {
	return &CachedUserRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func (r *CachedUserRepository) FindByID(ctx context.Context, userID string) (*models.User, error) {
	return r.repo.FindByID(ctx, userID)
}

// FindByExternalCustomerID читает сначала из кеша, потом из БД.
func (r *CachedUserRepository) FindByExternalCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	cached, err := r.cache.GetCachedUserByCustomer(ctx, customerID)
	if err != nil {
		r.log.Warnw("Error getting user from cache", "error", err, "stripeCustomerID", customerID)
	}
	if cached != nil {
		return cached, nil
	}

	user, err := r.repo.FindByExternalCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	if err := r.cache.CacheUserByCustomer(ctx, customerID, user); err != nil {
		r.log.Warnw("Failed to cache user", "error", err, "stripeCustomerID", customerID)
	}
	return user, nil
}

func (r *CachedUserRepository) SetExternalCustomerID(ctx context.Context, userID, customerID string) error {
	return r.repo.SetExternalCustomerID(ctx, userID, customerID)
}
