package repository

import (
	"context"
	"sync"

	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/pkg/logger"
)

// InMemoryUserRepository - каталог пользователей в памяти.
type InMemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	log   *logger.Logger
}

// NewInMemoryUserRepository создает каталог с начальным набором пользователей.
func NewInMemoryUserRepository(log *logger.Logger, users ...models.User) *InMemoryUserRepository {
	r := &InMemoryUserRepository{
		users: make(map[string]*models.User, len(users)),
		log:   log,
	}
	for _, u := range users {
		u := u
		r.users[u.ID] = &u
	}
	return r
}

func (r *InMemoryUserRepository) FindByID(_ context.Context, userID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *InMemoryUserRepository) FindByExternalCustomerID(_ context.Context, customerID string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ExternalCustomerID() == customerID {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryUserRepository) SetExternalCustomerID(_ context.Context, userID, customerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	if current := u.ExternalCustomerID(); current != "" {
		if current == customerID {
			return nil
		}
		r.log.Warnw("Refusing to remap Stripe customer", "userID", userID, "current", current, "requested", customerID)
		return ErrConflict
	}
	id := customerID
	u.StripeCustomerID = &id
	return nil
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	if u.StripeCustomerID != nil {
		id := *u.StripeCustomerID
		cp.StripeCustomerID = &id
	}
	return &cp
}
