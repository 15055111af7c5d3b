package repository

import (
	"context"

	"github.com/Dhoini/comics-billing/internal/models"
)

// UserRepository - узкий интерфейс к подсистеме пользователей: поиск по ID,
// поиск по ID клиента в шлюзе и однократная привязка этого ID.
type UserRepository interface {
	// FindByID возвращает пользователя или ErrNotFound.
	FindByID(ctx context.Context, userID string) (*models.User, error)

	// FindByExternalCustomerID возвращает пользователя, привязанного к клиенту шлюза, или ErrNotFound.
	FindByExternalCustomerID(ctx context.Context, customerID string) (*models.User, error)

	// SetExternalCustomerID привязывает клиента шлюза к пользователю. Привязка
	// неизменяема: повтор с тем же ID - no-op, с другим - ErrConflict.
	SetExternalCustomerID(ctx context.Context, userID, customerID string) error
}
