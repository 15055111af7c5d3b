package services

import (
	"errors"
	"fmt"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/repository"
)

// storeError переводит ошибку хранилища в таксономию домена.
func storeError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrTransientStore, op, err)
}

// userLookupError: ErrNotFound -> ErrUserNotFound, остальное - ErrTransientStore.
func userLookupError(userID string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", domain.ErrUserNotFound, userID)
	}
	return storeError("find user", err)
}

// resultLabel сворачивает ошибку в метку метрики.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return "gateway_unavailable"
	case errors.Is(err, domain.ErrGatewayRejected):
		return "gateway_rejected"
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, domain.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	default:
		return "error"
	}
}
