package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/internal/stripe"
	"github.com/Dhoini/comics-billing/pkg/logger"
)

const billingSettingsPath = "/settings/billing"

// SessionConfig - адреса и цена по умолчанию для сессий шлюза.
type SessionConfig struct {
	FrontendURL    string
	DefaultPriceID string
}

// SessionInitiator создает hosted checkout и billing portal сессии.
type SessionInitiator struct {
	users   repository.UserRepository
	gateway SessionGateway
	cfg     SessionConfig
	metrics metrics.BillingMetrics
	log     *logger.Logger
}

// NewSessionInitiator конструктор сервиса сессий
func NewSessionInitiator(
	users repository.UserRepository,
	gateway SessionGateway,
	cfg SessionConfig,
	m metrics.BillingMetrics,
	log *logger.Logger,
) *SessionInitiator {
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return &SessionInitiator{
		users:   users,
		gateway: gateway,
		cfg:     cfg,
		metrics: m,
		log:     log,
	}
}

// CreateCheckoutSession возвращает URL оформления подписки для пользователя.
// Пустой priceID заменяется ценой по умолчанию. Если у пользователя еще нет
// клиента в шлюзе, он создается и сразу сохраняется.
func (s *SessionInitiator) CreateCheckoutSession(ctx context.Context, userID, priceID string) (string, error) {
	url, err := s.createCheckout(ctx, userID, priceID)
	s.metrics.IncSession("checkout", resultLabel(err))
	if err != nil {
		s.log.Warnw("Checkout session not created", "userID", userID, "error", err)
		return "", err
	}
	return url, nil
}

func (s *SessionInitiator) createCheckout(ctx context.Context, userID, priceID string) (string, error) {
	price := strings.TrimSpace(priceID)
	if price == "" {
		price = s.cfg.DefaultPriceID
	}
	if price == "" {
		return "", fmt.Errorf("%w: no price reference in request and no default price configured", domain.ErrConfiguration)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", userLookupError(userID, err)
	}

	customerID, err := s.ensureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutInput{
		UserID:     user.ID,
		CustomerID: customerID,
		PriceID:    price,
		SuccessURL: s.cfg.FrontendURL + billingSettingsPath + "?success=true",
		CancelURL:  s.cfg.FrontendURL + billingSettingsPath + "?canceled=true",
	})
	if err != nil {
		return "", err
	}

	s.log.Infow("Checkout session created", "userID", user.ID, "stripeCustomerID", customerID, "priceID", price)
	return url, nil
}

// ensureCustomer возвращает ID клиента в шлюзе, создавая его при первом оформлении.
func (s *SessionInitiator) ensureCustomer(ctx context.Context, user *models.User) (string, error) {
	if id := user.ExternalCustomerID(); id != "" {
		return id, nil
	}

	customerID, err := s.gateway.CreateCustomer(ctx, stripe.CustomerInput{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		return "", err
	}

	err = s.users.SetExternalCustomerID(ctx, user.ID, customerID)
	if err == nil {
		return customerID, nil
	}
	if errors.Is(err, repository.ErrConflict) {
		// параллельное первое оформление успело сохранить другого клиента
		stored, ferr := s.users.FindByID(ctx, user.ID)
		if ferr == nil && stored.ExternalCustomerID() != "" {
			s.log.Warnw("Customer already linked by a concurrent checkout, using stored one",
				"userID", user.ID, "createdCustomerID", customerID, "storedCustomerID", stored.ExternalCustomerID())
			return stored.ExternalCustomerID(), nil
		}
	}
	return "", storeError("persist customer id", err)
}

// CreatePortalSession возвращает URL портала управления подпиской.
// Пользователь без клиента в шлюзе получает domain.ErrNotEligible.
func (s *SessionInitiator) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	url, err := s.createPortal(ctx, userID)
	s.metrics.IncSession("portal", resultLabel(err))
	if err != nil {
		s.log.Warnw("Portal session not created", "userID", userID, "error", err)
		return "", err
	}
	return url, nil
}

func (s *SessionInitiator) createPortal(ctx context.Context, userID string) (string, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", userLookupError(userID, err)
	}

	customerID := user.ExternalCustomerID()
	if customerID == "" {
		return "", fmt.Errorf("%w: user %s has never subscribed", domain.ErrNotEligible, userID)
	}

	url, err := s.gateway.CreatePortalSession(ctx, customerID, s.cfg.FrontendURL+billingSettingsPath)
	if err != nil {
		return "", err
	}
	s.log.Infow("Billing portal session created", "userID", userID, "stripeCustomerID", customerID)
	return url, nil
}
