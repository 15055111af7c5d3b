package services

import (
	"context"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/stripe"
)

// SessionGateway - вызовы шлюза, нужные для оформления и портала.
type SessionGateway interface {
	CreateCustomer(ctx context.Context, in stripe.CustomerInput) (string, error)
	CreateCheckoutSession(ctx context.Context, in stripe.CheckoutInput) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// SubscriptionFetcher читает актуальный объект подписки у шлюза.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (domain.SubscriptionFacts, error)
}

// EventLedger - журнал уже обработанных событий.
type EventLedger interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, eventID string) error
}

// ReconcilePublisher отправляет уведомление о примененной сверке.
type ReconcilePublisher interface {
	PublishReconciled(ctx context.Context, event domain.SubscriptionReconciled) error
}

// Reconciler применяет факты шлюза к локальной записи.
type Reconciler interface {
	Reconcile(ctx context.Context, facts domain.SubscriptionFacts, eventAt time.Time) (Outcome, error)
}

// Outcome - итог обработки события.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeStale     Outcome = "stale"
	OutcomeUnmapped  Outcome = "unmapped"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeDuplicate Outcome = "duplicate"
)
