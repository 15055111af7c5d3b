package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/internal/metrics"
	"github.com/Dhoini/comics-billing/internal/models"
	"github.com/Dhoini/comics-billing/internal/repository"
	"github.com/Dhoini/comics-billing/pkg/logger"

	"github.com/google/uuid"
)

const publishTimeout = 5 * time.Second

// SubscriptionReconciler приводит локальную запись подписки к фактам шлюза.
type SubscriptionReconciler struct {
	subs      repository.SubscriptionRepository
	users     repository.UserRepository
	planFor   func(priceID string) string
	publisher ReconcilePublisher
	metrics   metrics.BillingMetrics
	now       func() time.Time
	newID     func() string
	log       *logger.Logger
}

// ReconcilerOption настраивает SubscriptionReconciler.
type ReconcilerOption func(*SubscriptionReconciler)

// WithReconcilerClock подменяет часы (тесты).
func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *SubscriptionReconciler) { r.now = now }
}

// WithIDGenerator подменяет генератор суффикса ID записи.
func WithIDGenerator(newID func() string) ReconcilerOption {
	return func(r *SubscriptionReconciler) { r.newID = newID }
}

// NewSubscriptionReconciler создает сервис сверки. publisher может быть nil,
// тогда уведомления не отправляются.
func NewSubscriptionReconciler(
	subs repository.SubscriptionRepository,
	users repository.UserRepository,
	planFor func(priceID string) string,
	publisher ReconcilePublisher,
	m metrics.BillingMetrics,
	log *logger.Logger,
	opts ...ReconcilerOption,
) *SubscriptionReconciler {
	if publisher == nil {
		log.Warnw("Reconciliation publisher is nil, notifications will be skipped")
	}
	r := &SubscriptionReconciler{
		subs:      subs,
		users:     users,
		planFor:   planFor,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
		log:       log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile записывает факты шлюза одной атомарной операцией.
// Клиент без пользователя дает OutcomeUnmapped и ошибку domain.ErrUnmappedCustomer,
// хранилище при этом не меняется. Ошибки хранилища - domain.ErrTransientStore.
func (r *SubscriptionReconciler) Reconcile(ctx context.Context, facts domain.SubscriptionFacts, eventAt time.Time) (Outcome, error) {
	if facts.ExternalSubscriptionID == "" {
		return "", fmt.Errorf("%w: subscription id is empty", domain.ErrMalformedEvent)
	}

	user, err := r.users.FindByExternalCustomerID(ctx, facts.ExternalCustomerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			r.metrics.IncReconcile(string(OutcomeUnmapped))
			return OutcomeUnmapped, fmt.Errorf("%w: %s", domain.ErrUnmappedCustomer, facts.ExternalCustomerID)
		}
		return "", storeError("find user by customer", err)
	}

	status := facts.Status
	if _, known := domain.NormalizeStatus(facts.GatewayStatus); facts.GatewayStatus != "" && !known {
		r.log.Warnw("Unknown gateway subscription status, treating as non-entitling",
			"externalSubscriptionID", facts.ExternalSubscriptionID, "gatewayStatus", facts.GatewayStatus)
	}
	if status == "" {
		status = domain.StatusIncomplete
	}

	now := r.now().UTC()
	if eventAt.IsZero() {
		eventAt = now
	}
	record := &models.Subscription{
		ID:                     "sub-" + r.newID(),
		UserID:                 user.ID,
		PlanID:                 r.planFor(facts.ExternalPriceID),
		Status:                 status,
		StartDate:              now,
		EndDate:                facts.PeriodEnd,
		ExternalSubscriptionID: facts.ExternalSubscriptionID,
		ExternalPriceID:        facts.ExternalPriceID,
		LastEventAt:            eventAt.UTC(),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	applied, err := r.subs.Upsert(ctx, record)
	if err != nil {
		return "", storeError("upsert subscription", err)
	}

	outcome := Outcome(applied.String())
	r.metrics.IncReconcile(string(outcome))
	r.log.Infow("Subscription reconciled",
		"externalSubscriptionID", record.ExternalSubscriptionID,
		"userID", user.ID,
		"status", status,
		"endDate", record.EndDate,
		"outcome", outcome)

	if applied != repository.UpsertStale {
		r.publish(ctx, record, outcome)
	}
	return outcome, nil
}

// publish не влияет на результат сверки: ошибки только логируются.
// ID, пользователь и дата начала фиксируются при вставке, поэтому
// уведомление строится по сохраненной строке.
func (r *SubscriptionReconciler) publish(ctx context.Context, record *models.Subscription, outcome Outcome) {
	if r.publisher == nil {
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if stored, err := r.subs.GetByExternalID(pubCtx, record.ExternalSubscriptionID); err == nil {
		record = stored
	} else {
		r.log.Warnw("Failed to read reconciled subscription, publishing incoming facts",
			"externalSubscriptionID", record.ExternalSubscriptionID, "error", err)
	}

	err := r.publisher.PublishReconciled(pubCtx, domain.SubscriptionReconciled{
		SubscriptionID:         record.ID,
		ExternalSubscriptionID: record.ExternalSubscriptionID,
		UserID:                 record.UserID,
		PlanID:                 record.PlanID,
		Status:                 record.Status,
		StartDate:              record.StartDate,
		EndDate:                record.EndDate,
		ExternalPriceID:        record.ExternalPriceID,
		Outcome:                string(outcome),
		OccurredAt:             record.LastEventAt,
	})
	if err != nil {
		r.log.Errorw("Failed to publish reconciliation notification",
			"externalSubscriptionID", record.ExternalSubscriptionID, "error", err)
	}
}
