package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
	"github.com/Dhoini/comics-billing/pkg/logger"
)

// EventDispatcher направляет проверенные события шлюза к сверке.
type EventDispatcher struct {
	reconciler Reconciler
	fetcher    SubscriptionFetcher
	ledger     EventLedger
	log        *logger.Logger
}

// NewEventDispatcher создает диспетчер. ledger может быть nil: повторная
// доставка и без журнала безопасна, журнал лишь экономит работу.
func NewEventDispatcher(reconciler Reconciler, fetcher SubscriptionFetcher, ledger EventLedger, log *logger.Logger) *EventDispatcher {
	return &EventDispatcher{
		reconciler: reconciler,
		fetcher:    fetcher,
		ledger:     ledger,
		log:        log,
	}
}

// Dispatch обрабатывает одно событие. Ошибка означает, что шлюз должен
// повторить доставку; все остальные исходы подтверждаются.
func (d *EventDispatcher) Dispatch(ctx context.Context, event domain.BillingEvent) (Outcome, error) {
	meta := event.Meta()
	if d.alreadyProcessed(ctx, meta.ID) {
		d.log.Infow("Webhook event already processed, acknowledging", "eventID", meta.ID, "type", meta.Type)
		return OutcomeDuplicate, nil
	}

	outcome, err := d.handle(ctx, event)
	if err != nil {
		d.log.Errorw("Webhook event handling failed", "eventID", meta.ID, "type", meta.Type, "error", err)
		return "", err
	}

	d.markProcessed(ctx, meta.ID)
	return outcome, nil
}

func (d *EventDispatcher) handle(ctx context.Context, event domain.BillingEvent) (Outcome, error) {
	switch e := event.(type) {
	case domain.CheckoutCompleted:
		return d.handleCheckout(ctx, e)
	case domain.SubscriptionUpdated:
		return d.reconcile(ctx, e.Subscription, e.OccurredAt)
	case domain.SubscriptionDeleted:
		// удаление у шлюза всегда читается как отмена
		facts := e.Subscription
		facts.Status = domain.StatusCanceled
		return d.reconcile(ctx, facts, e.OccurredAt)
	case domain.Unrecognized:
		d.log.Debugw("Ignoring unhandled webhook event", "eventID", e.ID, "type", e.Type)
		return OutcomeIgnored, nil
	default:
		return "", fmt.Errorf("%w: unsupported event %T", domain.ErrMalformedEvent, event)
	}
}

func (d *EventDispatcher) handleCheckout(ctx context.Context, e domain.CheckoutCompleted) (Outcome, error) {
	if e.ExternalSubscriptionID == "" {
		d.log.Infow("Checkout completed without subscription, ignoring", "eventID", e.ID, "sessionID", e.SessionID)
		return OutcomeIgnored, nil
	}

	facts, err := d.fetcher.GetSubscription(ctx, e.ExternalSubscriptionID)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			d.log.Warnw("Gateway rejected subscription fetch for completed checkout, acknowledging",
				"eventID", e.ID, "externalSubscriptionID", e.ExternalSubscriptionID, "error", err)
			return OutcomeIgnored, nil
		}
		return "", err
	}
	if facts.ExternalCustomerID == "" {
		facts.ExternalCustomerID = e.ExternalCustomerID
	}
	return d.reconcile(ctx, facts, e.OccurredAt)
}

func (d *EventDispatcher) reconcile(ctx context.Context, facts domain.SubscriptionFacts, eventAt time.Time) (Outcome, error) {
	outcome, err := d.reconciler.Reconcile(ctx, facts, eventAt)
	if errors.Is(err, domain.ErrUnmappedCustomer) {
		d.log.Warnw("Cannot map gateway customer to a user, acknowledging without changes",
			"externalSubscriptionID", facts.ExternalSubscriptionID,
			"stripeCustomerID", facts.ExternalCustomerID)
		return OutcomeUnmapped, nil
	}
	return outcome, err
}

func (d *EventDispatcher) alreadyProcessed(ctx context.Context, eventID string) bool {
	if d.ledger == nil || eventID == "" {
		return false
	}
	seen, err := d.ledger.Seen(ctx, eventID)
	if err != nil {
		d.log.Warnw("Event ledger lookup failed, processing anyway", "eventID", eventID, "error", err)
		return false
	}
	return seen
}

func (d *EventDispatcher) markProcessed(ctx context.Context, eventID string) {
	if d.ledger == nil || eventID == "" {
		return
	}
	if err := d.ledger.MarkProcessed(ctx, eventID); err != nil {
		d.log.Warnw("Failed to record processed event", "eventID", eventID, "error", err)
	}
}
