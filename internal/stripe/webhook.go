package stripe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// SignatureHeader - заголовок с подписью Stripe.
const SignatureHeader = "Stripe-Signature"

// Типы событий Stripe, на которые реагирует биллинг.
const (
	eventCheckoutSessionCompleted    = "checkout.session.completed"
	eventCustomerSubscriptionUpdated = "customer.subscription.updated"
	eventCustomerSubscriptionDeleted = "customer.subscription.deleted"
)

// Verifier проверяет подпись вебхука общим секретом и превращает
// событие Stripe в domain.BillingEvent.
type Verifier struct {
	secret    string
	tolerance time.Duration
}

// NewVerifier возвращает ошибку domain.ErrConfiguration, если секрет пуст.
func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("%w: stripe webhook secret is empty", domain.ErrConfiguration)
	}
	return &Verifier{secret: secret, tolerance: webhook.DefaultTolerance}, nil
}

// Verify проверяет подпись над сырыми байтами тела и разбирает событие.
// Любое несовпадение, отсутствие заголовка или нечитаемое тело дают
// domain.ErrSignatureInvalid. Подписанное событие с неполным объектом
// дает domain.ErrMalformedEvent.
func (v *Verifier) Verify(payload []byte, sigHeader string) (domain.BillingEvent, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return nil, fmt.Errorf("%w: missing %s header", domain.ErrSignatureInvalid, SignatureHeader)
	}

	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSignatureInvalid, err)
	}
	return ParseEvent(event)
}

// ParseEvent сопоставляет событие Stripe с закрытым объединением событий.
func ParseEvent(event stripe.Event) (domain.BillingEvent, error) {
	meta := domain.EventMeta{
		ID:         event.ID,
		Type:       string(event.Type),
		OccurredAt: time.Unix(event.Created, 0).UTC(),
	}
	if event.Data == nil {
		if isRecognized(meta.Type) {
			return nil, fmt.Errorf("%w: event %s has no data", domain.ErrMalformedEvent, event.ID)
		}
		return domain.Unrecognized{EventMeta: meta}, nil
	}

	switch meta.Type {
	case eventCheckoutSessionCompleted:
		var sess checkoutSessionObject
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: checkout session: %v", domain.ErrMalformedEvent, err)
		}
		if sess.ID == "" {
			return nil, fmt.Errorf("%w: checkout session without id", domain.ErrMalformedEvent)
		}
		return domain.CheckoutCompleted{
			EventMeta:              meta,
			SessionID:              sess.ID,
			ExternalSubscriptionID: string(sess.Subscription),
			ExternalCustomerID:     string(sess.Customer),
		}, nil

	case eventCustomerSubscriptionUpdated:
		facts, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		return domain.SubscriptionUpdated{EventMeta: meta, Subscription: facts}, nil

	case eventCustomerSubscriptionDeleted:
		facts, err := parseSubscription(event.Data.Raw)
		if err != nil {
			return nil, err
		}
		return domain.SubscriptionDeleted{EventMeta: meta, Subscription: facts}, nil

	default:
		return domain.Unrecognized{EventMeta: meta}, nil
	}
}

func isRecognized(eventType string) bool {
	switch eventType {
	case eventCheckoutSessionCompleted, eventCustomerSubscriptionUpdated, eventCustomerSubscriptionDeleted:
		return true
	}
	return false
}

// expandableID принимает как строковый ID, так и развернутый объект с полем id.
type expandableID string

func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*e = expandableID(s)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type checkoutSessionObject struct {
	ID           string       `json:"id"`
	Mode         string       `json:"mode"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
}

type subscriptionObject struct {
	ID               string       `json:"id"`
	Customer         expandableID `json:"customer"`
	Status           string       `json:"status"`
	CurrentPeriodEnd int64        `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
			Price            struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// parseSubscription разбирает объект подписки Stripe. Конец периода берется
// из подписки, а в новых версиях API - из первой позиции.
func parseSubscription(raw []byte) (domain.SubscriptionFacts, error) {
	var sub subscriptionObject
	if err := json.Unmarshal(raw, &sub); err != nil {
		return domain.SubscriptionFacts{}, fmt.Errorf("%w: subscription: %v", domain.ErrMalformedEvent, err)
	}
	if sub.ID == "" || sub.Customer == "" {
		return domain.SubscriptionFacts{}, fmt.Errorf("%w: subscription without id or customer", domain.ErrMalformedEvent)
	}

	status, _ := domain.NormalizeStatus(sub.Status)
	facts := domain.SubscriptionFacts{
		ExternalSubscriptionID: sub.ID,
		ExternalCustomerID:     string(sub.Customer),
		Status:                 status,
		GatewayStatus:          sub.Status,
	}

	periodEnd := sub.CurrentPeriodEnd
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		facts.ExternalPriceID = item.Price.ID
		if periodEnd == 0 {
			periodEnd = item.CurrentPeriodEnd
		}
	}
	if periodEnd > 0 {
		end := time.Unix(periodEnd, 0).UTC()
		facts.PeriodEnd = &end
	}
	return facts, nil
}
