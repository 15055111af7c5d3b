package domain

import "time"

// EventKind - дискриминатор события биллинга.
type EventKind string

const (
	KindCheckoutCompleted   EventKind = "checkout_completed"
	KindSubscriptionUpdated EventKind = "subscription_updated"
	KindSubscriptionDeleted EventKind = "subscription_deleted"
	KindUnrecognized        EventKind = "unrecognized"
)

// EventMeta - общие поля проверенного события.
type EventMeta struct {
	ID         string    // идентификатор события у шлюза
	Type       string    // исходный тип события у шлюза
	OccurredAt time.Time // момент создания события у шлюза (UTC)
}

// Meta возвращает общие поля события.
func (m EventMeta) Meta() EventMeta { return m }

// BillingEvent - закрытое объединение распознанных событий.
// Реализации: CheckoutCompleted, SubscriptionUpdated, SubscriptionDeleted, Unrecognized.
type BillingEvent interface {
	Kind() EventKind
	Meta() EventMeta
	isBillingEvent()
}

// CheckoutCompleted - оформление завершено. ExternalSubscriptionID пуст
// для разовых платежей.
type CheckoutCompleted struct {
	EventMeta
	SessionID              string
	ExternalSubscriptionID string
	ExternalCustomerID     string
}

// SubscriptionUpdated несет объект подписки из самого события.
type SubscriptionUpdated struct {
	EventMeta
	Subscription SubscriptionFacts
}

// SubscriptionDeleted несет объект подписки из самого события.
type SubscriptionDeleted struct {
	EventMeta
	Subscription SubscriptionFacts
}

// Unrecognized - любой другой тип события; хранит только исходный тип.
type Unrecognized struct {
	EventMeta
}

func (CheckoutCompleted) Kind() EventKind   { return KindCheckoutCompleted }
func (SubscriptionUpdated) Kind() EventKind { return KindSubscriptionUpdated }
func (SubscriptionDeleted) Kind() EventKind { return KindSubscriptionDeleted }
func (Unrecognized) Kind() EventKind        { return KindUnrecognized }

func (CheckoutCompleted) isBillingEvent()   {}
func (SubscriptionUpdated) isBillingEvent() {}
func (SubscriptionDeleted) isBillingEvent() {}
func (Unrecognized) isBillingEvent()        {}
