package domain

import "time"

// SubscriptionStatus - локальный статус подписки.
type SubscriptionStatus string

const (
	StatusActive     SubscriptionStatus = "active"
	StatusTrialing   SubscriptionStatus = "trialing"
	StatusPastDue    SubscriptionStatus = "past_due"
	StatusCanceled   SubscriptionStatus = "canceled"
	StatusIncomplete SubscriptionStatus = "incomplete"
)

// NormalizeStatus приводит статус шлюза к локальному перечислению.
// Второе значение false, если статус неизвестен; тогда возвращается
// StatusIncomplete, который не дает доступа.
func NormalizeStatus(raw string) (SubscriptionStatus, bool) {
	switch raw {
	case "active":
		return StatusActive, true
	case "trialing":
		return StatusTrialing, true
	case "past_due", "unpaid", "paused":
		return StatusPastDue, true
	case "canceled", "incomplete_expired":
		return StatusCanceled, true
	case "incomplete":
		return StatusIncomplete, true
	default:
		return StatusIncomplete, false
	}
}

// SubscriptionFacts - факты о подписке, которые утверждает шлюз.
type SubscriptionFacts struct {
	ExternalSubscriptionID string
	ExternalCustomerID     string
	Status                 SubscriptionStatus
	ExternalPriceID        string
	PeriodEnd              *time.Time
	GatewayStatus          string // исходный статус у шлюза, для логов
}
