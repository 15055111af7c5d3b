package domain

import "time"

// SubscriptionReconciled - уведомление о примененной сверке подписки.
// Публикуется только когда запись действительно создана или изменена,
// и описывает строку в том виде, в каком она сохранена.
type SubscriptionReconciled struct {
	SubscriptionID         string             `json:"subscription_id"`
	ExternalSubscriptionID string             `json:"external_subscription_id"`
	UserID                 string             `json:"user_id"`
	PlanID                 string             `json:"plan_id"`
	Status                 SubscriptionStatus `json:"status"`
	StartDate              time.Time          `json:"start_date"`
	EndDate                *time.Time         `json:"end_date,omitempty"`
	ExternalPriceID        string             `json:"external_price_id,omitempty"`
	Outcome                string             `json:"outcome"`
	OccurredAt             time.Time          `json:"occurred_at"`
}
