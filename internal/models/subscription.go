package models

import (
	"time"

	"github.com/Dhoini/comics-billing/internal/domain"
)

// Subscription - локальная запись о подписке. Ключ сверки - ExternalSubscriptionID.
type Subscription struct {
	ID                     string                    `db:"id" json:"id"`
	UserID                 string                    `db:"user_id" json:"user_id"`
	PlanID                 string                    `db:"plan_id" json:"plan_id"`
	Status                 domain.SubscriptionStatus `db:"status" json:"status"`
	StartDate              time.Time                 `db:"start_date" json:"start_date"`
	EndDate                *time.Time                `db:"end_date" json:"end_date,omitempty"`
	ExternalSubscriptionID string                    `db:"external_subscription_id" json:"external_subscription_id"`
	ExternalPriceID        string                    `db:"external_price_id" json:"external_price_id"`
	LastEventAt            time.Time                 `db:"last_event_at" json:"-"`
	CreatedAt              time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time                 `db:"updated_at" json:"updated_at"`
}

// ActiveAt сообщает, оплачена ли подписка на момент now (EndDate строго позже now).
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s.EndDate != nil && s.EndDate.After(now)
}
