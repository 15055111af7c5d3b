package models

// User - то, что сервис биллинга знает о пользователе. Записью владеет
// подсистема пользователей; здесь лишь однажды проставляется StripeCustomerID.
type User struct {
	ID               string  `db:"id" json:"id"`
	Email            string  `db:"email" json:"email"`
	Name             string  `db:"name" json:"name"`
	Role             string  `db:"role" json:"role"`
	StripeCustomerID *string `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`
}

// ExternalCustomerID возвращает идентификатор клиента в шлюзе или пустую строку.
func (u *User) ExternalCustomerID() string {
	if u.StripeCustomerID == nil {
		return ""
	}
	return *u.StripeCustomerID
}
