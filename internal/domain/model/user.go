package model

import "time"

// User is the shopkeeper account. The four plan fields are a denormalized
// cache of the latest completed Subscription; reconciliation overwrites them
// unconditionally.
type User struct {
	ID                    string
	Phone                 string
	Name                  string
	Plan                  PlanType
	SubscriptionStatus    SubscriptionStatus
	SubscriptionExpiresAt *time.Time
	LastPaymentDate       *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

// PlanUpdate carries the profile plan-field overwrite applied after a
// successful reconciliation.
type PlanUpdate struct {
	Plan                  PlanType
	SubscriptionStatus    SubscriptionStatus
	SubscriptionExpiresAt time.Time
	LastPaymentDate       time.Time
}
