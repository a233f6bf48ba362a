// Package billing provides subscription management backed by Stripe Checkout.
package billing

import "time"

// Subscription status values mirroring the Stripe subscription lifecycle.
const (
	StatusActive     = "active"
	StatusTrialing   = "trialing"
	StatusPastDue    = "past_due"
	StatusCanceled   = "canceled"
	StatusIncomplete = "incomplete"
)

// Subscription represents an organization's Stripe subscription.
type Subscription struct {
	ID                   string     `json:"id"`
	OrganizationID       string     `json:"organization_id"`
	StripeCustomerID     string     `json:"stripe_customer_id"`
	StripeSubscriptionID string     `json:"stripe_subscription_id"`
	Status               string     `json:"status"`
	PriceID              string     `json:"price_id"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end,omitempty"`
	CreatedAt            *time.Time `json:"created_at,omitempty"`
	UpdatedAt            *time.Time `json:"updated_at,omitempty"`
}

// Entitled reports whether the subscription grants access to gated
// features. Trialing subscriptions are entitled; past-due ones are not.
func (s *Subscription) Entitled() bool {
	return s.Status == StatusActive || s.Status == StatusTrialing
}
