// Package billing provides repository for subscription persistence.
package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSubscriptionNotFound is returned when a subscription is not found.
var ErrSubscriptionNotFound = errors.New("subscription not found")

// Repository defines methods for subscription persistence.
type Repository interface {
	Upsert(ctx context.Context, sub *Subscription) error
	GetByOrganization(ctx context.Context, orgID string) (*Subscription, error)
	GetByStripeSubscription(ctx context.Context, stripeSubID string) (*Subscription, error)
	UpdateStatus(ctx context.Context, stripeSubID, status string, periodEnd *time.Time) error
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu   sync.RWMutex
	subs map[string]*Subscription // keyed by organization ID
}

// NewInMemoryRepository creates a new in-memory subscription repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		subs: make(map[string]*Subscription),
	}
}

// Upsert creates or replaces the subscription for sub's organization.
func (r *InMemoryRepository) Upsert(_ context.Context, sub *Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	copied := *sub
	if copied.ID == "" {
		if existing, ok := r.subs[sub.OrganizationID]; ok {
			copied.ID = existing.ID
			copied.CreatedAt = existing.CreatedAt
		} else {
			copied.ID = uuid.New().String()
		}
	}
	if copied.CreatedAt == nil {
		copied.CreatedAt = &now
	}
	copied.UpdatedAt = &now

	r.subs[copied.OrganizationID] = &copied
	return nil
}

// GetByOrganization retrieves the subscription for an organization.
func (r *InMemoryRepository) GetByOrganization(_ context.Context, orgID string) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[orgID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

// GetByStripeSubscription retrieves a subscription by its Stripe subscription ID.
func (r *InMemoryRepository) GetByStripeSubscription(_ context.Context, stripeSubID string) (*Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

// UpdateStatus updates the status and period end of a subscription
// identified by its Stripe subscription ID.
func (r *InMemoryRepository) UpdateStatus(_ context.Context, stripeSubID, status string, periodEnd *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, sub := range r.subs {
		if sub.StripeSubscriptionID == stripeSubID {
			now := time.Now()
			sub.Status = status
			if periodEnd != nil {
				end := *periodEnd
				sub.CurrentPeriodEnd = &end
			}
			sub.UpdatedAt = &now
			return nil
		}
	}
	return ErrSubscriptionNotFound
}
