package billing

import (
	"context"
	"errors"
	"log/slog"
)

// Gate answers whether an organization may use subscription-gated features.
type Gate struct {
	repo   Repository
	logger *slog.Logger
}

// NewGate creates a gate over the given subscription repository.
func NewGate(repo Repository, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{repo: repo, logger: logger}
}

// Allow reports whether the organization holds an entitled subscription.
// An organization with no subscription row is simply not entitled.
func (g *Gate) Allow(ctx context.Context, orgID string) (bool, error) {
	sub, err := g.repo.GetByOrganization(ctx, orgID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.Entitled(), nil
}
