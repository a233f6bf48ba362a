package api

import (
	"log/slog"
	"net/http"

	"github.com/dataforaction/questionbank/internal/billing"
	"github.com/dataforaction/questionbank/internal/middleware"
)

// CheckoutConfig holds the static parameters of a checkout session.
type CheckoutConfig struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// BillingHandlers holds dependencies for billing HTTP handlers.
type BillingHandlers struct {
	client billing.Client
	cfg    CheckoutConfig
}

// NewBillingHandlers creates a new BillingHandlers instance.
func NewBillingHandlers(client billing.Client, cfg CheckoutConfig) *BillingHandlers {
	return &BillingHandlers{client: client, cfg: cfg}
}

// CheckoutResponse carries the hosted checkout URL to redirect to.
type CheckoutResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// CreateCheckout starts a Stripe subscription checkout for the caller's
// organization. The resulting subscription is activated by the webhook, not
// here.
// POST /billing/checkout
func (h *BillingHandlers) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeUnauthorized)
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}

	orgID := middleware.GetOrganizationID(ctx)
	if orgID == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeValidation)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation,
			"an organization account is required for checkout")
		return
	}

	session, err := h.client.CreateCheckoutSession(&billing.CheckoutParams{
		OrganizationID: orgID,
		PriceID:        h.cfg.PriceID,
		SuccessURL:     h.cfg.SuccessURL,
		CancelURL:      h.cfg.CancelURL,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create checkout session",
			"organization_id", orgID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal,
			"failed to create checkout session")
		return
	}

	WriteJSON(w, ctx, http.StatusOK, CheckoutResponse{
		SessionID:   session.ID,
		CheckoutURL: session.URL,
	})
}
