package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/dataforaction/questionbank/internal/billing"
	"github.com/dataforaction/questionbank/internal/middleware"
)

// WebhookHandlers holds dependencies for webhook-related HTTP handlers.
type WebhookHandlers struct {
	webhookSecret string
	subs          billing.Repository
	events        billing.WebhookRepository
}

// NewWebhookHandlers creates a new WebhookHandlers instance.
func NewWebhookHandlers(
	webhookSecret string,
	subs billing.Repository,
	events billing.WebhookRepository,
) *WebhookHandlers {
	return &WebhookHandlers{
		webhookSecret: webhookSecret,
		subs:          subs,
		events:        events,
	}
}

// HandleStripeWebhook processes Stripe webhook events with signature verification.
// POST /internal/stripe
func (h *WebhookHandlers) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "missing Stripe-Signature header")
		return
	}

	event, err := webhook.ConstructEvent(body, signature, h.webhookSecret)
	if err != nil {
		slog.WarnContext(ctx, "webhook signature verification failed", "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "invalid signature")
		return
	}

	// Log minimal event info (type and ID only, not full payload)
	slog.InfoContext(ctx, "webhook event received", "event_type", event.Type, "event_id", event.ID)

	if err := h.events.RecordEvent(ctx, event.ID, string(event.Type)); err != nil {
		if errors.Is(err, billing.ErrEventAlreadyProcessed) {
			slog.InfoContext(ctx, "webhook event already processed, ignoring", "event_id", event.ID)
			// Return 200 to acknowledge receipt even though we're ignoring it
			w.WriteHeader(http.StatusOK)
			return
		}
		slog.ErrorContext(ctx, "failed to record webhook event", "event_id", event.ID, "error", err)
		ctx = middleware.SetErrorCode(ctx, ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "failed to process webhook")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutSessionCompleted(ctx, event)
	case "customer.subscription.updated":
		h.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_failed":
		h.handleInvoicePaymentFailed(ctx, event)
	default:
		slog.InfoContext(ctx, "ignoring unhandled webhook event type", "event_type", event.Type, "event_id", event.ID)
	}

	// Always return 200 to acknowledge receipt
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutSessionCompleted activates the subscription created by a
// completed checkout. The organization ID travels in the session metadata set
// at checkout creation.
func (h *WebhookHandlers) handleCheckoutSessionCompleted(ctx context.Context, event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		slog.ErrorContext(ctx, "failed to parse checkout session", "event_id", event.ID, "error", err)
		return
	}

	orgID := session.Metadata["organization_id"]
	if orgID == "" {
		slog.ErrorContext(ctx, "checkout session missing organization metadata", "session_id", session.ID)
		return
	}

	sub := &billing.Subscription{
		OrganizationID: orgID,
		Status:         billing.StatusActive,
	}
	if session.Customer != nil {
		sub.StripeCustomerID = session.Customer.ID
	}
	if session.Subscription != nil {
		sub.StripeSubscriptionID = session.Subscription.ID
	}

	if err := h.subs.Upsert(ctx, sub); err != nil {
		slog.ErrorContext(ctx, "failed to activate subscription",
			"organization_id", orgID, "session_id", session.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "subscription activated", "organization_id", orgID)
}

// handleSubscriptionUpdated mirrors Stripe's view of the subscription status.
func (h *WebhookHandlers) handleSubscriptionUpdated(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		slog.ErrorContext(ctx, "failed to parse subscription", "event_id", event.ID, "error", err)
		return
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	if err := h.subs.UpdateStatus(ctx, sub.ID, string(sub.Status), periodEnd); err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			// The update may race the checkout webhook; recover from metadata
			if orgID := sub.Metadata["organization_id"]; orgID != "" {
				record := &billing.Subscription{
					OrganizationID:       orgID,
					StripeSubscriptionID: sub.ID,
					Status:               string(sub.Status),
					CurrentPeriodEnd:     periodEnd,
				}
				if sub.Customer != nil {
					record.StripeCustomerID = sub.Customer.ID
				}
				if err := h.subs.Upsert(ctx, record); err != nil {
					slog.ErrorContext(ctx, "failed to upsert subscription from update",
						"subscription_id", sub.ID, "error", err)
				}
				return
			}
			slog.WarnContext(ctx, "subscription update for unknown subscription", "subscription_id", sub.ID)
			return
		}
		slog.ErrorContext(ctx, "failed to update subscription status",
			"subscription_id", sub.ID, "error", err)
	}
}

// handleSubscriptionDeleted marks the subscription canceled, revoking
// organization ranking access.
func (h *WebhookHandlers) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		slog.ErrorContext(ctx, "failed to parse subscription", "event_id", event.ID, "error", err)
		return
	}

	if err := h.subs.UpdateStatus(ctx, sub.ID, billing.StatusCanceled, nil); err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			slog.WarnContext(ctx, "subscription delete for unknown subscription", "subscription_id", sub.ID)
			return
		}
		slog.ErrorContext(ctx, "failed to cancel subscription", "subscription_id", sub.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "subscription canceled", "subscription_id", sub.ID)
}

// handleInvoicePaymentFailed downgrades the subscription to past_due.
func (h *WebhookHandlers) handleInvoicePaymentFailed(ctx context.Context, event stripe.Event) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		slog.ErrorContext(ctx, "failed to parse invoice", "event_id", event.ID, "error", err)
		return
	}
	if invoice.Subscription == nil {
		slog.WarnContext(ctx, "payment failure for invoice without subscription", "invoice_id", invoice.ID)
		return
	}

	if err := h.subs.UpdateStatus(ctx, invoice.Subscription.ID, billing.StatusPastDue, nil); err != nil {
		if errors.Is(err, billing.ErrSubscriptionNotFound) {
			slog.WarnContext(ctx, "payment failure for unknown subscription",
				"subscription_id", invoice.Subscription.ID)
			return
		}
		slog.ErrorContext(ctx, "failed to mark subscription past due",
			"subscription_id", invoice.Subscription.ID, "error", err)
		return
	}
	slog.WarnContext(ctx, "subscription past due", "subscription_id", invoice.Subscription.ID)
}
