package handler

// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC because Stripe calls it directly. Authentication is
// the Stripe webhook signature.

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/agentguard/internal/billing"
	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing       billing.Service
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, subscriptions service.SubscriptionService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:       billingService,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
//
// Events that fail for a transient reason answer 500 so Stripe retries them.
// Events for unknown customers are acknowledged and dropped.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	var subEvent *service.SubscriptionEvent
	switch string(event.Type) {
	case "checkout.session.completed":
		subEvent, err = h.checkoutCompleted(r, event)
	case "customer.subscription.created", "customer.subscription.updated":
		subEvent, err = h.subscriptionChanged(event)
	case "customer.subscription.deleted":
		subEvent, err = h.subscriptionDeleted(event)
	case "invoice.payment_succeeded":
		subEvent, err = h.invoicePaid(event, domain.SubscriptionStatusActive)
	case "invoice.payment_failed":
		subEvent, err = h.invoicePaid(event, domain.SubscriptionStatusPastDue)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}
	if err == nil && subEvent != nil {
		err = h.subscriptions.ApplySubscription(r.Context(), *subEvent)
	}

	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND, domain.EINVALID:
			h.logger.Warn("webhook event dropped", "type", event.Type, "id", event.ID, "error", err)
		default:
			h.logger.Error("webhook event failed", "type", event.Type, "id", event.ID, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}

// checkoutCompleted links the Stripe customer to the organization named in
// client_reference_id and activates the subscription.
func (h *WebhookHandler) checkoutCompleted(r *http.Request, event stripe.Event) (*service.SubscriptionEvent, error) {
	const op = "webhook.checkout_completed"

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, domain.Invalid(op, "Malformed checkout session")
	}
	if session.Customer == nil || session.Subscription == nil {
		return nil, domain.Invalid(op, "Checkout session missing customer or subscription")
	}

	orgID, err := uuid.Parse(session.ClientReferenceID)
	if err != nil {
		return nil, domain.Invalid(op, "Checkout session has no organization reference")
	}
	if err := h.subscriptions.LinkCustomer(r.Context(), orgID, session.Customer.ID); err != nil {
		return nil, err
	}

	return &service.SubscriptionEvent{
		CustomerID:     session.Customer.ID,
		SubscriptionID: session.Subscription.ID,
		Status:         domain.SubscriptionStatusActive,
	}, nil
}

func (h *WebhookHandler) subscriptionChanged(event stripe.Event) (*service.SubscriptionEvent, error) {
	const op = "webhook.subscription_changed"

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, domain.Invalid(op, "Malformed subscription")
	}
	if sub.Customer == nil {
		return nil, domain.Invalid(op, "Subscription missing customer")
	}

	priceID := ""
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		priceID = sub.Items.Data[0].Price.ID
	}

	return &service.SubscriptionEvent{
		CustomerID:     sub.Customer.ID,
		SubscriptionID: sub.ID,
		Status:         service.StatusFromStripe(string(sub.Status)),
		PriceID:        priceID,
	}, nil
}

func (h *WebhookHandler) subscriptionDeleted(event stripe.Event) (*service.SubscriptionEvent, error) {
	const op = "webhook.subscription_deleted"

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, domain.Invalid(op, "Malformed subscription")
	}
	if sub.Customer == nil {
		return nil, domain.Invalid(op, "Subscription missing customer")
	}

	return &service.SubscriptionEvent{
		CustomerID:     sub.Customer.ID,
		SubscriptionID: sub.ID,
		Status:         domain.SubscriptionStatusCanceled,
	}, nil
}

func (h *WebhookHandler) invoicePaid(event stripe.Event, status domain.SubscriptionStatus) (*service.SubscriptionEvent, error) {
	const op = "webhook.invoice"

	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return nil, domain.Invalid(op, "Malformed invoice")
	}
	if invoice.Customer == nil {
		return nil, nil
	}

	e := &service.SubscriptionEvent{CustomerID: invoice.Customer.ID, Status: status}
	if invoice.Subscription != nil {
		e.SubscriptionID = invoice.Subscription.ID
	}
	if status == domain.SubscriptionStatusPastDue {
		h.logger.Warn("payment failed", "customer_id", invoice.Customer.ID)
	}
	return e, nil
}
