package handler

// Routes:
//   - POST /api/orgs/{orgID}/upgrade -> StartUpgrade
//   - GET  /billing/success          -> CheckoutSuccess
//   - GET  /billing/canceled         -> CheckoutCanceled

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/agentguard/internal/billing"
	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/service"
)

// BillingHandler turns accepted plan upsells into Stripe checkouts.
type BillingHandler struct {
	subscriptions service.SubscriptionService
	logger        *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(subscriptions service.SubscriptionService, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{subscriptions: subscriptions, logger: logger}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orgs/{orgID}/upgrade", h.StartUpgrade)
	mux.HandleFunc("GET /billing/success", h.CheckoutSuccess)
	mux.HandleFunc("GET /billing/canceled", h.CheckoutCanceled)
}

type upgradeRequest struct {
	Target   string `json:"target"`
	Interval string `json:"interval"`
}

type upgradeResponse struct {
	CheckoutURL string `json:"checkout_url"`
}

// StartUpgrade creates a checkout session for the requested plan.
func (h *BillingHandler) StartUpgrade(w http.ResponseWriter, r *http.Request) {
	const op = "handler.start_upgrade"

	orgID, err := pathOrgID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req upgradeRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	url, err := h.subscriptions.StartUpgrade(r.Context(), service.UpgradeParams{
		OrgID:    orgID,
		Target:   domain.PlanTier(req.Target),
		Interval: billing.Interval(req.Interval),
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, upgradeResponse{CheckoutURL: url})
}

// CheckoutSuccess acknowledges a completed checkout. The plan itself
// changes when the subscription webhook arrives.
func (h *BillingHandler) CheckoutSuccess(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "processing",
		"session_id": r.URL.Query().Get("session_id"),
	})
}

func (h *BillingHandler) CheckoutCanceled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}
