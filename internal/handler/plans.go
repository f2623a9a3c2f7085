// Package handler contains the JSON HTTP handlers.
//
// Routes:
//   - GET /api/plans              -> ListPlans
//   - GET /api/plans/{tier}       -> GetPlan
//   - GET /api/orgs/{orgID}/usage -> GetUsage
package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/service"
)

// PlanHandler serves the plan catalog and usage summaries.
type PlanHandler struct {
	usage  service.UsageService
	logger *slog.Logger
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(usage service.UsageService, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{usage: usage, logger: logger}
}

// RegisterRoutes registers plan and usage routes on the provided mux.
func (h *PlanHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/plans", h.ListPlans)
	mux.HandleFunc("GET /api/plans/{tier}", h.GetPlan)
	mux.HandleFunc("GET /api/orgs/{orgID}/usage", h.GetUsage)
}

func (h *PlanHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": h.usage.ListPlans()})
}

func (h *PlanHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.usage.GetLimitsInfo(domain.PlanTier(r.PathValue("tier")))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *PlanHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	orgID, err := pathOrgID(r, "handler.get_usage")
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	summary, err := h.usage.GetSummary(r.Context(), orgID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
