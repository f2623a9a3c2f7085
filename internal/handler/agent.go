package handler

// Route:
//   - POST /api/orgs/{orgID}/agent -> Ask
//
// A denied request answers 402 with the verdict so clients can render the
// reason and upsell. Bad input and collaborator failures use the error shape.

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/agentguard/internal/domain"
	"github.com/DukeRupert/agentguard/internal/service"
	"github.com/google/uuid"
)

// AgentHandler exposes the agent service over HTTP.
type AgentHandler struct {
	agent  service.AgentService
	logger *slog.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(agent service.AgentService, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{agent: agent, logger: logger}
}

// RegisterRoutes registers agent routes on the provided mux.
func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/orgs/{orgID}/agent", h.Ask)
}

type askRequest struct {
	Question        string    `json:"question"`
	Mode            string    `json:"mode"`
	EstimatedTokens int64     `json:"estimated_tokens"`
	VoiceMinutes    int64     `json:"voice_minutes"`
	RequestID       uuid.UUID `json:"request_id"`
}

type deniedResponse struct {
	Verdict domain.Verdict `json:"verdict"`
}

func (h *AgentHandler) Ask(w http.ResponseWriter, r *http.Request) {
	const op = "handler.ask"

	orgID, err := pathOrgID(r, op)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var req askRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if req.Mode == "" {
		req.Mode = string(domain.AgentModeText)
	}

	res, err := h.agent.Ask(r.Context(), service.AskParams{
		OrgID:           orgID,
		Question:        req.Question,
		Mode:            domain.AgentMode(req.Mode),
		EstimatedTokens: req.EstimatedTokens,
		VoiceMinutes:    req.VoiceMinutes,
		RequestID:       req.RequestID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !res.Verdict.OK {
		writeJSON(w, http.StatusPaymentRequired, deniedResponse{Verdict: res.Verdict})
		return
	}
	writeJSON(w, http.StatusOK, res)
}
