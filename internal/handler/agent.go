package handler

import (
	"log/slog"
	"net/http"

	"github.com/DukeRupert/tenantly/internal/auth"
	"github.com/DukeRupert/tenantly/internal/service"
)

// AgentHandler issues credentials for the voice agent.
type AgentHandler struct {
	agents service.AgentService
	logger *slog.Logger
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(agents service.AgentService, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, logger: logger}
}

// RegisterRoutes registers the agent routes. requireSubscriber must
// authenticate the user and check for an active subscription.
func (h *AgentHandler) RegisterRoutes(mux *http.ServeMux, requireSubscriber func(http.Handler) http.Handler) {
	mux.Handle("POST /api/livekit/create-room-token/", requireSubscriber(http.HandlerFunc(h.CreateRoomToken)))
	mux.Handle("POST /api/openai/realtime-session/", requireSubscriber(http.HandlerFunc(h.CreateRealtimeSession)))
}

type roomTokenRequest struct {
	GraphName string `json:"graph_name" validate:"required"`
	AgentName string `json:"livekit_dispatch_agent_name" validate:"required"`
	ThreadID  string `json:"thread_id"`
}

// CreateRoomToken returns {token, room_name} for a fresh LiveKit room.
func (h *AgentHandler) CreateRoomToken(w http.ResponseWriter, r *http.Request) {
	var req roomTokenRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	token, err := h.agents.CreateRoomToken(r.Context(), auth.GetUser(r.Context()), service.RoomTokenRequest{
		GraphName: req.GraphName,
		AgentName: req.AgentName,
		ThreadID:  req.ThreadID,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, token)
}

type realtimeSessionRequest struct {
	Model string `json:"model" validate:"max=100"`
	Voice string `json:"voice" validate:"max=50"`
}

// CreateRealtimeSession proxies an OpenAI realtime session request and
// returns OpenAI's JSON unchanged.
func (h *AgentHandler) CreateRealtimeSession(w http.ResponseWriter, r *http.Request) {
	var req realtimeSessionRequest
	if err := DecodeJSON(r, &req); err != nil {
		ValidationErrorResponse(w, r, h.logger, err)
		return
	}

	session, err := h.agents.CreateRealtimeSession(r.Context(), auth.GetUser(r.Context()), req.Model, req.Voice)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(session)
}
