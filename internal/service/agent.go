package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/livekit"
	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/openai"
)

// RoomTokenIssuer signs LiveKit room tokens. *livekit.Issuer implements it.
type RoomTokenIssuer interface {
	RoomToken(p livekit.RoomTokenParams) (string, error)
}

// RealtimeSessionCreator creates OpenAI realtime sessions. *openai.Client
// implements it.
type RealtimeSessionCreator interface {
	CreateRealtimeSession(ctx context.Context, model, voice string) (json.RawMessage, error)
}

// AgentLimits are the daily caps for agent sessions.
type AgentLimits struct {
	LiveKitTokensPerDay  int
	OpenAISessionsPerDay int
}

// RoomTokenRequest asks for a room with an agent dispatched into it.
type RoomTokenRequest struct {
	GraphName string
	AgentName string
	ThreadID  string
}

// RoomToken is a signed participant token and the room it grants.
type RoomToken struct {
	Token    string `json:"token"`
	RoomName string `json:"room_name"`
}

// AgentService issues voice agent sessions against the daily quotas.
type AgentService interface {
	// CreateRoomToken returns a LiveKit token for a fresh room.
	// Returns domain.EINVALID when LiveKit is not configured and
	// domain.EFORBIDDEN when the daily quota is used up.
	CreateRoomToken(ctx context.Context, user *domain.User, req RoomTokenRequest) (*RoomToken, error)

	// CreateRealtimeSession returns OpenAI's session JSON unchanged.
	CreateRealtimeSession(ctx context.Context, user *domain.User, model, voice string) (json.RawMessage, error)
}

type agentService struct {
	quota    QuotaService
	livekit  RoomTokenIssuer
	realtime RealtimeSessionCreator
	limits   AgentLimits
	logger   *slog.Logger
}

// NewAgentService creates an AgentService. Either provider may be nil when
// its credentials are not configured.
func NewAgentService(quota QuotaService, issuer RoomTokenIssuer, realtime RealtimeSessionCreator, limits AgentLimits, logger *slog.Logger) AgentService {
	return &agentService{
		quota:    quota,
		livekit:  issuer,
		realtime: realtime,
		limits:   limits,
		logger:   logger,
	}
}

func (s *agentService) CreateRoomToken(ctx context.Context, user *domain.User, req RoomTokenRequest) (*RoomToken, error) {
	const op = "agent.room_token"

	req.GraphName = strings.TrimSpace(req.GraphName)
	req.AgentName = strings.TrimSpace(req.AgentName)
	if req.GraphName == "" || req.AgentName == "" {
		return nil, domain.Invalid(op, "graph_name and livekit_dispatch_agent_name are required")
	}
	if s.livekit == nil {
		return nil, domain.Invalid(op, "LiveKit credentials not configured")
	}

	if _, err := s.quota.ConsumeDaily(ctx, user.ID, domain.QuotaLiveKitRoomTokens, s.limits.LiveKitTokensPerDay, domain.QuotaDetailAgentUsage); err != nil {
		return nil, err
	}

	room := livekit.NewRoomName()
	token, err := s.livekit.RoomToken(livekit.RoomTokenParams{
		Identity:  user.Email,
		Name:      user.FullName(),
		Room:      room,
		AgentName: req.AgentName,
		Metadata: livekit.AgentMetadata{
			GraphName: req.GraphName,
			ThreadID:  req.ThreadID,
		},
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to sign room token")
	}

	metrics.AgentTokensIssued.WithLabelValues("livekit").Inc()
	s.logger.Info("livekit room token issued", "user_id", user.ID, "room", room, "agent", req.AgentName)

	return &RoomToken{Token: token, RoomName: room}, nil
}

func (s *agentService) CreateRealtimeSession(ctx context.Context, user *domain.User, model, voice string) (json.RawMessage, error) {
	const op = "agent.realtime_session"

	if s.realtime == nil {
		return nil, domain.NotConfigured(op, "OpenAI")
	}

	if _, err := s.quota.ConsumeDaily(ctx, user.ID, domain.QuotaOpenAIRealtimeSessions, s.limits.OpenAISessionsPerDay, domain.QuotaDetailRealtimeUsage); err != nil {
		return nil, err
	}

	session, err := s.realtime.CreateRealtimeSession(ctx, strings.TrimSpace(model), strings.TrimSpace(voice))
	if err != nil {
		switch {
		case errors.Is(err, openai.ErrRateLimit):
			return nil, domain.RateLimit(op)
		case errors.Is(err, openai.ErrBadRequest):
			return nil, domain.Wrap(err, domain.EINVALID, op, "OpenAI rejected the session request")
		}
		return nil, domain.Internal(err, op, "failed to create realtime session")
	}

	metrics.AgentTokensIssued.WithLabelValues("openai").Inc()
	s.logger.Info("openai realtime session created", "user_id", user.ID)
	return session, nil
}
