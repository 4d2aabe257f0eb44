package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/livekit"
	"github.com/DukeRupert/tenantly/internal/openai"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIssuer struct {
	params []livekit.RoomTokenParams
}

func (r *recordingIssuer) RoomToken(p livekit.RoomTokenParams) (string, error) {
	r.params = append(r.params, p)
	return "signed-token", nil
}

type stubRealtime struct {
	err   error
	model string
}

func (s *stubRealtime) CreateRealtimeSession(_ context.Context, model, voice string) (json.RawMessage, error) {
	s.model = model
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"id":"sess_1"}`), nil
}

func testUser() *domain.User {
	return &domain.User{ID: uuid.New(), Email: "ada@example.com", FirstName: "Ada", LastName: "Lovelace"}
}

// =============================================================================
// LiveKit
// =============================================================================

func TestAgentService_CreateRoomToken(t *testing.T) {
	issuer := &recordingIssuer{}
	svc := NewAgentService(newQuotaService(t), issuer, nil, AgentLimits{LiveKitTokensPerDay: 2}, discardLogger())
	user := testUser()
	req := RoomTokenRequest{GraphName: "support", AgentName: "voice-agent", ThreadID: "t-1"}

	tok, err := svc.CreateRoomToken(context.Background(), user, req)
	require.NoError(t, err)
	assert.Equal(t, "signed-token", tok.Token)
	assert.Regexp(t, `^room-[0-9a-f]{12}$`, tok.RoomName)

	require.Len(t, issuer.params, 1)
	p := issuer.params[0]
	assert.Equal(t, "ada@example.com", p.Identity)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, tok.RoomName, p.Room)
	assert.Equal(t, "voice-agent", p.AgentName)
	assert.Equal(t, livekit.AgentMetadata{GraphName: "support", ThreadID: "t-1"}, p.Metadata)

	_, err = svc.CreateRoomToken(context.Background(), user, req)
	require.NoError(t, err)

	_, err = svc.CreateRoomToken(context.Background(), user, req)
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	assert.Equal(t, domain.QuotaDetailAgentUsage, domain.ErrorMessage(err))
	assert.Len(t, issuer.params, 2, "no token past the cap")
}

func TestAgentService_CreateRoomToken_NotConfigured(t *testing.T) {
	quotaSvc := newQuotaService(t)
	svc := NewAgentService(quotaSvc, nil, nil, AgentLimits{LiveKitTokensPerDay: 5}, discardLogger())
	user := testUser()

	_, err := svc.CreateRoomToken(context.Background(), user, RoomTokenRequest{GraphName: "g", AgentName: "a"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Equal(t, "LiveKit credentials not configured", domain.ErrorMessage(err))

	used, err := quotaSvc.UsedToday(context.Background(), user.ID, domain.QuotaLiveKitRoomTokens)
	require.NoError(t, err)
	assert.Zero(t, used, "a misconfigured deployment does not burn quota")
}

func TestAgentService_CreateRoomToken_RequiresNames(t *testing.T) {
	svc := NewAgentService(newQuotaService(t), &recordingIssuer{}, nil, AgentLimits{LiveKitTokensPerDay: 5}, discardLogger())

	_, err := svc.CreateRoomToken(context.Background(), testUser(), RoomTokenRequest{GraphName: "g"})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

// =============================================================================
// OpenAI
// =============================================================================

func TestAgentService_CreateRealtimeSession(t *testing.T) {
	realtime := &stubRealtime{}
	svc := NewAgentService(newQuotaService(t), nil, realtime, AgentLimits{OpenAISessionsPerDay: 1}, discardLogger())
	user := testUser()

	session, err := svc.CreateRealtimeSession(context.Background(), user, " gpt-4o-realtime-preview ", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"sess_1"}`, string(session))
	assert.Equal(t, "gpt-4o-realtime-preview", realtime.model)

	_, err = svc.CreateRealtimeSession(context.Background(), user, "", "")
	assert.Equal(t, domain.EFORBIDDEN, domain.ErrorCode(err))
	assert.Equal(t, domain.QuotaDetailRealtimeUsage, domain.ErrorMessage(err))
}

func TestAgentService_CreateRealtimeSession_Errors(t *testing.T) {
	tests := []struct {
		name     string
		realtime RealtimeSessionCreator
		wantCode string
	}{
		{"not configured", nil, domain.ENOTIMPL},
		{"rate limited upstream", &stubRealtime{err: openai.ErrRateLimit}, domain.ERATELIMIT},
		{"rejected upstream", &stubRealtime{err: openai.ErrBadRequest}, domain.EINVALID},
		{"upstream down", &stubRealtime{err: openai.ErrUnavailable}, domain.EINTERNAL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAgentService(newQuotaService(t), nil, tt.realtime, AgentLimits{OpenAISessionsPerDay: 5}, discardLogger())
			_, err := svc.CreateRealtimeSession(context.Background(), testUser(), "", "")
			assert.Equal(t, tt.wantCode, domain.ErrorCode(err))
		})
	}
}
