package domain

// QuotaName identifies a daily-capped action.
type QuotaName string

const (
	QuotaLiveKitRoomTokens      QuotaName = "livekit_room_tokens"
	QuotaOpenAIRealtimeSessions QuotaName = "openai_realtime_sessions"
)

// User-facing messages for capped actions.
const (
	QuotaDetailAgentUsage    = "Daily agent usage limit reached for your account."
	QuotaDetailRealtimeUsage = "Daily realtime session limit reached for your account."
	HardCapDetailTeams       = "You have reached the maximum number of teams for your account."
	ActiveSubscriptionDetail = "An active subscription is required."
)
