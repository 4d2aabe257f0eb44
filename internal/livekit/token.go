// Package livekit issues LiveKit access tokens that join a user to a fresh
// room and dispatch an agent into it.
package livekit

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of a room token.
const DefaultTTL = time.Hour

// ErrNotConfigured is returned when the API key or secret is missing.
var ErrNotConfigured = errors.New("livekit credentials not configured")

// Config holds the LiveKit project credentials.
type Config struct {
	URL       string `env:"LIVEKIT_URL"`
	APIKey    string `env:"LIVEKIT_API_KEY"`
	APISecret string `env:"LIVEKIT_API_SECRET"`
}

// Enabled reports whether tokens can be signed.
func (c Config) Enabled() bool {
	return c.APIKey != "" && c.APISecret != ""
}

// VideoGrant is the subset of LiveKit video grants the app uses.
type VideoGrant struct {
	RoomJoin       bool   `json:"roomJoin,omitempty"`
	Room           string `json:"room,omitempty"`
	CanPublish     *bool  `json:"canPublish,omitempty"`
	CanSubscribe   *bool  `json:"canSubscribe,omitempty"`
	CanPublishData *bool  `json:"canPublishData,omitempty"`
}

// AgentDispatch asks LiveKit to start the named agent when the room opens.
type AgentDispatch struct {
	AgentName string `json:"agentName"`
	Metadata  string `json:"metadata,omitempty"`
}

// RoomConfiguration is applied when the token's room is created.
type RoomConfiguration struct {
	Agents []AgentDispatch `json:"agents,omitempty"`
}

// Claims is the LiveKit access token body.
type Claims struct {
	jwt.RegisteredClaims
	Name       string             `json:"name,omitempty"`
	Video      *VideoGrant        `json:"video,omitempty"`
	RoomConfig *RoomConfiguration `json:"roomConfig,omitempty"`
}

// AgentMetadata is serialized into the dispatch metadata.
type AgentMetadata struct {
	GraphName string `json:"graph_name"`
	ThreadID  string `json:"thread_id,omitempty"`
}

// RoomTokenParams describes the participant and the agent to dispatch.
type RoomTokenParams struct {
	Identity  string
	Name      string
	Room      string
	AgentName string
	Metadata  AgentMetadata
}

// Issuer signs room tokens with the project's API secret.
type Issuer struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewIssuer creates an Issuer. It returns ErrNotConfigured when cfg lacks
// credentials.
func NewIssuer(cfg Config) (*Issuer, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return &Issuer{
		apiKey:    cfg.APIKey,
		apiSecret: []byte(cfg.APISecret),
		ttl:       DefaultTTL,
		now:       time.Now,
	}, nil
}

// RoomToken returns a signed token for p.
func (i *Issuer) RoomToken(p RoomTokenParams) (string, error) {
	if p.Identity == "" || p.Room == "" {
		return "", errors.New("identity and room are required")
	}

	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return "", fmt.Errorf("marshal agent metadata: %w", err)
	}

	yes := true
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   p.Identity,
			ID:        p.Identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Name: p.Name,
		Video: &VideoGrant{
			RoomJoin:       true,
			Room:           p.Room,
			CanPublish:     &yes,
			CanSubscribe:   &yes,
			CanPublishData: &yes,
		},
		RoomConfig: &RoomConfiguration{
			Agents: []AgentDispatch{{AgentName: p.AgentName, Metadata: string(metadata)}},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.apiSecret)
	if err != nil {
		return "", fmt.Errorf("sign livekit token: %w", err)
	}
	return token, nil
}

// NewRoomName returns "room-" followed by 12 random hex characters.
func NewRoomName() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("livekit: crypto/rand failed: %v", err))
	}
	return "room-" + hex.EncodeToString(b)
}
