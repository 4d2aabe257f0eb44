package push

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// APNs hosts.
const (
	APNsProductionHost = "https://api.push.apple.com"
	APNsSandboxHost    = "https://api.sandbox.push.apple.com"
)

// providerTokenTTL is how long a signed provider token is reused. Apple
// rejects tokens older than an hour and throttles refreshes under 20 minutes.
const providerTokenTTL = 50 * time.Minute

// APNsConfig contains the token-based APNs credentials.
type APNsConfig struct {
	KeyID      string `env:"APNS_KEY_ID"`
	TeamID     string `env:"APNS_TEAM_ID"`
	Topic      string `env:"APNS_TOPIC"`
	KeyPath    string `env:"APNS_KEY_PATH"`
	Production bool   `env:"APNS_PRODUCTION" envDefault:"false"`
}

// Enabled reports whether the credentials are complete.
func (c APNsConfig) Enabled() bool {
	return c.KeyID != "" && c.TeamID != "" && c.Topic != "" && c.KeyPath != ""
}

// APNsSender posts to the APNs HTTP/2 API.
type APNsSender struct {
	host   string
	topic  string
	keyID  string
	teamID string
	key    *ecdsa.PrivateKey
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	token     string
	tokenTime time.Time
}

// NewAPNsSender loads the .p8 key at cfg.KeyPath and creates a sender.
func NewAPNsSender(cfg APNsConfig, logger *slog.Logger) (*APNsSender, error) {
	p8, err := os.ReadFile(cfg.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("read apns key: %w", err)
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(p8)
	if err != nil {
		return nil, fmt.Errorf("parse apns key: %w", err)
	}

	host := APNsSandboxHost
	if cfg.Production {
		host = APNsProductionHost
	}
	return newAPNsSender(cfg, key, host, logger), nil
}

func newAPNsSender(cfg APNsConfig, key *ecdsa.PrivateKey, host string, logger *slog.Logger) *APNsSender {
	return &APNsSender{
		host:   host,
		topic:  cfg.Topic,
		keyID:  cfg.KeyID,
		teamID: cfg.TeamID,
		key:    key,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &http.Transport{ForceAttemptHTTP2: true},
		},
		logger: logger,
		now:    time.Now,
	}
}

type apsAlert struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

type aps struct {
	Alert apsAlert `json:"alert"`
	Sound string   `json:"sound"`
}

// payload builds the APNs JSON body: the aps dictionary plus custom keys
// at the top level.
func payload(n Notification) ([]byte, error) {
	body := make(map[string]any, len(n.Data)+1)
	for k, v := range n.Data {
		body[k] = v
	}
	body["aps"] = aps{
		Alert: apsAlert{Title: n.Title, Body: n.Body},
		Sound: "default",
	}
	return json.Marshal(body)
}

// providerToken returns the cached ES256 token, signing a new one when the
// cached one is older than providerTokenTTL.
func (s *APNsSender) providerToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.token != "" && now.Sub(s.tokenTime) < providerTokenTTL {
		return s.token, nil
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:   s.teamID,
		IssuedAt: jwt.NewNumericDate(now),
	})
	token.Header["kid"] = s.keyID

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign apns provider token: %w", err)
	}
	s.token, s.tokenTime = signed, now
	return signed, nil
}

type apnsError struct {
	Reason string `json:"reason"`
}

// Send implements Sender.
func (s *APNsSender) Send(ctx context.Context, deviceToken string, n Notification) error {
	body, err := payload(n)
	if err != nil {
		return fmt.Errorf("marshal apns payload: %w", err)
	}
	bearer, err := s.providerToken()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/3/device/"+deviceToken, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "bearer "+bearer)
	req.Header.Set("apns-topic", s.topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")
	req.Header.Set("apns-expiration", "0")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("apns request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		s.logger.Info("push sent", "gateway", "apns", "apns_id", resp.Header.Get("apns-id"))
		return nil
	}

	var apiErr apnsError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&apiErr)

	switch {
	case resp.StatusCode == http.StatusGone,
		apiErr.Reason == "BadDeviceToken",
		apiErr.Reason == "Unregistered",
		apiErr.Reason == "DeviceTokenNotForTopic":
		return fmt.Errorf("%w: apns %d %s", ErrUnregistered, resp.StatusCode, apiErr.Reason)
	case resp.StatusCode == http.StatusForbidden && apiErr.Reason == "ExpiredProviderToken":
		s.mu.Lock()
		s.token = ""
		s.mu.Unlock()
	}
	return fmt.Errorf("apns error: status %d reason %q", resp.StatusCode, apiErr.Reason)
}

var _ Sender = (*APNsSender)(nil)
