package sms

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

var testConfig = Config{
	AccountSID:  "AC00000000000000000000000000000000",
	AuthToken:   "test-auth-token",
	PhoneNumber: "+15005550006",
}

type fakeAPI struct {
	params []*openapi.CreateMessageParams
	err    error
}

func (f *fakeAPI) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	f.params = append(f.params, p)
	if f.err != nil {
		return nil, f.err
	}
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func newTestSender(t *testing.T, api *fakeAPI) *Sender {
	t.Helper()
	s, err := NewSender(testConfig, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	s.api = api
	return s
}

func TestNewSender_RequiresConfig(t *testing.T) {
	_, err := NewSender(Config{AccountSID: "AC1"}, slog.Default())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSender_Send(t *testing.T) {
	api := &fakeAPI{}
	s := newTestSender(t, api)

	sid, err := s.Send(context.Background(), " +15551234567 ", "Your order shipped.")
	require.NoError(t, err)
	assert.Equal(t, "SM123", sid)

	require.Len(t, api.params, 1)
	p := api.params[0]
	assert.Equal(t, "+15551234567", *p.To)
	assert.Equal(t, testConfig.PhoneNumber, *p.From)
	assert.Equal(t, "From your assistant: Your order shipped.", *p.Body)
}

func TestSender_Send_Rejects(t *testing.T) {
	api := &fakeAPI{}
	s := newTestSender(t, api)

	_, err := s.Send(context.Background(), "", "hi")
	assert.Error(t, err)

	_, err = s.Send(context.Background(), "+15551234567", strings.Repeat("x", MaxBodyLength))
	assert.Error(t, err, "prefix pushes the body over the limit")

	assert.Empty(t, api.params)
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(&twilioclient.TwilioRestError{Status: 400, Code: 21211}))
	assert.False(t, IsClientError(&twilioclient.TwilioRestError{Status: 503}))
	assert.False(t, IsClientError(io.EOF))
}

// =============================================================================
// Inbound validation
// =============================================================================

// sign computes X-Twilio-Signature the way Twilio does.
func sign(token, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestRequestValidator(t *testing.T) {
	v, err := NewRequestValidator(testConfig)
	require.NoError(t, err)

	url := "https://api.acme.test/api/sms/inbound/"
	params := map[string]string{
		"From": "+15551234567",
		"To":   testConfig.PhoneNumber,
		"Body": "hello",
	}
	good := sign(testConfig.AuthToken, url, params)

	assert.True(t, v.Validate(url, params, good))
	assert.False(t, v.Validate(url, params, ""), "missing signature")
	assert.False(t, v.Validate(url, params, sign("other-token", url, params)), "wrong token")

	other := map[string]string{"From": "+15551234567", "To": "+15550000000", "Body": "hello"}
	assert.False(t, v.Validate(url, other, sign(testConfig.AuthToken, url, other)), "not our number")
}
