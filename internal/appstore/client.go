package appstore

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	ProductionAPIURL = "https://api.storekit.itunes.apple.com"
	SandboxAPIURL    = "https://api.storekit-sandbox.itunes.apple.com"

	apiAudience = "appstoreconnect-v1"
	tokenTTL    = 5 * time.Minute
)

// HistoryResponse is one page of GET /inApps/v2/history.
type HistoryResponse struct {
	Revision           string      `json:"revision"`
	HasMore            bool        `json:"hasMore"`
	BundleID           string      `json:"bundleId"`
	AppAppleID         int64       `json:"appAppleId"`
	Environment        Environment `json:"environment"`
	SignedTransactions []string    `json:"signedTransactions"`
}

// Credentials are the In-App Purchase key issued in App Store Connect.
type Credentials struct {
	KeyID      string
	IssuerID   string
	BundleID   string
	PrivateKey *ecdsa.PrivateKey
}

// ParsePrivateKey parses the contents of a .p8 key file.
func ParsePrivateKey(p8 []byte) (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(p8)
	if err != nil {
		return nil, fmt.Errorf("parse storekit key: %w", err)
	}
	return key, nil
}

// Client calls the App Store Server API for one environment.
type Client struct {
	baseURL     string
	environment Environment
	creds       Credentials
	httpClient  *http.Client
	now         func() time.Time
}

// NewClient creates a Client for environment. baseURL may be empty to use
// Apple's host for that environment.
func NewClient(environment Environment, baseURL string, creds Credentials, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = ProductionAPIURL
		if environment.IsSandbox() {
			baseURL = SandboxAPIURL
		}
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     baseURL,
		environment: environment,
		creds:       creds,
		httpClient:  httpClient,
		now:         time.Now,
	}
}

type apiClaims struct {
	BundleID string `json:"bid"`
	jwt.RegisteredClaims
}

// bearerToken signs a short-lived API token.
func (c *Client) bearerToken() (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, apiClaims{
		BundleID: c.creds.BundleID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.creds.IssuerID,
			Audience:  jwt.ClaimStrings{apiAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	token.Header["kid"] = c.creds.KeyID
	return token.SignedString(c.creds.PrivateKey)
}

// TransactionHistory fetches one page of auto-renewable, non-revoked
// transactions for the customer who made transactionID, oldest first.
func (c *Client) TransactionHistory(ctx context.Context, transactionID, revision string) (*HistoryResponse, error) {
	q := url.Values{}
	q.Set("sort", "ASCENDING")
	q.Set("revoked", "false")
	q.Add("productType", "AUTO_RENEWABLE")
	if revision != "" {
		q.Set("revision", revision)
	}
	endpoint := fmt.Sprintf("%s/inApps/v2/history/%s?%s", c.baseURL, url.PathEscape(transactionID), q.Encode())

	token, err := c.bearerToken()
	if err != nil {
		return nil, fmt.Errorf("sign api token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transaction history: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read transaction history: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}

	var out HistoryResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode transaction history: %w", err)
	}
	return &out, nil
}

// HistoryFetcher fetches one page of transaction history. *Client implements it.
type HistoryFetcher interface {
	TransactionHistory(ctx context.Context, transactionID, revision string) (*HistoryResponse, error)
}

// DualClient queries production first and sandbox when production answers
// with an API error.
type DualClient struct {
	Production HistoryFetcher
	Sandbox    HistoryFetcher
}

// TransactionHistory fetches one page with sandbox fallback.
func (d *DualClient) TransactionHistory(ctx context.Context, transactionID, revision string) (*HistoryResponse, error) {
	resp, err := d.Production.TransactionHistory(ctx, transactionID, revision)
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) {
		return d.Sandbox.TransactionHistory(ctx, transactionID, revision)
	}
	return resp, err
}

// AllSignedTransactions follows revision/hasMore until every page is read.
func AllSignedTransactions(ctx context.Context, f HistoryFetcher, transactionID string) ([]string, error) {
	var (
		out      []string
		revision string
	)
	for {
		page, err := f.TransactionHistory(ctx, transactionID, revision)
		if err != nil {
			return nil, err
		}
		out = append(out, page.SignedTransactions...)
		if !page.HasMore {
			return out, nil
		}
		if page.Revision == "" || page.Revision == revision {
			return nil, fmt.Errorf("transaction history: hasMore without a new revision")
		}
		revision = page.Revision
	}
}
