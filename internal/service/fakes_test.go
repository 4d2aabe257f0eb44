package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/tenantly/internal/billing"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// In-memory Store
// =============================================================================

// fakeStore implements the subset of repository.Querier the services call.
// Calling any other method panics on the nil embedded Querier.
type fakeStore struct {
	repository.Querier

	mu        sync.Mutex
	users     map[uuid.UUID]repository.User
	tokens    map[string]uuid.UUID
	accounts  map[uuid.UUID]repository.Account
	subs      map[uuid.UUID]repository.Subscription
	events    map[string]bool
	teams     []repository.Team
	contacts  []repository.ContactSubmission
	jobs      []repository.Job
	devices   map[uuid.UUID]repository.DeviceToken
	sites     map[uuid.UUID]repository.Site
	siteAttrs map[uuid.UUID]repository.SiteAttribute
	upserts   int
	expiries  int
	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[uuid.UUID]repository.User),
		tokens:    make(map[string]uuid.UUID),
		accounts:  make(map[uuid.UUID]repository.Account),
		subs:      make(map[uuid.UUID]repository.Subscription),
		events:    make(map[string]bool),
		devices:   make(map[uuid.UUID]repository.DeviceToken),
		sites:     make(map[uuid.UUID]repository.Site),
		siteAttrs: make(map[uuid.UUID]repository.SiteAttribute),
	}
}

func (f *fakeStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	return fn(f)
}

// addAccount inserts an account and returns it.
func (f *fakeStore) addAccount(userID, teamID uuid.NullUUID, customerID string) repository.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := repository.Account{
		ID:                uuid.New(),
		UserID:            userID,
		TeamID:            teamID,
		StripeCustomerID:  sql.NullString{String: customerID, Valid: customerID != ""},
		AppleAccountToken: uuid.New(),
		CreatedAt:         time.Now(),
	}
	f.accounts[a.ID] = a
	return a
}

func (f *fakeStore) CreateUser(_ context.Context, arg repository.CreateUserParams) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return repository.User{}, f.createErr
	}
	u := repository.User{
		ID:           uuid.New(),
		SiteID:       arg.SiteID,
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		FirstName:    arg.FirstName,
		LastName:     arg.LastName,
		IsActive:     true,
		Timezone:     "America/New_York",
		DateJoined:   time.Now(),
	}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return repository.User{}, sql.ErrNoRows
}

func (f *fakeStore) GetUserByTokenHash(_ context.Context, hash string) (repository.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[hash]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return f.users[id], nil
}

func (f *fakeStore) CreateAPIToken(_ context.Context, arg repository.CreateAPITokenParams) (repository.ApiToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[arg.TokenHash] = arg.UserID
	return repository.ApiToken{ID: uuid.New(), UserID: arg.UserID, TokenHash: arg.TokenHash}, nil
}

func (f *fakeStore) DeleteAPIToken(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, hash)
	return nil
}

func (f *fakeStore) TouchAPIToken(context.Context, string) error { return nil }

func (f *fakeStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
	return nil
}

func (f *fakeStore) UpsertDeviceToken(_ context.Context, arg repository.UpsertDeviceTokenParams) (repository.DeviceToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := repository.DeviceToken{ID: uuid.New(), UserID: arg.UserID, Token: arg.Token, Platform: arg.Platform}
	f.devices[arg.UserID] = d
	return d, nil
}

func (f *fakeStore) CreateAccount(_ context.Context, arg repository.CreateAccountParams) (repository.Account, error) {
	return f.addAccount(arg.UserID, arg.TeamID, ""), nil
}

func (f *fakeStore) findAccount(match func(repository.Account) bool) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.accounts {
		if match(a) {
			return a, nil
		}
	}
	return repository.Account{}, sql.ErrNoRows
}

func (f *fakeStore) GetAccountByUserID(_ context.Context, userID uuid.NullUUID) (repository.Account, error) {
	return f.findAccount(func(a repository.Account) bool { return a.UserID == userID })
}

func (f *fakeStore) GetAccountByStripeCustomerID(_ context.Context, id sql.NullString) (repository.Account, error) {
	return f.findAccount(func(a repository.Account) bool { return a.StripeCustomerID == id })
}

func (f *fakeStore) GetAccountByAppleToken(_ context.Context, token uuid.UUID) (repository.Account, error) {
	return f.findAccount(func(a repository.Account) bool { return a.AppleAccountToken == token })
}

func (f *fakeStore) SetAccountStripeCustomerID(_ context.Context, arg repository.SetAccountStripeCustomerIDParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[arg.ID]
	a.StripeCustomerID = arg.StripeCustomerID
	f.accounts[arg.ID] = a
	return nil
}

func (f *fakeStore) AddAccountBalance(_ context.Context, arg repository.AddAccountBalanceParams) (repository.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.accounts[arg.ID]
	a.BalanceCents += arg.BalanceCents
	f.accounts[arg.ID] = a
	return a, nil
}

func (f *fakeStore) GetActiveSubscriptionForUser(_ context.Context, arg repository.GetActiveSubscriptionForUserParams) (repository.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owned := func(a repository.Account) bool {
		if a.UserID == arg.UserID {
			return true
		}
		for _, t := range f.teams {
			if a.TeamID.Valid && a.TeamID.UUID == t.ID && t.OwnerID == arg.UserID {
				return true
			}
		}
		return false
	}
	for _, s := range f.subs {
		if owned(f.accounts[s.AccountID]) && s.ExpiresAt.After(arg.Now) {
			return s, nil
		}
	}
	return repository.Subscription{}, sql.ErrNoRows
}

func (f *fakeStore) UpsertSubscription(_ context.Context, arg repository.UpsertSubscriptionParams) (repository.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	s, ok := f.subs[arg.AccountID]
	if !ok {
		s = repository.Subscription{ID: uuid.New(), AccountID: arg.AccountID, CreatedAt: time.Now()}
	}
	s.Platform = arg.Platform
	s.ProductIdentifier = arg.ProductIdentifier
	s.ExpiresAt = arg.ExpiresAt
	s.PlatformPayload = arg.PlatformPayload
	s.IsSandbox = arg.IsSandbox
	f.subs[arg.AccountID] = s
	return s, nil
}

func (f *fakeStore) ExpireSubscription(_ context.Context, arg repository.ExpireSubscriptionParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiries++
	s, ok := f.subs[arg.AccountID]
	if !ok {
		return 0, nil
	}
	s.ExpiresAt = arg.ExpiresAt
	f.subs[arg.AccountID] = s
	return 1, nil
}

func (f *fakeStore) RecordWebhookEvent(_ context.Context, arg repository.RecordWebhookEventParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := arg.Provider + ":" + arg.EventID
	if f.events[key] {
		return 0, nil
	}
	f.events[key] = true
	return 1, nil
}

func (f *fakeStore) CountTeamsByOwner(_ context.Context, owner uuid.NullUUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, t := range f.teams {
		if t.OwnerID == owner {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) TeamSlugExists(_ context.Context, slug string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.teams {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateTeam(_ context.Context, arg repository.CreateTeamParams) (repository.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := repository.Team{ID: uuid.New(), Name: arg.Name, Slug: arg.Slug, OwnerID: arg.OwnerID, CreatedAt: time.Now()}
	f.teams = append(f.teams, t)
	return t, nil
}

func (f *fakeStore) ListTeamsByOwner(_ context.Context, owner uuid.NullUUID) ([]repository.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Team
	for _, t := range f.teams {
		if t.OwnerID == owner {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateContactSubmission(_ context.Context, arg repository.CreateContactSubmissionParams) (repository.ContactSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := repository.ContactSubmission{
		ID:        uuid.New(),
		SiteID:    arg.SiteID,
		Name:      arg.Name,
		Email:     arg.Email,
		Message:   arg.Message,
		CreatedAt: time.Now(),
	}
	f.contacts = append(f.contacts, c)
	return c, nil
}

func (f *fakeStore) EnqueueJob(_ context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := repository.Job{ID: uuid.New(), JobType: arg.JobType, Payload: arg.Payload, Status: "pending"}
	f.jobs = append(f.jobs, j)
	return j, nil
}

func (f *fakeStore) addSite(domainName string) repository.Site {
	f.mu.Lock()
	defer f.mu.Unlock()
	site := repository.Site{ID: uuid.New(), Domain: domainName, Name: domainName, CreatedAt: time.Now()}
	f.sites[site.ID] = site
	return site
}

func (f *fakeStore) GetSiteByDomain(_ context.Context, domainName string) (repository.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, site := range f.sites {
		if site.Domain == domainName {
			return site, nil
		}
	}
	return repository.Site{}, sql.ErrNoRows
}

func (f *fakeStore) GetSiteByID(_ context.Context, id uuid.UUID) (repository.Site, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if site, ok := f.sites[id]; ok {
		return site, nil
	}
	return repository.Site{}, sql.ErrNoRows
}

func (f *fakeStore) GetSiteAttributes(_ context.Context, siteID uuid.UUID) (repository.SiteAttribute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.siteAttrs[siteID]; ok {
		return a, nil
	}
	return repository.SiteAttribute{}, sql.ErrNoRows
}

func (f *fakeStore) UpsertSiteAttributes(_ context.Context, arg repository.UpsertSiteAttributesParams) (repository.SiteAttribute, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := repository.SiteAttribute{
		SiteID:           arg.SiteID,
		S3FrontendFolder: arg.S3FrontendFolder,
		StripeProductID:  arg.StripeProductID,
		StripePriceCents: arg.StripePriceCents,
		FromEmail:        arg.FromEmail,
		UpdatedAt:        time.Now(),
	}
	f.siteAttrs[arg.SiteID] = a
	return a, nil
}

// =============================================================================
// Stripe fake
// =============================================================================

type fakeStripe struct {
	customers   int
	chargeErr   error
	charged     []int64
	checkout    billing.CheckoutParams
	checkoutErr error
}

var _ billing.Service = (*fakeStripe)(nil)

func (f *fakeStripe) CreateCustomer(email, name string) (string, error) {
	f.customers++
	return "cus_test", nil
}

func (f *fakeStripe) CreateCheckoutSession(p billing.CheckoutParams) (string, error) {
	f.checkout = p
	if f.checkoutErr != nil {
		return "", f.checkoutErr
	}
	return "https://checkout.stripe.test/session", nil
}

func (f *fakeStripe) CreatePortalSession(customerID, returnURL string) (string, error) {
	return "https://billing.stripe.test/" + customerID, nil
}

func (f *fakeStripe) ChargeCard(customerID, paymentMethodID string, amountCents int64) (string, error) {
	if f.chargeErr != nil {
		return "", f.chargeErr
	}
	f.charged = append(f.charged, amountCents)
	return "pi_test", nil
}

func (f *fakeStripe) ListPayments(customerID string) ([]billing.Payment, error) {
	return nil, nil
}

func (f *fakeStripe) VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error) {
	return stripe.Event{}, nil
}
