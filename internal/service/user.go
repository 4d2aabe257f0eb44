// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Transaction coordination
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/DukeRupert/tenantly/internal/billing"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// It is deliberately not configurable at runtime.
	BcryptCost = 12

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72

	// DeleteConfirmation must be sent verbatim to delete an account.
	DeleteConfirmation = "yes"
)

// dummyHash is a bcrypt hash compared against when the email is unknown, so
// a missing user costs as much time as a wrong password.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// commonPasswords is a short deny list of passwords that satisfy the length
// rule but are guessed first.
var commonPasswords = map[string]bool{
	"password":  true,
	"password1": true,
	"12345678":  true,
	"123456789": true,
	"qwerty123": true,
	"letmein1":  true,
	"welcome1":  true,
	"admin123":  true,
	"iloveyou":  true,
	"sunshine":  true,
}

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines the interface for user-related operations.
type UserService interface {
	// Register creates a user on the given site together with a personal
	// account and returns an API token.
	// Returns domain.ECONFLICT if the email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error)

	// Login authenticates a user and issues a new API token.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, email, password string) (*domain.LoginResult, error)

	// Logout revokes a raw API token. Unknown tokens are not an error.
	Logout(ctx context.Context, token string) error

	// Authenticate resolves a raw API token to its active user.
	// Returns domain.EUNAUTHORIZED if the token is unknown or the user inactive.
	Authenticate(ctx context.Context, token string) (*domain.User, error)

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// Profile returns the serialized view of the user, including balance
	// and active subscription product.
	Profile(ctx context.Context, user *domain.User) (*domain.UserProfile, error)

	// RegisterDevice creates or replaces the user's push token.
	RegisterDevice(ctx context.Context, userID uuid.UUID, token string, platform domain.DevicePlatform) (*domain.DeviceToken, error)

	// Delete removes the user and everything owned by it. confirm must equal
	// DeleteConfirmation.
	Delete(ctx context.Context, userID uuid.UUID, confirm string) error
}

// =============================================================================
// Implementation
// =============================================================================

// userService is the concrete implementation of UserService.
type userService struct {
	store   repository.Store
	billing billing.Service
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserService creates a new UserService instance.
//
// billingSvc may be nil, in which case no Stripe customer is created at
// registration.
func NewUserService(store repository.Store, billingSvc billing.Service, logger *slog.Logger) UserService {
	return &userService{
		store:   store,
		billing: billingSvc,
		logger:  logger,
		now:     time.Now,
	}
}

// =============================================================================
// Register / Login / Logout
// =============================================================================

// Register creates the user and its personal account in one transaction,
// then makes a best-effort Stripe customer and issues a token.
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.LoginResult, error) {
	const op = "user.register"

	params.Email = domain.NormalizeEmail(params.Email)
	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	_, err := s.store.GetUserByEmail(ctx, params.Email)
	if err == nil {
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Email already registered")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Internal(err, op, "failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to hash password")
	}

	var (
		repoUser    repository.User
		repoAccount repository.Account
	)
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		var txErr error
		repoUser, txErr = q.CreateUser(ctx, repository.CreateUserParams{
			SiteID:       domain.ToNullUUID(params.SiteID),
			Email:        params.Email,
			PasswordHash: string(passwordHash),
			FirstName:    params.FirstName,
			LastName:     params.LastName,
		})
		if txErr != nil {
			return txErr
		}
		userCol, teamCol := domain.OwnerColumns(domain.UserOwner{UserID: repoUser.ID})
		repoAccount, txErr = q.CreateAccount(ctx, repository.CreateAccountParams{
			UserID: userCol,
			TeamID: teamCol,
		})
		return txErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "Email already registered")
		}
		return nil, domain.Internal(err, op, "failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.attachStripeCustomer(ctx, user, repoAccount.ID)

	token, err := s.issueToken(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to issue token")
	}

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)

	return &domain.LoginResult{User: user, Token: token}, nil
}

// attachStripeCustomer creates a Stripe customer for the account. Failures
// are logged; checkout creates the customer lazily later.
func (s *userService) attachStripeCustomer(ctx context.Context, user *domain.User, accountID uuid.UUID) {
	if s.billing == nil {
		return
	}

	customerID, err := s.billing.CreateCustomer(user.Email, user.FullName())
	if err != nil {
		s.logger.Warn("failed to create stripe customer", "user_id", user.ID, "error", err)
		return
	}

	err = s.store.SetAccountStripeCustomerID(ctx, repository.SetAccountStripeCustomerIDParams{
		ID:               accountID,
		StripeCustomerID: domain.ToNullString(customerID),
	})
	if err != nil {
		s.logger.Warn("failed to save stripe customer", "user_id", user.ID, "customer_id", customerID, "error", err)
	}
}

// Login authenticates a user and issues a new API token.
func (s *userService) Login(ctx context.Context, email, password string) (*domain.LoginResult, error) {
	const op = "user.login"

	email = domain.NormalizeEmail(email)

	repoUser, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid email or password")
		}
		return nil, domain.Internal(err, op, "failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}
	if !repoUser.IsActive {
		return nil, domain.Unauthorized(op, "Invalid email or password")
	}

	token, err := s.issueToken(ctx, repoUser.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to issue token")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID)

	return &domain.LoginResult{User: user, Token: token}, nil
}

// Logout is idempotent.
func (s *userService) Logout(ctx context.Context, token string) error {
	if len(token) != 2*domain.TokenBytes {
		return nil
	}

	if err := s.store.DeleteAPIToken(ctx, hashToken(token)); err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to delete api token", "error", err)
	}

	s.logger.Debug("api token revoked")
	return nil
}

func (s *userService) issueToken(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	_, err = s.store.CreateAPIToken(ctx, repository.CreateAPITokenParams{
		UserID:    userID,
		TokenHash: hashToken(token),
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// =============================================================================
// Lookups
// =============================================================================

// Authenticate resolves a raw API token.
func (s *userService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	const op = "user.authenticate"

	if len(token) != 2*domain.TokenBytes {
		return nil, domain.Unauthorized(op, "Invalid token.")
	}

	tokenHash := hashToken(token)
	repoUser, err := s.store.GetUserByTokenHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid token.")
		}
		return nil, domain.Internal(err, op, "failed to look up token")
	}
	if !repoUser.IsActive {
		return nil, domain.Unauthorized(op, "User inactive or deleted.")
	}

	if err := s.store.TouchAPIToken(ctx, tokenHash); err != nil {
		s.logger.Debug("failed to touch api token", "user_id", repoUser.ID, "error", err)
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// GetByID retrieves a user by their ID.
func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user.get_by_id"

	repoUser, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "failed to get user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// Profile builds the /users/me view.
func (s *userService) Profile(ctx context.Context, user *domain.User) (*domain.UserProfile, error) {
	const op = "user.profile"

	profile := &domain.UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Balance:   domain.FormatCents(0),
		IsStaff:   user.IsStaff,
	}

	account, err := s.store.GetAccountByUserID(ctx, uuid.NullUUID{UUID: user.ID, Valid: true})
	switch {
	case err == nil:
		profile.Balance = domain.FormatCents(account.BalanceCents)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, domain.Internal(err, op, "failed to load account")
	}

	sub, err := s.store.GetActiveSubscriptionForUser(ctx, repository.GetActiveSubscriptionForUserParams{
		UserID: uuid.NullUUID{UUID: user.ID, Valid: true},
		Now:    s.now(),
	})
	switch {
	case err == nil:
		product := sub.ProductIdentifier
		profile.ActiveSubscription = &product
	case !errors.Is(err, sql.ErrNoRows):
		return nil, domain.Internal(err, op, "failed to load subscription")
	}

	return profile, nil
}

// =============================================================================
// Devices and deletion
// =============================================================================

// RegisterDevice stores the user's push token. An empty platform means iOS.
func (s *userService) RegisterDevice(ctx context.Context, userID uuid.UUID, token string, platform domain.DevicePlatform) (*domain.DeviceToken, error) {
	const op = "user.register_device"

	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.Invalid(op, "Token is required.")
	}
	if platform == "" {
		platform = domain.DevicePlatformIOS
	}
	if !platform.Valid() {
		return nil, domain.Invalid(op, "Platform must be ios or android.")
	}

	row, err := s.store.UpsertDeviceToken(ctx, repository.UpsertDeviceTokenParams{
		UserID:   userID,
		Token:    token,
		Platform: string(platform),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to save device token")
	}

	s.logger.Info("device token registered", "user_id", userID, "platform", platform)

	return &domain.DeviceToken{
		ID:        row.ID,
		UserID:    row.UserID,
		Token:     row.Token,
		Platform:  domain.DevicePlatform(row.Platform),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// Delete removes the user. Accounts, tokens and devices cascade.
func (s *userService) Delete(ctx context.Context, userID uuid.UUID, confirm string) error {
	const op = "user.delete"

	if confirm != DeleteConfirmation {
		return domain.Invalid(op, `Please confirm account deletion by sending {"confirm": "yes"}.`)
	}

	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return domain.Internal(err, op, "failed to delete user")
	}

	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

// =============================================================================
// Validation
// =============================================================================

// validateEmail performs a basic format check. Length follows RFC 5321.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Email is required")
	}
	if len(email) > 254 {
		return domain.Invalid("", "Email must be 254 characters or less")
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 || strings.Count(email, "@") != 1 {
		return domain.Invalid("", "Enter a valid email address")
	}
	if !strings.Contains(email[at+1:], ".") || strings.Contains(email, "..") {
		return domain.Invalid("", "Enter a valid email address")
	}
	return nil
}

// validatePassword enforces length, rejects all-digit passwords and a small
// list of common ones.
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "Password must be 72 characters or less")
	}
	if commonPasswords[strings.ToLower(password)] {
		return domain.Invalid("", "Password is too common")
	}
	if strings.Trim(password, "0123456789") == "" {
		return domain.Invalid("", "Password cannot be entirely numeric")
	}
	return nil
}
