package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/tenantly/internal/appstore"
	"github.com/DukeRupert/tenantly/internal/domain"
	"github.com/DukeRupert/tenantly/internal/metrics"
	"github.com/DukeRupert/tenantly/internal/repository"
	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// WebhookProviderApple is the webhook_events provider for App Store notifications.
const WebhookProviderApple = "apple"

// =============================================================================
// Interface Definition
// =============================================================================

// AppleService applies App Store purchases to subscription records.
type AppleService interface {
	// HandleNotification verifies an App Store Server Notification and
	// applies it. A payload that fails verification is logged and dropped.
	// Returns domain.EINVALID for malformed input and domain.ENOTFOUND when
	// no account carries the transaction's appAccountToken.
	HandleNotification(ctx context.Context, signedPayload string) error

	// SyncTransaction fetches the transaction history for transactionID
	// and applies the latest signed transaction.
	// Returns domain.EINVALID when the history is empty.
	SyncTransaction(ctx context.Context, transactionID string) error
}

// =============================================================================
// Implementation
// =============================================================================

type appleService struct {
	store    repository.Store
	verifier appstore.EnvironmentVerifier
	history  appstore.HistoryFetcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewAppleService creates a new AppleService. verifier and history may be
// nil when Apple is not configured; the operations needing them return
// domain.ENOTIMPL.
func NewAppleService(store repository.Store, verifier appstore.EnvironmentVerifier, history appstore.HistoryFetcher, logger *slog.Logger) AppleService {
	return &appleService{
		store:    store,
		verifier: verifier,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleNotification processes one signedPayload.
func (s *appleService) HandleNotification(ctx context.Context, signedPayload string) error {
	const op = "apple.handle_notification"

	if signedPayload == "" {
		return domain.Invalid(op, "Signed payload not provided")
	}
	if s.verifier == nil {
		return domain.NotConfigured(op, "App Store receipt verification")
	}

	notification, err := s.verifier.VerifyNotification(signedPayload)
	if err != nil {
		return s.verificationFailure(op, "notification", err)
	}

	kind := notification.NotificationType
	metricType := kind
	if metricType == "" {
		metricType = "unknown"
	}

	switch kind {
	case appstore.NotificationTest:
		s.logger.Info("apple test notification received", "notification_uuid", notification.NotificationUUID)
		metrics.WebhookEvents.WithLabelValues(WebhookProviderApple, metricType, "applied").Inc()
		return nil
	case appstore.NotificationSubscribed, appstore.NotificationDidRenew,
		appstore.NotificationExpired, appstore.NotificationRevoke, appstore.NotificationRefund:
	default:
		s.logger.Info("unhandled apple notification", "type", kind, "subtype", notification.Subtype)
		metrics.WebhookEvents.WithLabelValues(WebhookProviderApple, metricType, "ignored").Inc()
		return nil
	}

	if notification.Data == nil || notification.Data.SignedTransactionInfo == "" {
		metrics.WebhookEvents.WithLabelValues(WebhookProviderApple, metricType, "malformed").Inc()
		return domain.Invalid(op, "Notification has no signed transaction")
	}

	tx, err := s.verifier.VerifyTransaction(notification.Data.SignedTransactionInfo)
	if err != nil {
		return s.verificationFailure(op, "transaction", err)
	}

	expire := kind == appstore.NotificationExpired || kind == appstore.NotificationRevoke || kind == appstore.NotificationRefund

	outcome, err := s.apply(ctx, op, notification.NotificationUUID, kind, tx, expire)
	metrics.WebhookEvents.WithLabelValues(WebhookProviderApple, metricType, outcome).Inc()
	return err
}

// SyncTransaction handles the manual receipt endpoint.
func (s *appleService) SyncTransaction(ctx context.Context, transactionID string) error {
	const op = "apple.sync_transaction"

	if transactionID == "" {
		return domain.Invalid(op, "Transaction ID not provided")
	}
	if s.history == nil {
		return domain.NotConfigured(op, "App Store Server API")
	}
	if s.verifier == nil {
		return domain.NotConfigured(op, "App Store receipt verification")
	}

	signed, err := appstore.AllSignedTransactions(ctx, s.history, transactionID)
	if err != nil {
		s.logger.Warn("apple transaction history failed", "transaction_id", transactionID, "error", err)
		return domain.Wrap(err, domain.EINVALID, op, "Failed to fetch transaction history")
	}
	if len(signed) == 0 {
		return domain.Invalid(op, "No transactions found")
	}

	tx, err := s.verifier.VerifyTransaction(signed[len(signed)-1])
	if err != nil {
		if errors.Is(err, appstore.ErrMalformedPayload) {
			return domain.Wrap(err, domain.EINVALID, op, "Malformed transaction")
		}
		s.logger.Warn("apple transaction failed verification", "transaction_id", transactionID, "error", err)
		return domain.Wrap(err, domain.EINVALID, op, "Transaction could not be verified")
	}

	_, err = s.apply(ctx, op, "", "MANUAL", tx, false)
	return err
}

// verificationFailure maps a verifier error. Malformed input is rejected;
// anything else is logged and dropped so Apple stops retrying.
func (s *appleService) verificationFailure(op, kind string, err error) error {
	if errors.Is(err, appstore.ErrMalformedPayload) {
		metrics.WebhookEvents.WithLabelValues(WebhookProviderApple, kind, "malformed").Inc()
		return domain.Wrap(err, domain.EINVALID, op, "Malformed signed payload")
	}
	metrics.WebhookEvents.WithLabelValues(WebhookProviderApple, kind, "unverified").Inc()
	s.logger.Warn("apple payload failed verification", "kind", kind, "error", err)
	return nil
}

// apply records eventID (when set) and upserts or expires the subscription
// of the account whose apple_account_token matches tx.AppAccountToken.
func (s *appleService) apply(ctx context.Context, op, eventID, kind string, tx *appstore.TransactionPayload, expire bool) (string, error) {
	token, err := uuid.Parse(tx.AppAccountToken)
	if err != nil {
		s.logger.Error("apple transaction without a usable appAccountToken",
			"transaction_id", tx.TransactionID,
			"app_account_token", tx.AppAccountToken,
		)
		return "orphan", domain.NotFound(op, "account", tx.AppAccountToken)
	}

	raw, err := json.Marshal(tx)
	if err != nil {
		return "error", domain.Internal(err, op, "failed to encode transaction")
	}

	sandbox := tx.Environment.IsSandbox()
	outcome, action := "applied", "renewed"

	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		if eventID != "" {
			n, err := q.RecordWebhookEvent(ctx, repository.RecordWebhookEventParams{
				Provider:  WebhookProviderApple,
				EventID:   eventID,
				EventType: kind,
			})
			if err != nil {
				return err
			}
			if n == 0 {
				outcome = "duplicate"
				return nil
			}
		}

		account, err := q.GetAccountByAppleToken(ctx, token)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = "orphan"
				return nil
			}
			return err
		}

		if expire {
			action = "expired"
			_, err := q.ExpireSubscription(ctx, repository.ExpireSubscriptionParams{
				AccountID: account.ID,
				ExpiresAt: s.now(),
			})
			return err
		}

		_, err = q.UpsertSubscription(ctx, repository.UpsertSubscriptionParams{
			AccountID:         account.ID,
			Platform:          string(domain.PlatformApple),
			ProductIdentifier: tx.ProductID,
			ExpiresAt:         domain.AppleExpiration(tx.ExpiresAt(), sandbox),
			PlatformPayload:   pqtype.NullRawMessage{RawMessage: raw, Valid: true},
			IsSandbox:         sandbox,
		})
		return err
	})
	if err != nil {
		return "error", domain.Internal(err, op, "failed to apply apple transaction")
	}

	switch outcome {
	case "orphan":
		s.logger.Error("apple transaction for unknown account",
			"transaction_id", tx.TransactionID,
			"app_account_token", token,
		)
		return outcome, domain.NotFound(op, "account", token.String())
	case "duplicate":
		s.logger.Info("apple notification already processed", "notification_uuid", eventID)
		return outcome, nil
	}

	metrics.SubscriptionUpserts.WithLabelValues(string(domain.PlatformApple), action).Inc()
	s.logger.Info("apple subscription updated",
		"transaction_id", tx.TransactionID,
		"product_id", tx.ProductID,
		"action", action,
		"sandbox", sandbox,
	)
	return outcome, nil
}
