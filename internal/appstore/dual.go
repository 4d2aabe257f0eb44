package appstore

import (
	"errors"
	"log/slog"

	"github.com/DukeRupert/tenantly/internal/metrics"
)

// EnvironmentVerifier verifies payloads for one environment.
// *SignedDataVerifier implements it.
type EnvironmentVerifier interface {
	VerifyNotification(signed string) (*NotificationPayload, error)
	VerifyTransaction(signed string) (*TransactionPayload, error)
}

// DualVerifier verifies against production first and sandbox second.
type DualVerifier struct {
	Production EnvironmentVerifier
	Sandbox    EnvironmentVerifier
	Logger     *slog.Logger
}

// NewDualVerifier creates a DualVerifier.
func NewDualVerifier(production, sandbox EnvironmentVerifier, logger *slog.Logger) *DualVerifier {
	return &DualVerifier{
		Production: production,
		Sandbox:    sandbox,
		Logger:     logger,
	}
}

// VerifyNotification verifies a notification signedPayload.
func (d *DualVerifier) VerifyNotification(signed string) (*NotificationPayload, error) {
	return verifyWithFallback(d, "notification", signed, d.Production.VerifyNotification, d.Sandbox.VerifyNotification)
}

// VerifyTransaction verifies a signed transaction.
func (d *DualVerifier) VerifyTransaction(signed string) (*TransactionPayload, error) {
	return verifyWithFallback(d, "transaction", signed, d.Production.VerifyTransaction, d.Sandbox.VerifyTransaction)
}

// verifyWithFallback returns the production result when it verifies. A
// malformed payload fails at once. Any other production failure is retried
// in sandbox; if sandbox fails too the production error is returned.
func verifyWithFallback[T any](d *DualVerifier, kind, signed string, production, sandbox func(string) (T, error)) (T, error) {
	v, prodErr := production(signed)
	if prodErr == nil {
		metrics.ReceiptVerifications.WithLabelValues(kind, "production").Inc()
		return v, nil
	}
	if errors.Is(prodErr, ErrMalformedPayload) {
		metrics.ReceiptVerifications.WithLabelValues(kind, "malformed").Inc()
		return v, prodErr
	}

	v, sandboxErr := sandbox(signed)
	if sandboxErr == nil {
		metrics.ReceiptVerifications.WithLabelValues(kind, "sandbox").Inc()
		return v, nil
	}

	if d.Logger != nil {
		d.Logger.Debug("sandbox verification failed after production",
			"kind", kind,
			"production_error", prodErr,
			"sandbox_error", sandboxErr,
		)
	}
	metrics.ReceiptVerifications.WithLabelValues(kind, "failed").Inc()

	var zero T
	return zero, prodErr
}
