package appstore

import (
	"time"
)

// Notification types handled by the webhook.
const (
	NotificationTest       = "TEST"
	NotificationSubscribed = "SUBSCRIBED"
	NotificationDidRenew   = "DID_RENEW"
	NotificationExpired    = "EXPIRED"
	NotificationRevoke     = "REVOKE"
	NotificationRefund     = "REFUND"
)

// NotificationPayload is the decoded body of an App Store Server Notification V2.
type NotificationPayload struct {
	NotificationType string            `json:"notificationType"`
	Subtype          string            `json:"subtype,omitempty"`
	NotificationUUID string            `json:"notificationUUID"`
	Version          string            `json:"version,omitempty"`
	SignedDate       int64             `json:"signedDate,omitempty"`
	Data             *NotificationData `json:"data,omitempty"`
	Summary          *NotificationData `json:"summary,omitempty"`
}

// NotificationData identifies the app and carries the nested signed transaction.
type NotificationData struct {
	Environment           Environment `json:"environment"`
	AppAppleID            int64       `json:"appAppleId,omitempty"`
	BundleID              string      `json:"bundleId"`
	BundleVersion         string      `json:"bundleVersion,omitempty"`
	SignedTransactionInfo string      `json:"signedTransactionInfo,omitempty"`
	SignedRenewalInfo     string      `json:"signedRenewalInfo,omitempty"`
	Status                int         `json:"status,omitempty"`
}

// app returns whichever of data or summary identifies the app.
func (p *NotificationPayload) app() *NotificationData {
	if p.Data != nil {
		return p.Data
	}
	return p.Summary
}

// TransactionPayload is a decoded JWSTransaction.
type TransactionPayload struct {
	TransactionID         string      `json:"transactionId"`
	OriginalTransactionID string      `json:"originalTransactionId"`
	BundleID              string      `json:"bundleId"`
	ProductID             string      `json:"productId"`
	SubscriptionGroupID   string      `json:"subscriptionGroupIdentifier,omitempty"`
	PurchaseDate          int64       `json:"purchaseDate,omitempty"`
	ExpiresDate           int64       `json:"expiresDate,omitempty"`
	RevocationDate        int64       `json:"revocationDate,omitempty"`
	AppAccountToken       string      `json:"appAccountToken,omitempty"`
	Type                  string      `json:"type,omitempty"`
	Environment           Environment `json:"environment"`
	SignedDate            int64       `json:"signedDate,omitempty"`
	Storefront            string      `json:"storefront,omitempty"`
}

// ExpiresAt converts ExpiresDate (milliseconds since the epoch) to a time.
func (t *TransactionPayload) ExpiresAt() time.Time {
	return time.UnixMilli(t.ExpiresDate).UTC()
}
