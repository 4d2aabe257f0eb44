// Package push delivers notifications to a user's registered device: APNs
// for iOS tokens and Firebase Cloud Messaging for Android tokens.
package push

import (
	"context"
	"errors"
	"fmt"

	"github.com/DukeRupert/tenantly/internal/domain"
)

// Errors returned by senders.
var (
	// ErrUnregistered means the gateway no longer accepts the device token.
	ErrUnregistered = errors.New("device token is no longer registered")

	// ErrNoGateway means no sender is configured for the device platform.
	ErrNoGateway = errors.New("no push gateway configured for platform")
)

// Notification is the user-visible alert plus optional custom data.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a notification to one device token.
type Sender interface {
	Send(ctx context.Context, token string, n Notification) error
}

// Router picks the gateway by device platform. Either field may be nil.
type Router struct {
	APNs Sender
	FCM  Sender
}

// Send delivers n to device.
func (r *Router) Send(ctx context.Context, device domain.DeviceToken, n Notification) error {
	var s Sender
	switch device.Platform {
	case domain.DevicePlatformIOS, "":
		s = r.APNs
	case domain.DevicePlatformAndroid:
		s = r.FCM
	}
	if s == nil {
		return fmt.Errorf("%w: %q", ErrNoGateway, device.Platform)
	}
	return s.Send(ctx, device.Token, n)
}
