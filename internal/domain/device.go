package domain

import (
	"time"

	"github.com/google/uuid"
)

// DevicePlatform tells the push sender which gateway serves a token.
type DevicePlatform string

const (
	DevicePlatformIOS     DevicePlatform = "ios"
	DevicePlatformAndroid DevicePlatform = "android"
)

// Valid reports whether p is a known platform.
func (p DevicePlatform) Valid() bool {
	return p == DevicePlatformIOS || p == DevicePlatformAndroid
}

// DeviceToken is the push token registered by a user's device. A user has at most one.
type DeviceToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Token     string
	Platform  DevicePlatform
	CreatedAt time.Time
	UpdatedAt time.Time
}
