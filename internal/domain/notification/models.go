package notification

import (
	"errors"
	"time"
)

// Push routes understood by the mobile app.
const (
	RouteTransactions = "transactions"
	RouteAccounts     = "accounts"
)

var validPlatforms = map[string]struct{}{
	"ios":     {},
	"android": {},
	"web":     {},
}

// Domain errors
var (
	ErrDeviceTokenNotFound = errors.New("device token not found")
	ErrInvalidToken        = errors.New("device token is required")
	ErrInvalidPlatform     = errors.New("platform must be 'ios', 'android' or 'web'")
	ErrInvalidUserID       = errors.New("valid user ID is required")
)

// DeviceToken is a registered push target.
type DeviceToken struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"-"`
	Platform  string    `json:"platform"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type RegisterDeviceParams struct {
	UserID   int64
	Token    string
	Platform string
}

func (p RegisterDeviceParams) Validate() error {
	if p.UserID <= 0 {
		return ErrInvalidUserID
	}
	if p.Token == "" {
		return ErrInvalidToken
	}
	if !IsValidPlatform(p.Platform) {
		return ErrInvalidPlatform
	}
	return nil
}

func IsValidPlatform(p string) bool {
	_, ok := validPlatforms[p]
	return ok
}
