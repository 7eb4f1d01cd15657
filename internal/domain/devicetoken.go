package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DeviceToken-specific validation errors.
var (
	// ErrDeviceTokenEmpty is returned when the raw token value is empty.
	ErrDeviceTokenEmpty = errors.New("device token cannot be empty")

	// ErrDeviceTokenOwnerIDEmpty is returned when the owner ID is empty or nil.
	ErrDeviceTokenOwnerIDEmpty = errors.New("device token owner ID cannot be empty")
)

// DeviceToken represents one push-delivery endpoint belonging to a user.
// The raw token value doubles as the record key, which prevents duplicate
// registrations and lets the delivery pipeline deactivate an invalid token
// without knowing its owner in advance.
type DeviceToken struct {
	Token      string    `json:"-"` // never exposed in JSON
	OwnerID    uuid.UUID `json:"owner_id"`
	DeviceType string    `json:"device_type"`
	IsActive   bool      `json:"is_active"`
	LastUsed   time.Time `json:"last_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDeviceToken creates an active device token registration.
func NewDeviceToken(ownerID uuid.UUID, token, deviceType string) (*DeviceToken, error) {
	now := time.Now().UTC()
	dt := &DeviceToken{
		Token:      token,
		OwnerID:    ownerID,
		DeviceType: deviceType,
		IsActive:   true,
		LastUsed:   now,
		CreatedAt:  now,
	}
	if err := dt.Validate(); err != nil {
		return nil, err
	}
	return dt, nil
}

// Validate checks if the DeviceToken has valid data.
func (d *DeviceToken) Validate() error {
	if d.Token == "" {
		return ErrDeviceTokenEmpty
	}
	if d.OwnerID == uuid.Nil {
		return ErrDeviceTokenOwnerIDEmpty
	}
	return nil
}
