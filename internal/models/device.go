package models

import (
	"time"
)

// DeviceStatus represents the operational state of a wash-bay device
type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "online"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
	DeviceStatusError       DeviceStatus = "error"
	DeviceStatusDisabled    DeviceStatus = "disabled"
)

// RegistrationStatus represents the verification state of a device
// against the central device-management backend.
type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationVerified RegistrationStatus = "verified"
	RegistrationRejected RegistrationStatus = "rejected"
)

// Device represents a physical wash-bay device
type Device struct {
	BaseModel

	// Identifiers
	DeviceID string `json:"deviceId" db:"device_id"`
	Name     string `json:"name" db:"name"`
	Location string `json:"location" db:"location"`

	// Network endpoint
	IPAddress *string `json:"ipAddress,omitempty" db:"ip_address"`
	Port      *int    `json:"port,omitempty" db:"port"`

	// Status
	Status   DeviceStatus `json:"status" db:"status"`
	IsActive bool         `json:"isActive" db:"is_active"`
	LastSeen *time.Time   `json:"lastSeen,omitempty" db:"last_seen"`

	// Registration
	RegistrationStatus   RegistrationStatus `json:"registrationStatus" db:"registration_status"`
	RegistrationMessage  string             `json:"registrationMessage" db:"registration_message"`
	LastHandshakeAttempt *time.Time         `json:"lastHandshakeAttempt,omitempty" db:"last_handshake_attempt"`

	// Free-form settings document written by template application
	Settings Variables `json:"settings,omitempty" db:"settings"`
}

// IsVerified reports whether session commands are allowed on the device.
func (d *Device) IsVerified() bool {
	return d.RegistrationStatus == RegistrationVerified
}
