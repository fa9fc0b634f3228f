package core

import (
	"fmt"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

// UnverifiedDeviceError is returned when a session command is blocked
// by the registration gate.
type UnverifiedDeviceError struct {
	DeviceID string
	Status   models.RegistrationStatus
}

func (e *UnverifiedDeviceError) Error() string {
	return fmt.Sprintf("device %s is not verified (registration status: %s)", e.DeviceID, e.Status)
}

// ConflictError is returned when starting a session while another one
// is already active or paused on the device.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NotFoundError is returned when a referenced resource does not exist,
// including the absence of an active or paused session to operate on.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// CommunicationError wraps transport failures against the device
// backend. Verification treats it as a failed handshake, not a fatal
// error.
type CommunicationError struct {
	Op  string
	Err error
}

func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communication error: %s: %v", e.Op, e.Err)
}

func (e *CommunicationError) Unwrap() error {
	return e.Err
}

// ValidationError is returned for malformed configuration payloads.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
