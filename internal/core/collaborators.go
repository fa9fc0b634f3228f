package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

// Snapshot is the device-state document pushed to real-time subscribers
// of the device's channel.
type Snapshot struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Status             string    `json:"status"`
	IsActive           bool      `json:"is_active"`
	RegistrationStatus string    `json:"registration_status"`
	LastUpdated        time.Time `json:"last_updated"`
}

// SnapshotOf builds the broadcast snapshot for a device.
func SnapshotOf(device *models.Device) Snapshot {
	return Snapshot{
		ID:                 device.ID,
		Name:               device.Name,
		Status:             string(device.Status),
		IsActive:           device.IsActive,
		RegistrationStatus: string(device.RegistrationStatus),
		LastUpdated:        device.UpdatedAt,
	}
}

// Gateway publishes device-state snapshots to real-time listeners.
// Delivery is fire-and-forget, at most once: implementations swallow
// their own failures and must never block command processing.
type Gateway interface {
	Publish(deviceID uuid.UUID, snapshot Snapshot)
}

// VerifyRequest is the handshake payload sent to the device backend.
type VerifyRequest struct {
	DeviceID      string           `json:"device_id"`
	IPAddress     string           `json:"ip_address"`
	Port          int              `json:"port"`
	Timestamp     time.Time        `json:"timestamp"`
	Configuration models.Variables `json:"configuration,omitempty"`
}

// BackendClient talks to the remote device-management backend.
// Transport failures are returned as *CommunicationError; a false ok
// with a message means the backend answered but declined.
type BackendClient interface {
	Verify(ctx context.Context, req VerifyRequest) (ok bool, message string, err error)
	SendConfiguration(ctx context.Context, deviceID string, configuration models.Variables) (ok bool, message string, err error)
	CheckStatus(ctx context.Context, deviceID string) (online bool, status string, err error)
}
