// Package broadcast delivers device-state snapshots to real-time
// subscribers. Publishing is fire-and-forget: failures are logged and
// dropped so command processing is never blocked by a listener.
package broadcast

import (
	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/core"
)

// SubjectFor returns the per-device state subject
func SubjectFor(deviceID uuid.UUID) string {
	return "device." + deviceID.String() + ".state"
}

// NopGateway drops every snapshot. Used when no broker is configured.
type NopGateway struct{}

// NewNopGateway creates a no-op gateway
func NewNopGateway() *NopGateway {
	return &NopGateway{}
}

// Publish discards the snapshot
func (g *NopGateway) Publish(uuid.UUID, core.Snapshot) {}
