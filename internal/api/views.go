package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

// viewerDevice is the reduced device document served to viewer users.
// Network endpoint and raw settings are operator-only.
type viewerDevice struct {
	ID                 uuid.UUID                 `json:"id"`
	DeviceID           string                    `json:"deviceId"`
	Name               string                    `json:"name"`
	Location           string                    `json:"location"`
	Status             models.DeviceStatus       `json:"status"`
	IsActive           bool                      `json:"isActive"`
	LastSeen           *time.Time                `json:"lastSeen,omitempty"`
	RegistrationStatus models.RegistrationStatus `json:"registrationStatus"`
}

func (s *RESTServer) deviceView(r *http.Request, device *models.Device) interface{} {
	claims := s.claimsFrom(r)
	if claims != nil && claims.Role.CanOperate() {
		return device
	}

	return viewerDevice{
		ID:                 device.ID,
		DeviceID:           device.DeviceID,
		Name:               device.Name,
		Location:           device.Location,
		Status:             device.Status,
		IsActive:           device.IsActive,
		LastSeen:           device.LastSeen,
		RegistrationStatus: device.RegistrationStatus,
	}
}

func (s *RESTServer) deviceListView(r *http.Request, devices []*models.Device) []interface{} {
	views := make([]interface{}, 0, len(devices))
	for _, device := range devices {
		views = append(views, s.deviceView(r, device))
	}
	return views
}
