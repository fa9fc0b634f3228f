package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

// DeviceRegistry manages device registration, backend verification and
// reachability checks.
type DeviceRegistry struct {
	store   storage.Store
	backend BackendClient
	gateway Gateway
	configs *ConfigurationEngine
	now     func() time.Time
}

// NewDeviceRegistry creates a device registry
func NewDeviceRegistry(store storage.Store, backend BackendClient, gateway Gateway, configs *ConfigurationEngine) *DeviceRegistry {
	return &DeviceRegistry{
		store:   store,
		backend: backend,
		gateway: gateway,
		configs: configs,
		now:     time.Now,
	}
}

// RegisterInput is the self-registration payload sent by a device.
type RegisterInput struct {
	DeviceID  string  `json:"deviceId"`
	Name      string  `json:"name"`
	Location  string  `json:"location"`
	IPAddress *string `json:"ipAddress,omitempty"`
	Port      *int    `json:"port,omitempty"`
}

// RegisterOrUpdate upserts a device by its hardware identifier. New
// devices start offline and pending; existing devices get their
// endpoint and metadata refreshed without touching registration state.
// The second return value reports whether the device was created.
func (r *DeviceRegistry) RegisterOrUpdate(ctx context.Context, input RegisterInput) (*models.Device, bool, error) {
	if input.DeviceID == "" {
		return nil, false, &ValidationError{Field: "device_id", Message: "required"}
	}

	device, err := r.store.GetDeviceByDeviceID(ctx, input.DeviceID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	now := r.now()
	created := false

	if device == nil || errors.Is(err, storage.ErrNotFound) {
		device = &models.Device{
			DeviceID:           input.DeviceID,
			Name:               input.Name,
			Location:           input.Location,
			IPAddress:          input.IPAddress,
			Port:               input.Port,
			Status:             models.DeviceStatusOffline,
			IsActive:           true,
			RegistrationStatus: models.RegistrationPending,
		}
		if device.Name == "" {
			device.Name = input.DeviceID
		}
		if err := r.store.CreateDevice(ctx, device); err != nil {
			return nil, false, err
		}
		created = true
	} else {
		if input.Name != "" {
			device.Name = input.Name
		}
		if input.Location != "" {
			device.Location = input.Location
		}
		if input.IPAddress != nil {
			device.IPAddress = input.IPAddress
		}
		if input.Port != nil {
			device.Port = input.Port
		}
		device.LastSeen = &now
		if err := r.store.UpdateDevice(ctx, device); err != nil {
			return nil, false, err
		}
	}

	message := "Device endpoint updated"
	if created {
		message = "Device registered"
	}
	if err := r.store.CreateDeviceLog(ctx, &models.DeviceLog{
		DeviceID: device.ID,
		LogType:  models.LogInfo,
		Message:  message,
	}); err != nil {
		return nil, false, err
	}

	r.gateway.Publish(device.ID, SnapshotOf(device))

	log.Info().
		Str("device_id", device.DeviceID).
		Bool("created", created).
		Msg("Device registration processed")

	return device, created, nil
}

// VerifyResult is the outcome of one verification handshake.
type VerifyResult struct {
	Status        models.RegistrationStatus `json:"status"`
	Message       string                    `json:"message"`
	ConfigCreated bool                      `json:"configCreated"`
}

// Verify runs the verification handshake against the backend. The
// handshake attempt timestamp is stamped whether or not the backend was
// reachable. A declined or failed handshake leaves the device pending;
// rejection is only ever set by an operator.
func (r *DeviceRegistry) Verify(ctx context.Context, id uuid.UUID) (*VerifyResult, error) {
	device, err := getDevice(ctx, r.store, id)
	if err != nil {
		return nil, err
	}

	config, configCreated, err := r.configs.GetOrCreateDefault(ctx, device)
	if err != nil {
		return nil, err
	}

	req := VerifyRequest{
		DeviceID:      device.DeviceID,
		Timestamp:     r.now(),
		Configuration: r.configs.VerificationPayload(config),
	}
	if device.IPAddress != nil {
		req.IPAddress = *device.IPAddress
	}
	if device.Port != nil {
		req.Port = *device.Port
	}

	ok, message, verifyErr := r.backend.Verify(ctx, req)

	now := r.now()
	device.LastHandshakeAttempt = &now

	var logType models.LogType
	var logMessage string

	switch {
	case verifyErr != nil:
		device.RegistrationMessage = verifyErr.Error()
		logType = models.LogWarning
		logMessage = "Verification failed: " + verifyErr.Error()
	case ok:
		device.RegistrationStatus = models.RegistrationVerified
		device.RegistrationMessage = message
		logType = models.LogInfo
		logMessage = "Device verified by backend"
	default:
		device.RegistrationStatus = models.RegistrationPending
		device.RegistrationMessage = message
		logType = models.LogWarning
		logMessage = "Verification declined: " + message
	}

	if err := r.store.UpdateDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := r.store.CreateDeviceLog(ctx, &models.DeviceLog{
		DeviceID: device.ID,
		LogType:  logType,
		Message:  logMessage,
	}); err != nil {
		return nil, err
	}

	r.gateway.Publish(device.ID, SnapshotOf(device))

	if verifyErr != nil {
		log.Warn().
			Err(verifyErr).
			Str("device_id", device.DeviceID).
			Msg("Verification handshake failed")
	} else {
		log.Info().
			Str("device_id", device.DeviceID).
			Str("status", string(device.RegistrationStatus)).
			Msg("Verification handshake finished")
	}

	return &VerifyResult{
		Status:        device.RegistrationStatus,
		Message:       device.RegistrationMessage,
		ConfigCreated: configCreated,
	}, nil
}

// RequireVerified loads a device and rejects session commands on
// unverified ones.
func (r *DeviceRegistry) RequireVerified(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	device, err := getDevice(ctx, r.store, id)
	if err != nil {
		return nil, err
	}
	if !device.IsVerified() {
		return nil, &UnverifiedDeviceError{DeviceID: device.DeviceID, Status: device.RegistrationStatus}
	}
	return device, nil
}

// CheckStatus polls the backend for the device's reachability and flips
// the stored status on change. An unreachable backend marks the device
// offline.
func (r *DeviceRegistry) CheckStatus(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	device, err := getDevice(ctx, r.store, id)
	if err != nil {
		return nil, err
	}

	online, _, checkErr := r.backend.CheckStatus(ctx, device.DeviceID)
	if checkErr != nil {
		online = false
	}

	next := models.DeviceStatusOffline
	if online {
		next = models.DeviceStatusOnline
	}

	now := r.now()
	changed := device.Status != next

	// Maintenance and disabled are operator-set states; a reachability
	// probe must not override them.
	if device.Status == models.DeviceStatusMaintenance || device.Status == models.DeviceStatusDisabled {
		changed = false
		next = device.Status
	}

	if online {
		device.LastSeen = &now
	}
	device.Status = next

	if err := r.store.UpdateDevice(ctx, device); err != nil {
		return nil, err
	}

	if changed {
		if err := r.store.CreateDeviceLog(ctx, &models.DeviceLog{
			DeviceID: device.ID,
			LogType:  models.LogStatusChange,
			Message:  "Status changed to " + string(next),
		}); err != nil {
			return nil, err
		}
		r.gateway.Publish(device.ID, SnapshotOf(device))
	}

	return device, nil
}

// PushConfiguration sends the device's current configuration document
// to the backend. The device must be verified.
func (r *DeviceRegistry) PushConfiguration(ctx context.Context, id uuid.UUID) (bool, string, error) {
	device, err := r.RequireVerified(ctx, id)
	if err != nil {
		return false, "", err
	}

	config, _, err := r.configs.GetOrCreateDefault(ctx, device)
	if err != nil {
		return false, "", err
	}

	payload := r.configs.VerificationPayload(config)
	ok, message, sendErr := r.backend.SendConfiguration(ctx, device.DeviceID, payload)

	logType := models.LogInfo
	logMessage := "Configuration pushed to backend"
	if sendErr != nil {
		logType = models.LogWarning
		logMessage = "Configuration push failed: " + sendErr.Error()
	} else if !ok {
		logType = models.LogWarning
		logMessage = "Configuration push declined: " + message
	}

	if err := r.store.CreateDeviceLog(ctx, &models.DeviceLog{
		DeviceID: device.ID,
		LogType:  logType,
		Message:  logMessage,
	}); err != nil {
		return false, "", err
	}

	if sendErr != nil {
		return false, "", sendErr
	}

	log.Info().
		Str("device_id", device.DeviceID).
		Bool("accepted", ok).
		Msg("Configuration push finished")

	return ok, message, nil
}
