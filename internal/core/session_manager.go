package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

// SessionManager drives the session lifecycle of a device. Every
// command runs in a single transaction; the state snapshot is broadcast
// only after commit.
type SessionManager struct {
	store   storage.Store
	gateway Gateway
	now     func() time.Time
}

// NewSessionManager creates a session manager
func NewSessionManager(store storage.Store, gateway Gateway) *SessionManager {
	return &SessionManager{
		store:   store,
		gateway: gateway,
		now:     time.Now,
	}
}

// Start begins a new active session on a verified device. Fails with
// *ConflictError if the device already has an open session.
func (m *SessionManager) Start(ctx context.Context, deviceID, programID uuid.UUID, clientCard *string) (*models.DeviceSession, error) {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	device, err := getDevice(ctx, tx, deviceID)
	if err != nil {
		return nil, err
	}

	if !device.IsVerified() {
		return nil, &UnverifiedDeviceError{DeviceID: device.DeviceID, Status: device.RegistrationStatus}
	}

	program, err := tx.GetProgram(ctx, programID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "wash program"}
	}
	if err != nil {
		return nil, err
	}

	open, err := tx.ListDeviceSessionsByStatus(ctx, device.ID, models.SessionActive, models.SessionPaused)
	if err != nil {
		return nil, err
	}
	if len(open) > 0 {
		return nil, &ConflictError{Message: fmt.Sprintf("device %s already has an open session", device.DeviceID)}
	}

	now := m.now()
	session := &models.DeviceSession{
		DeviceID:      device.ID,
		ProgramID:     &program.ID,
		Status:        models.SessionActive,
		StartedAt:     now,
		AmountCharged: decimal.Zero,
		ClientCard:    clientCard,
	}

	if err := tx.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	if err := logCommand(ctx, tx, device.ID, "Started session: "+program.Name); err != nil {
		return nil, err
	}

	device.Status = models.DeviceStatusOnline
	device.LastSeen = &now
	if err := tx.UpdateDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	m.gateway.Publish(device.ID, SnapshotOf(device))

	log.Info().
		Str("device_id", device.DeviceID).
		Str("session_id", session.ID.String()).
		Str("program", program.Name).
		Msg("Session started")

	return session, nil
}

// Stop completes the device's open session and charges it. Paused
// sessions are charged for the full wall-clock interval as well.
func (m *SessionManager) Stop(ctx context.Context, deviceID uuid.UUID) (*models.DeviceSession, error) {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	device, err := getDevice(ctx, tx, deviceID)
	if err != nil {
		return nil, err
	}

	if !device.IsVerified() {
		return nil, &UnverifiedDeviceError{DeviceID: device.DeviceID, Status: device.RegistrationStatus}
	}

	session, err := m.openSession(ctx, tx, device, models.SessionActive, models.SessionPaused)
	if err != nil {
		return nil, err
	}

	ended := m.now()
	duration := int(ended.Sub(session.StartedAt).Seconds())
	if duration < 0 {
		duration = 0
	}

	amount := decimal.Zero
	if session.ProgramID != nil {
		program, err := tx.GetProgram(ctx, *session.ProgramID)
		if err == nil {
			amount = program.PricePerSecond.Mul(decimal.NewFromInt(int64(duration)))
		} else if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
	}

	session.Status = models.SessionCompleted
	session.EndedAt = &ended
	session.TotalDuration = duration
	session.AmountCharged = amount

	if err := tx.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	if err := logCommand(ctx, tx, device.ID, fmt.Sprintf("Stopped session: %ds", duration)); err != nil {
		return nil, err
	}

	device.Status = models.DeviceStatusOffline
	device.LastSeen = &ended
	if err := tx.UpdateDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	m.gateway.Publish(device.ID, SnapshotOf(device))

	log.Info().
		Str("device_id", device.DeviceID).
		Str("session_id", session.ID.String()).
		Int("duration", duration).
		Str("amount", amount.String()).
		Msg("Session stopped")

	return session, nil
}

// Pause suspends the device's active session. The session keeps
// accruing billable time while paused.
func (m *SessionManager) Pause(ctx context.Context, deviceID uuid.UUID) (*models.DeviceSession, error) {
	return m.transition(ctx, deviceID, models.SessionActive, models.SessionPaused, "Paused session")
}

// Resume reactivates the device's paused session.
func (m *SessionManager) Resume(ctx context.Context, deviceID uuid.UUID) (*models.DeviceSession, error) {
	return m.transition(ctx, deviceID, models.SessionPaused, models.SessionActive, "Resumed session")
}

func (m *SessionManager) transition(ctx context.Context, deviceID uuid.UUID, from, to models.SessionStatus, message string) (*models.DeviceSession, error) {
	tx, err := m.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	device, err := getDevice(ctx, tx, deviceID)
	if err != nil {
		return nil, err
	}

	if !device.IsVerified() {
		return nil, &UnverifiedDeviceError{DeviceID: device.DeviceID, Status: device.RegistrationStatus}
	}

	session, err := m.openSession(ctx, tx, device, from)
	if err != nil {
		return nil, err
	}

	session.Status = to
	if err := tx.UpdateSession(ctx, session); err != nil {
		return nil, err
	}

	if err := logCommand(ctx, tx, device.ID, message); err != nil {
		return nil, err
	}

	now := m.now()
	device.Status = models.DeviceStatusOnline
	device.LastSeen = &now
	if err := tx.UpdateDevice(ctx, device); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	m.gateway.Publish(device.ID, SnapshotOf(device))

	log.Info().
		Str("device_id", device.DeviceID).
		Str("session_id", session.ID.String()).
		Str("status", string(to)).
		Msg("Session state changed")

	return session, nil
}

// openSession returns the authoritative open session in the given
// states. If duplicates exist, the most recently started one wins and
// the rest are cancelled.
func (m *SessionManager) openSession(ctx context.Context, tx storage.Store, device *models.Device, statuses ...models.SessionStatus) (*models.DeviceSession, error) {
	sessions, err := tx.ListDeviceSessionsByStatus(ctx, device.ID, statuses...)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, &NotFoundError{Resource: string(statuses[0]) + " session"}
	}

	if len(sessions) > 1 {
		log.Warn().
			Str("device_id", device.DeviceID).
			Int("count", len(sessions)).
			Msg("Multiple open sessions found, keeping most recent")

		now := m.now()
		for _, stale := range sessions[1:] {
			stale.Status = models.SessionCancelled
			stale.EndedAt = &now
			if err := tx.UpdateSession(ctx, stale); err != nil {
				return nil, err
			}
		}

		entry := &models.DeviceLog{
			DeviceID: device.ID,
			LogType:  models.LogWarning,
			Message:  fmt.Sprintf("Multiple active sessions found, cancelled %d stale", len(sessions)-1),
		}
		if err := tx.CreateDeviceLog(ctx, entry); err != nil {
			return nil, err
		}
	}

	return sessions[0], nil
}

func getDevice(ctx context.Context, tx storage.Store, id uuid.UUID) (*models.Device, error) {
	device, err := tx.GetDevice(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "device"}
	}
	if err != nil {
		return nil, err
	}
	return device, nil
}

func logCommand(ctx context.Context, tx storage.Store, deviceID uuid.UUID, message string) error {
	return tx.CreateDeviceLog(ctx, &models.DeviceLog{
		DeviceID: deviceID,
		LogType:  models.LogCommand,
		Message:  message,
	})
}
