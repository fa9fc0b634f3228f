package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

const deviceColumns = `id, created_at, updated_at, device_id, name, location,
       ip_address, port, status, is_active, last_seen,
       registration_status, registration_message, last_handshake_attempt, settings`

// CreateDevice creates a new device
func (s *PostgresStore) CreateDevice(ctx context.Context, device *models.Device) error {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}

	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	if device.Status == "" {
		device.Status = models.DeviceStatusOffline
	}
	if device.RegistrationStatus == "" {
		device.RegistrationStatus = models.RegistrationPending
	}

	query := `
        INSERT INTO devices (
            id, created_at, updated_at, device_id, name, location,
            ip_address, port, status, is_active, last_seen,
            registration_status, registration_message, last_handshake_attempt, settings
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
        )`

	_, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.CreatedAt, device.UpdatedAt, device.DeviceID,
		device.Name, device.Location, device.IPAddress, device.Port,
		device.Status, device.IsActive, device.LastSeen,
		device.RegistrationStatus, device.RegistrationMessage,
		device.LastHandshakeAttempt, device.Settings,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

func (s *PostgresStore) scanDevice(row interface{ Scan(...interface{}) error }) (*models.Device, error) {
	device := &models.Device{}

	err := row.Scan(
		&device.ID, &device.CreatedAt, &device.UpdatedAt, &device.DeviceID,
		&device.Name, &device.Location, &device.IPAddress, &device.Port,
		&device.Status, &device.IsActive, &device.LastSeen,
		&device.RegistrationStatus, &device.RegistrationMessage,
		&device.LastHandshakeAttempt, &device.Settings,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return device, nil
}

// GetDevice gets a device by primary key
func (s *PostgresStore) GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = $1`
	return s.scanDevice(s.getDB().QueryRowContext(ctx, query, id))
}

// GetDeviceByDeviceID gets a device by its external device identifier
func (s *PostgresStore) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`
	return s.scanDevice(s.getDB().QueryRowContext(ctx, query, deviceID))
}

// UpdateDevice updates a device
func (s *PostgresStore) UpdateDevice(ctx context.Context, device *models.Device) error {
	device.UpdatedAt = time.Now()

	query := `
        UPDATE devices SET
            updated_at = $2, device_id = $3, name = $4, location = $5,
            ip_address = $6, port = $7, status = $8, is_active = $9,
            last_seen = $10, registration_status = $11,
            registration_message = $12, last_handshake_attempt = $13,
            settings = $14
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		device.ID, device.UpdatedAt, device.DeviceID, device.Name,
		device.Location, device.IPAddress, device.Port, device.Status,
		device.IsActive, device.LastSeen, device.RegistrationStatus,
		device.RegistrationMessage, device.LastHandshakeAttempt,
		device.Settings,
	)

	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteDevice deletes a device. Configurations, sessions and logs are
// removed by the cascade constraints.
func (s *PostgresStore) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM devices WHERE id = $1", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListDevices lists devices with optional filters
func (s *PostgresStore) ListDevices(ctx context.Context, filters DeviceFilters, limit, offset int) ([]*models.Device, int64, error) {
	query := "SELECT COUNT(*) FROM devices WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.Status != nil {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
	}

	if filters.RegistrationStatus != nil {
		argCount++
		query += fmt.Sprintf(" AND registration_status = $%d", argCount)
		args = append(args, *filters.RegistrationStatus)
	}

	if filters.IsActive != nil {
		argCount++
		query += fmt.Sprintf(" AND is_active = $%d", argCount)
		args = append(args, *filters.IsActive)
	}

	if filters.Search != "" {
		argCount++
		query += fmt.Sprintf(" AND (name ILIKE $%d OR device_id ILIKE $%d OR location ILIKE $%d)", argCount, argCount, argCount)
		args = append(args, "%"+filters.Search+"%")
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)", "SELECT "+deviceColumns, 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var devices []*models.Device
	for rows.Next() {
		device, err := s.scanDevice(rows)
		if err != nil {
			return nil, 0, err
		}
		devices = append(devices, device)
	}

	return devices, count, nil
}
