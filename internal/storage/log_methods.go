package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

// CreateDeviceLog creates a device log entry. Entries are append-only;
// there are no update or delete methods.
func (s *PostgresStore) CreateDeviceLog(ctx context.Context, entry *models.DeviceLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
        INSERT INTO device_logs (id, created_at, device_id, log_type, message)
        VALUES ($1, $2, $3, $4, $5)`

	_, err := s.getDB().ExecContext(ctx, query,
		entry.ID, entry.CreatedAt, entry.DeviceID, entry.LogType, entry.Message,
	)

	return err
}

// ListDeviceLogs lists device logs with filters
func (s *PostgresStore) ListDeviceLogs(ctx context.Context, filters LogFilters, limit, offset int) ([]*models.DeviceLog, int64, error) {
	query := "SELECT COUNT(*) FROM device_logs WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.DeviceID != nil {
		argCount++
		query += fmt.Sprintf(" AND device_id = $%d", argCount)
		args = append(args, *filters.DeviceID)
	}

	if filters.LogType != nil {
		argCount++
		query += fmt.Sprintf(" AND log_type = $%d", argCount)
		args = append(args, *filters.LogType)
	}

	if filters.StartTime != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filters.StartTime)
	}

	if filters.EndTime != nil {
		argCount++
		query += fmt.Sprintf(" AND created_at <= $%d", argCount)
		args = append(args, *filters.EndTime)
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT id, created_at, device_id, log_type, message", 1)

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

	var entries []*models.DeviceLog
	for rows.Next() {
		entry := &models.DeviceLog{}
		err := rows.Scan(&entry.ID, &entry.CreatedAt, &entry.DeviceID, &entry.LogType, &entry.Message)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}

	return entries, count, nil
}
