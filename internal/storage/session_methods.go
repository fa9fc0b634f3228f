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

const sessionColumns = `id, created_at, updated_at, device_id, program_id, status,
       started_at, ended_at, total_duration, amount_charged,
       bonus_time_used, client_card`

// CreateSession creates a device session
func (s *PostgresStore) CreateSession(ctx context.Context, session *models.DeviceSession) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if session.StartedAt.IsZero() {
		session.StartedAt = now
	}
	if session.Status == "" {
		session.Status = models.SessionActive
	}

	query := `
        INSERT INTO device_sessions (
            id, created_at, updated_at, device_id, program_id, status,
            started_at, ended_at, total_duration, amount_charged,
            bonus_time_used, client_card
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.getDB().ExecContext(ctx, query,
		session.ID, session.CreatedAt, session.UpdatedAt, session.DeviceID,
		session.ProgramID, session.Status, session.StartedAt, session.EndedAt,
		session.TotalDuration, session.AmountCharged, session.BonusTimeUsed,
		session.ClientCard,
	)

	return err
}

func scanSession(row interface{ Scan(...interface{}) error }) (*models.DeviceSession, error) {
	session := &models.DeviceSession{}

	err := row.Scan(
		&session.ID, &session.CreatedAt, &session.UpdatedAt, &session.DeviceID,
		&session.ProgramID, &session.Status, &session.StartedAt, &session.EndedAt,
		&session.TotalDuration, &session.AmountCharged, &session.BonusTimeUsed,
		&session.ClientCard,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

// GetSession gets a session by id
func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM device_sessions WHERE id = $1`
	return scanSession(s.getDB().QueryRowContext(ctx, query, id))
}

// UpdateSession updates a session
func (s *PostgresStore) UpdateSession(ctx context.Context, session *models.DeviceSession) error {
	session.UpdatedAt = time.Now()

	query := `
        UPDATE device_sessions SET
            updated_at = $2, status = $3, ended_at = $4, total_duration = $5,
            amount_charged = $6, bonus_time_used = $7
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		session.ID, session.UpdatedAt, session.Status, session.EndedAt,
		session.TotalDuration, session.AmountCharged, session.BonusTimeUsed,
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

// ListDeviceSessionsByStatus lists a device's sessions in the given
// statuses, most recently started first.
func (s *PostgresStore) ListDeviceSessionsByStatus(ctx context.Context, deviceID uuid.UUID, statuses ...models.SessionStatus) ([]*models.DeviceSession, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	args := []interface{}{deviceID}
	placeholders := make([]string, len(statuses))
	for i, status := range statuses {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", i+2)
	}

	query := `SELECT ` + sessionColumns + `
        FROM device_sessions
        WHERE device_id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)
        ORDER BY started_at DESC`

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.DeviceSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// ListSessions lists sessions with optional filters
func (s *PostgresStore) ListSessions(ctx context.Context, filters SessionFilters, limit, offset int) ([]*models.DeviceSession, int64, error) {
	query := "SELECT COUNT(*) FROM device_sessions WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.DeviceID != nil {
		argCount++
		query += fmt.Sprintf(" AND device_id = $%d", argCount)
		args = append(args, *filters.DeviceID)
	}

	if filters.ProgramID != nil {
		argCount++
		query += fmt.Sprintf(" AND program_id = $%d", argCount)
		args = append(args, *filters.ProgramID)
	}

	if filters.Status != nil {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)", "SELECT "+sessionColumns, 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY started_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sessions []*models.DeviceSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, 0, err
		}
		sessions = append(sessions, session)
	}

	return sessions, count, nil
}
