package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

// CreateProgram creates a new wash program
func (s *PostgresStore) CreateProgram(ctx context.Context, program *models.WashProgram) error {
	if program.ID == uuid.Nil {
		program.ID = uuid.New()
	}

	now := time.Now()
	program.CreatedAt = now
	program.UpdatedAt = now

	query := `
        INSERT INTO wash_programs (
            id, created_at, updated_at, name, description,
            price_per_second, price_per_minute, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		program.ID, program.CreatedAt, program.UpdatedAt, program.Name,
		program.Description, program.PricePerSecond, program.PricePerMinute,
		program.IsActive,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetProgram gets a wash program by id
func (s *PostgresStore) GetProgram(ctx context.Context, id uuid.UUID) (*models.WashProgram, error) {
	query := `
        SELECT id, created_at, updated_at, name, description,
               price_per_second, price_per_minute, is_active
        FROM wash_programs
        WHERE id = $1`

	program := &models.WashProgram{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&program.ID, &program.CreatedAt, &program.UpdatedAt, &program.Name,
		&program.Description, &program.PricePerSecond, &program.PricePerMinute,
		&program.IsActive,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return program, nil
}

// UpdateProgram updates a wash program
func (s *PostgresStore) UpdateProgram(ctx context.Context, program *models.WashProgram) error {
	program.UpdatedAt = time.Now()

	query := `
        UPDATE wash_programs SET
            updated_at = $2, name = $3, description = $4,
            price_per_second = $5, price_per_minute = $6, is_active = $7
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		program.ID, program.UpdatedAt, program.Name, program.Description,
		program.PricePerSecond, program.PricePerMinute, program.IsActive,
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

// DeleteProgram deletes a wash program. Sessions referencing the
// program keep their history with a nullified program id.
func (s *PostgresStore) DeleteProgram(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM wash_programs WHERE id = $1", id)
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

// ListPrograms lists wash programs
func (s *PostgresStore) ListPrograms(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.WashProgram, int64, error) {
	where := ""
	if activeOnly {
		where = " WHERE is_active = true"
	}

	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM wash_programs"+where).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, name, description,
               price_per_second, price_per_minute, is_active
        FROM wash_programs` + where + `
        ORDER BY name
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var programs []*models.WashProgram
	for rows.Next() {
		program := &models.WashProgram{}
		err := rows.Scan(
			&program.ID, &program.CreatedAt, &program.UpdatedAt, &program.Name,
			&program.Description, &program.PricePerSecond, &program.PricePerMinute,
			&program.IsActive,
		)
		if err != nil {
			return nil, 0, err
		}
		programs = append(programs, program)
	}

	return programs, count, nil
}
