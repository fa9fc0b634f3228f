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

// CreateTemplate creates a configuration template
func (s *PostgresStore) CreateTemplate(ctx context.Context, template *models.ConfigurationTemplate) error {
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}

	now := time.Now()
	template.CreatedAt = now
	template.UpdatedAt = now

	query := `
        INSERT INTO configuration_templates (
            id, created_at, updated_at, name, description, settings, is_active, created_by
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.getDB().ExecContext(ctx, query,
		template.ID, template.CreatedAt, template.UpdatedAt, template.Name,
		template.Description, template.Settings, template.IsActive, template.CreatedBy,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	return nil
}

// GetTemplate gets a configuration template by id
func (s *PostgresStore) GetTemplate(ctx context.Context, id uuid.UUID) (*models.ConfigurationTemplate, error) {
	query := `
        SELECT id, created_at, updated_at, name, description, settings, is_active, created_by
        FROM configuration_templates
        WHERE id = $1`

	template := &models.ConfigurationTemplate{}
	err := s.getDB().QueryRowContext(ctx, query, id).Scan(
		&template.ID, &template.CreatedAt, &template.UpdatedAt, &template.Name,
		&template.Description, &template.Settings, &template.IsActive, &template.CreatedBy,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return template, nil
}

// UpdateTemplate updates a configuration template
func (s *PostgresStore) UpdateTemplate(ctx context.Context, template *models.ConfigurationTemplate) error {
	template.UpdatedAt = time.Now()

	query := `
        UPDATE configuration_templates SET
            updated_at = $2, name = $3, description = $4, settings = $5, is_active = $6
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		template.ID, template.UpdatedAt, template.Name, template.Description,
		template.Settings, template.IsActive,
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

// DeleteTemplate deletes a configuration template
func (s *PostgresStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM configuration_templates WHERE id = $1", id)
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

// ListTemplates lists configuration templates
func (s *PostgresStore) ListTemplates(ctx context.Context, limit, offset int) ([]*models.ConfigurationTemplate, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM configuration_templates").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `
        SELECT id, created_at, updated_at, name, description, settings, is_active, created_by
        FROM configuration_templates
        ORDER BY created_at DESC
        LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var templates []*models.ConfigurationTemplate
	for rows.Next() {
		template := &models.ConfigurationTemplate{}
		err := rows.Scan(
			&template.ID, &template.CreatedAt, &template.UpdatedAt, &template.Name,
			&template.Description, &template.Settings, &template.IsActive, &template.CreatedBy,
		)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, template)
	}

	return templates, count, nil
}

// CreateTemplateApplication records one template application attempt
func (s *PostgresStore) CreateTemplateApplication(ctx context.Context, application *models.TemplateApplication) error {
	if application.ID == uuid.Nil {
		application.ID = uuid.New()
	}

	if application.AppliedAt.IsZero() {
		application.AppliedAt = time.Now()
	}

	query := `
        INSERT INTO template_applications (
            id, template_id, device_id, applied_at, applied_by, status, error_message
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.getDB().ExecContext(ctx, query,
		application.ID, application.TemplateID, application.DeviceID,
		application.AppliedAt, application.AppliedBy, application.Status,
		application.ErrorMessage,
	)

	return err
}

// ListTemplateApplications lists template application records with filters
func (s *PostgresStore) ListTemplateApplications(ctx context.Context, filters ApplicationFilters, limit, offset int) ([]*models.TemplateApplication, int64, error) {
	query := "SELECT COUNT(*) FROM template_applications WHERE 1=1"
	args := []interface{}{}
	argCount := 0

	if filters.TemplateID != nil {
		argCount++
		query += fmt.Sprintf(" AND template_id = $%d", argCount)
		args = append(args, *filters.TemplateID)
	}

	if filters.DeviceID != nil {
		argCount++
		query += fmt.Sprintf(" AND device_id = $%d", argCount)
		args = append(args, *filters.DeviceID)
	}

	if filters.Status != nil {
		argCount++
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filters.Status)
	}

	if filters.StartTime != nil {
		argCount++
		query += fmt.Sprintf(" AND applied_at >= $%d", argCount)
		args = append(args, *filters.StartTime)
	}

	if filters.EndTime != nil {
		argCount++
		query += fmt.Sprintf(" AND applied_at <= $%d", argCount)
		args = append(args, *filters.EndTime)
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	selectQuery := strings.Replace(query, "SELECT COUNT(*)",
		"SELECT id, template_id, device_id, applied_at, applied_by, status, error_message", 1)

	argCount++
	selectQuery += fmt.Sprintf(" ORDER BY applied_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	argCount++
	selectQuery += fmt.Sprintf(" OFFSET $%d", argCount)
	args = append(args, offset)

	rows, err := s.getDB().QueryContext(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var applications []*models.TemplateApplication
	for rows.Next() {
		application := &models.TemplateApplication{}
		err := rows.Scan(
			&application.ID, &application.TemplateID, &application.DeviceID,
			&application.AppliedAt, &application.AppliedBy, &application.Status,
			&application.ErrorMessage,
		)
		if err != nil {
			return nil, 0, err
		}
		applications = append(applications, application)
	}

	return applications, count, nil
}
