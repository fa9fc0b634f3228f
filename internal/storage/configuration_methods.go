package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

const configurationColumns = `id, created_at, updated_at, device_id, price_per_minute,
       default_timeout, valve_reset_timeout, bonus_duration_enabled,
       bonus_duration_amount, engine_performance, pump_performance,
       is_template, template_name`

// CreateConfiguration creates a device configuration or template
func (s *PostgresStore) CreateConfiguration(ctx context.Context, config *models.DeviceConfiguration) error {
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}

	now := time.Now()
	config.CreatedAt = now
	config.UpdatedAt = now

	query := `
        INSERT INTO device_configurations (
            id, created_at, updated_at, device_id, price_per_minute,
            default_timeout, valve_reset_timeout, bonus_duration_enabled,
            bonus_duration_amount, engine_performance, pump_performance,
            is_template, template_name
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.getDB().ExecContext(ctx, query,
		config.ID, config.CreatedAt, config.UpdatedAt, config.DeviceID,
		config.PricePerMinute, config.DefaultTimeout, config.ValveResetTimeout,
		config.BonusDurationEnabled, config.BonusDurationAmount,
		config.EnginePerformance, config.PumpPerformance,
		config.IsTemplate, config.TemplateName,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateKey
		}
		return err
	}

	if len(config.ProgramSettings) > 0 {
		return s.ReplaceProgramSettings(ctx, config.ID, config.ProgramSettings)
	}

	return nil
}

func (s *PostgresStore) scanConfiguration(ctx context.Context, row interface{ Scan(...interface{}) error }) (*models.DeviceConfiguration, error) {
	config := &models.DeviceConfiguration{}

	err := row.Scan(
		&config.ID, &config.CreatedAt, &config.UpdatedAt, &config.DeviceID,
		&config.PricePerMinute, &config.DefaultTimeout, &config.ValveResetTimeout,
		&config.BonusDurationEnabled, &config.BonusDurationAmount,
		&config.EnginePerformance, &config.PumpPerformance,
		&config.IsTemplate, &config.TemplateName,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	settings, err := s.GetProgramSettings(ctx, config.ID)
	if err != nil {
		return nil, err
	}
	config.ProgramSettings = settings

	return config, nil
}

// GetConfiguration gets a configuration by id, program settings included
func (s *PostgresStore) GetConfiguration(ctx context.Context, id uuid.UUID) (*models.DeviceConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM device_configurations WHERE id = $1`
	return s.scanConfiguration(ctx, s.getDB().QueryRowContext(ctx, query, id))
}

// GetConfigurationByDevice gets the configuration owned by a device
func (s *PostgresStore) GetConfigurationByDevice(ctx context.Context, deviceID uuid.UUID) (*models.DeviceConfiguration, error) {
	query := `SELECT ` + configurationColumns + ` FROM device_configurations WHERE device_id = $1`
	return s.scanConfiguration(ctx, s.getDB().QueryRowContext(ctx, query, deviceID))
}

// UpdateConfiguration updates the scalar fields of a configuration.
// Program settings are managed through ReplaceProgramSettings.
func (s *PostgresStore) UpdateConfiguration(ctx context.Context, config *models.DeviceConfiguration) error {
	config.UpdatedAt = time.Now()

	query := `
        UPDATE device_configurations SET
            updated_at = $2, price_per_minute = $3, default_timeout = $4,
            valve_reset_timeout = $5, bonus_duration_enabled = $6,
            bonus_duration_amount = $7, engine_performance = $8,
            pump_performance = $9, template_name = $10
        WHERE id = $1`

	result, err := s.getDB().ExecContext(ctx, query,
		config.ID, config.UpdatedAt, config.PricePerMinute,
		config.DefaultTimeout, config.ValveResetTimeout,
		config.BonusDurationEnabled, config.BonusDurationAmount,
		config.EnginePerformance, config.PumpPerformance,
		config.TemplateName,
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

// DeleteConfiguration deletes a configuration
func (s *PostgresStore) DeleteConfiguration(ctx context.Context, id uuid.UUID) error {
	result, err := s.getDB().ExecContext(ctx, "DELETE FROM device_configurations WHERE id = $1", id)
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

// ListConfigurations lists device configurations or templates
func (s *PostgresStore) ListConfigurations(ctx context.Context, templates bool, limit, offset int) ([]*models.DeviceConfiguration, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM device_configurations WHERE is_template = $1", templates,
	).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + configurationColumns + `
        FROM device_configurations
        WHERE is_template = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`

	rows, err := s.getDB().QueryContext(ctx, query, templates, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var configs []*models.DeviceConfiguration
	for rows.Next() {
		config := &models.DeviceConfiguration{}
		err := rows.Scan(
			&config.ID, &config.CreatedAt, &config.UpdatedAt, &config.DeviceID,
			&config.PricePerMinute, &config.DefaultTimeout, &config.ValveResetTimeout,
			&config.BonusDurationEnabled, &config.BonusDurationAmount,
			&config.EnginePerformance, &config.PumpPerformance,
			&config.IsTemplate, &config.TemplateName,
		)
		if err != nil {
			return nil, 0, err
		}
		configs = append(configs, config)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, config := range configs {
		settings, err := s.GetProgramSettings(ctx, config.ID)
		if err != nil {
			return nil, 0, err
		}
		config.ProgramSettings = settings
	}

	return configs, count, nil
}

// GetProgramSettings gets the program settings of a configuration
func (s *PostgresStore) GetProgramSettings(ctx context.Context, configID uuid.UUID) ([]models.ProgramSetting, error) {
	query := `
        SELECT ps.config_id, ps.program_id, p.name, ps.custom_price, ps.is_enabled
        FROM device_program_settings ps
        JOIN wash_programs p ON p.id = ps.program_id
        WHERE ps.config_id = $1
        ORDER BY p.name`

	rows, err := s.getDB().QueryContext(ctx, query, configID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []models.ProgramSetting
	for rows.Next() {
		var setting models.ProgramSetting
		err := rows.Scan(
			&setting.ConfigID, &setting.ProgramID, &setting.ProgramName,
			&setting.CustomPrice, &setting.IsEnabled,
		)
		if err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}

	return settings, rows.Err()
}

// ReplaceProgramSettings removes all program settings of a configuration
// and recreates them from the given set. Template application relies on
// this delete-then-insert semantics, never a merge.
func (s *PostgresStore) ReplaceProgramSettings(ctx context.Context, configID uuid.UUID, settings []models.ProgramSetting) error {
	if _, err := s.getDB().ExecContext(ctx,
		"DELETE FROM device_program_settings WHERE config_id = $1", configID,
	); err != nil {
		return err
	}

	query := `
        INSERT INTO device_program_settings (config_id, program_id, custom_price, is_enabled)
        VALUES ($1, $2, $3, $4)`

	for _, setting := range settings {
		_, err := s.getDB().ExecContext(ctx, query,
			configID, setting.ProgramID, setting.CustomPrice, setting.IsEnabled,
		)
		if err != nil {
			return err
		}
	}

	return nil
}
