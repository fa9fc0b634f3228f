package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

// Default configuration values for newly provisioned devices.
var (
	defaultPricePerMinute    = decimal.RequireFromString("10.00")
	defaultTimeout           = 300
	defaultValveResetTimeout = 60
	defaultPerformance       = 50
)

// ConfigurationEngine manages per-device configurations, configuration
// templates and batch template application.
type ConfigurationEngine struct {
	store   storage.Store
	gateway Gateway
	now     func() time.Time
}

// NewConfigurationEngine creates a configuration engine
func NewConfigurationEngine(store storage.Store, gateway Gateway) *ConfigurationEngine {
	return &ConfigurationEngine{
		store:   store,
		gateway: gateway,
		now:     time.Now,
	}
}

// GetOrCreateDefault returns the device's configuration, creating one
// with default values when none exists yet. The second return value
// reports whether a new configuration was created.
func (e *ConfigurationEngine) GetOrCreateDefault(ctx context.Context, device *models.Device) (*models.DeviceConfiguration, bool, error) {
	config, err := e.store.GetConfigurationByDevice(ctx, device.ID)
	if err == nil {
		return config, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	config = &models.DeviceConfiguration{
		DeviceID:          &device.ID,
		PricePerMinute:    defaultPricePerMinute,
		DefaultTimeout:    defaultTimeout,
		ValveResetTimeout: defaultValveResetTimeout,
		EnginePerformance: defaultPerformance,
		PumpPerformance:   defaultPerformance,
	}

	if err := e.store.CreateConfiguration(ctx, config); err != nil {
		return nil, false, err
	}

	log.Info().
		Str("device_id", device.DeviceID).
		Str("config_id", config.ID.String()).
		Msg("Created default device configuration")

	return config, true, nil
}

// ApplyTemplate copies all pricing, timer, bonus and performance values
// from a template configuration onto a device configuration, replacing
// its program settings with the template's.
func (e *ConfigurationEngine) ApplyTemplate(ctx context.Context, configID, templateID uuid.UUID) (*models.DeviceConfiguration, error) {
	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	config, err := tx.GetConfiguration(ctx, configID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "device configuration"}
	}
	if err != nil {
		return nil, err
	}

	template, err := tx.GetConfiguration(ctx, templateID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "configuration template"}
	}
	if err != nil {
		return nil, err
	}
	if !template.IsTemplate {
		return nil, &ValidationError{Field: "template_id", Message: "configuration is not a template"}
	}

	config.PricePerMinute = template.PricePerMinute
	config.DefaultTimeout = template.DefaultTimeout
	config.ValveResetTimeout = template.ValveResetTimeout
	config.BonusDurationEnabled = template.BonusDurationEnabled
	config.BonusDurationAmount = template.BonusDurationAmount
	config.EnginePerformance = template.EnginePerformance
	config.PumpPerformance = template.PumpPerformance

	if err := tx.UpdateConfiguration(ctx, config); err != nil {
		return nil, err
	}

	settings := make([]models.ProgramSetting, 0, len(template.ProgramSettings))
	for _, setting := range template.ProgramSettings {
		setting.ConfigID = config.ID
		settings = append(settings, setting)
	}
	if err := tx.ReplaceProgramSettings(ctx, config.ID, settings); err != nil {
		return nil, err
	}
	config.ProgramSettings = settings

	if config.DeviceID != nil {
		if err := tx.CreateDeviceLog(ctx, &models.DeviceLog{
			DeviceID: *config.DeviceID,
			LogType:  models.LogInfo,
			Message:  "Applied configuration template: " + template.TemplateName,
		}); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	e.publishDevice(ctx, config.DeviceID)

	log.Info().
		Str("config_id", config.ID.String()).
		Str("template", template.TemplateName).
		Msg("Applied configuration template")

	return config, nil
}

// UpdatePerformance adjusts engine and pump performance. Values are
// clamped to the 0-100 range; nil leaves the current value unchanged.
func (e *ConfigurationEngine) UpdatePerformance(ctx context.Context, configID uuid.UUID, engine, pump *int) (*models.DeviceConfiguration, error) {
	config, err := e.store.GetConfiguration(ctx, configID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "device configuration"}
	}
	if err != nil {
		return nil, err
	}

	if engine != nil {
		config.EnginePerformance = clampPercent(*engine)
	}
	if pump != nil {
		config.PumpPerformance = clampPercent(*pump)
	}

	if err := e.store.UpdateConfiguration(ctx, config); err != nil {
		return nil, err
	}

	e.publishDevice(ctx, config.DeviceID)

	log.Info().
		Str("config_id", config.ID.String()).
		Int("engine", config.EnginePerformance).
		Int("pump", config.PumpPerformance).
		Msg("Updated performance settings")

	return config, nil
}

// ValidateSettings checks that a template settings document carries the
// required top-level sections.
func (e *ConfigurationEngine) ValidateSettings(settings models.Variables) error {
	if settings == nil {
		return &ValidationError{Field: "settings", Message: "settings document is required"}
	}

	for _, key := range []string{"pricing", "timers"} {
		raw, ok := settings[key]
		if !ok {
			return &ValidationError{Field: key, Message: "required section missing"}
		}
		if _, ok := raw.(map[string]interface{}); !ok {
			return &ValidationError{Field: key, Message: "must be an object"}
		}
	}

	return nil
}

// BatchResult summarizes one batch template application.
type BatchResult struct {
	SuccessCount int                `json:"successCount"`
	ErrorCount   int                `json:"errorCount"`
	Applied      []AppliedDevice    `json:"appliedDevices"`
	Errors       []ApplicationError `json:"errors"`
}

// AppliedDevice is one successful entry in a batch result
type AppliedDevice struct {
	DeviceID      uuid.UUID `json:"deviceId"`
	DeviceName    string    `json:"deviceName"`
	ApplicationID uuid.UUID `json:"applicationId"`
}

// ApplicationError is one failed entry in a batch result
type ApplicationError struct {
	DeviceID uuid.UUID `json:"deviceId"`
	Message  string    `json:"message"`
}

// ApplyToDevices applies a settings template to many devices. Each
// device is processed and committed independently; one failure never
// rolls back the others. An audit record is written per attempt.
func (e *ConfigurationEngine) ApplyToDevices(ctx context.Context, templateID uuid.UUID, deviceIDs []uuid.UUID, overrideExisting bool, appliedBy *uuid.UUID) (*BatchResult, error) {
	template, err := e.store.GetTemplate(ctx, templateID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &NotFoundError{Resource: "configuration template"}
	}
	if err != nil {
		return nil, err
	}

	if err := e.ValidateSettings(template.Settings); err != nil {
		return nil, err
	}

	result := &BatchResult{}
	for _, deviceID := range deviceIDs {
		device, err := e.store.GetDevice(ctx, deviceID)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, ApplicationError{DeviceID: deviceID, Message: "device not found"})
			continue
		}

		applyErr := e.applyToDevice(ctx, device, template, overrideExisting)

		application := &models.TemplateApplication{
			TemplateID: template.ID,
			DeviceID:   device.ID,
			AppliedAt:  e.now(),
			AppliedBy:  appliedBy,
			Status:     models.ApplicationSuccess,
		}
		if applyErr != nil {
			application.Status = models.ApplicationFailed
			application.ErrorMessage = applyErr.Error()
		}
		if err := e.store.CreateTemplateApplication(ctx, application); err != nil {
			log.Error().Err(err).
				Str("device_id", device.DeviceID).
				Msg("Failed to record template application")
		}

		if applyErr != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, ApplicationError{DeviceID: device.ID, Message: applyErr.Error()})
			continue
		}

		result.SuccessCount++
		result.Applied = append(result.Applied, AppliedDevice{
			DeviceID:      device.ID,
			DeviceName:    device.Name,
			ApplicationID: application.ID,
		})

		e.gateway.Publish(device.ID, SnapshotOf(device))
	}

	log.Info().
		Str("template_id", template.ID.String()).
		Int("success", result.SuccessCount).
		Int("errors", result.ErrorCount).
		Msg("Batch template application finished")

	return result, nil
}

func (e *ConfigurationEngine) applyToDevice(ctx context.Context, device *models.Device, template *models.ConfigurationTemplate, overrideExisting bool) error {
	if overrideExisting || device.Settings == nil {
		device.Settings = make(models.Variables, len(template.Settings))
		for key, value := range template.Settings {
			device.Settings[key] = value
		}
	} else {
		// Shallow merge: template sections replace same-named sections,
		// other device settings survive.
		for key, value := range template.Settings {
			device.Settings[key] = value
		}
	}

	return e.store.UpdateDevice(ctx, device)
}

// VerificationPayload builds the configuration document sent to the
// backend during verification and configuration pushes.
func (e *ConfigurationEngine) VerificationPayload(config *models.DeviceConfiguration) models.Variables {
	payload := models.Variables{
		"pricing": map[string]interface{}{
			"price_per_minute": config.PricePerMinute.String(),
		},
		"timers": map[string]interface{}{
			"default_timeout":     config.DefaultTimeout,
			"valve_reset_timeout": config.ValveResetTimeout,
		},
		"performance": map[string]interface{}{
			"engine": config.EnginePerformance,
			"pump":   config.PumpPerformance,
		},
	}

	if config.BonusDurationEnabled {
		payload["bonus"] = map[string]interface{}{
			"enabled": true,
			"amount":  config.BonusDurationAmount,
		}
	}

	if len(config.ProgramSettings) > 0 {
		programs := make([]map[string]interface{}, 0, len(config.ProgramSettings))
		for _, setting := range config.ProgramSettings {
			entry := map[string]interface{}{
				"program_id": setting.ProgramID.String(),
				"name":       setting.ProgramName,
				"enabled":    setting.IsEnabled,
			}
			if setting.CustomPrice != nil {
				entry["custom_price"] = setting.CustomPrice.String()
			}
			programs = append(programs, entry)
		}
		payload["programs"] = programs
	}

	return payload
}

func (e *ConfigurationEngine) publishDevice(ctx context.Context, deviceID *uuid.UUID) {
	if deviceID == nil {
		return
	}
	device, err := e.store.GetDevice(ctx, *deviceID)
	if err != nil {
		return
	}
	e.gateway.Publish(device.ID, SnapshotOf(device))
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
