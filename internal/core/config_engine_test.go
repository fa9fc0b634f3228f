package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

func newTestConfigEngine(t *testing.T) (*ConfigurationEngine, *mockStore, *recorderGateway) {
	t.Helper()
	store := newMockStore()
	gateway := &recorderGateway{}
	engine := NewConfigurationEngine(store, gateway)
	engine.now = newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)).Now
	return engine, store, gateway
}

func TestGetOrCreateDefault(t *testing.T) {
	engine, store, _ := newTestConfigEngine(t)
	device := seedDevice(store, models.RegistrationPending)

	config, created, err := engine.GetOrCreateDefault(context.Background(), device)
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	if !created {
		t.Error("expected a new configuration")
	}
	if !config.PricePerMinute.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("price per minute = %s, want 10.00", config.PricePerMinute)
	}
	if config.DefaultTimeout != 300 || config.ValveResetTimeout != 60 {
		t.Errorf("timeouts = %d/%d, want 300/60", config.DefaultTimeout, config.ValveResetTimeout)
	}
	if config.EnginePerformance != 50 || config.PumpPerformance != 50 {
		t.Errorf("performance = %d/%d, want 50/50", config.EnginePerformance, config.PumpPerformance)
	}

	again, created, err := engine.GetOrCreateDefault(context.Background(), device)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if created {
		t.Error("second call must reuse the existing configuration")
	}
	if again.ID != config.ID {
		t.Error("second call returned a different configuration")
	}
}

func TestValidateSettings(t *testing.T) {
	engine, _, _ := newTestConfigEngine(t)

	valid := models.Variables{
		"pricing": map[string]interface{}{"price_per_minute": "10.00"},
		"timers":  map[string]interface{}{"default_timeout": 300},
	}
	if err := engine.ValidateSettings(valid); err != nil {
		t.Errorf("valid settings rejected: %v", err)
	}

	missing := models.Variables{
		"pricing": map[string]interface{}{},
	}
	var invalid *ValidationError
	if err := engine.ValidateSettings(missing); !errors.As(err, &invalid) {
		t.Errorf("expected ValidationError for missing timers, got %v", err)
	}

	wrongShape := models.Variables{
		"pricing": "cheap",
		"timers":  map[string]interface{}{},
	}
	if err := engine.ValidateSettings(wrongShape); !errors.As(err, &invalid) {
		t.Errorf("expected ValidationError for non-object pricing, got %v", err)
	}

	if err := engine.ValidateSettings(nil); !errors.As(err, &invalid) {
		t.Errorf("expected ValidationError for nil settings, got %v", err)
	}
}

func TestApplyTemplateCopiesValues(t *testing.T) {
	engine, store, _ := newTestConfigEngine(t)
	device := seedDevice(store, models.RegistrationVerified)

	config, _, err := engine.GetOrCreateDefault(context.Background(), device)
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}

	programID := uuid.New()
	template := &models.DeviceConfiguration{
		PricePerMinute:       decimal.RequireFromString("15.50"),
		DefaultTimeout:       600,
		ValveResetTimeout:    90,
		BonusDurationEnabled: true,
		BonusDurationAmount:  30,
		EnginePerformance:    80,
		PumpPerformance:      70,
		IsTemplate:           true,
		TemplateName:         "premium",
		ProgramSettings: []models.ProgramSetting{
			{ProgramID: programID, IsEnabled: true},
		},
	}
	if err := store.CreateConfiguration(context.Background(), template); err != nil {
		t.Fatalf("seed template: %v", err)
	}

	applied, err := engine.ApplyTemplate(context.Background(), config.ID, template.ID)
	if err != nil {
		t.Fatalf("apply template: %v", err)
	}

	if !applied.PricePerMinute.Equal(template.PricePerMinute) {
		t.Errorf("price per minute = %s, want %s", applied.PricePerMinute, template.PricePerMinute)
	}
	if applied.DefaultTimeout != 600 || applied.ValveResetTimeout != 90 {
		t.Errorf("timers not copied: %d/%d", applied.DefaultTimeout, applied.ValveResetTimeout)
	}
	if !applied.BonusDurationEnabled || applied.BonusDurationAmount != 30 {
		t.Error("bonus settings not copied")
	}
	if applied.EnginePerformance != 80 || applied.PumpPerformance != 70 {
		t.Error("performance not copied")
	}
	if len(applied.ProgramSettings) != 1 || applied.ProgramSettings[0].ProgramID != programID {
		t.Error("program settings not replaced")
	}
	if applied.ProgramSettings[0].ConfigID != config.ID {
		t.Error("program settings must be re-homed to the target configuration")
	}
}

func TestApplyTemplateRejectsNonTemplate(t *testing.T) {
	engine, store, _ := newTestConfigEngine(t)
	device := seedDevice(store, models.RegistrationVerified)
	other := seedDevice(store, models.RegistrationVerified)

	config, _, err := engine.GetOrCreateDefault(context.Background(), device)
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}
	otherConfig, _, err := engine.GetOrCreateDefault(context.Background(), other)
	if err != nil {
		t.Fatalf("seed other config: %v", err)
	}

	_, err = engine.ApplyTemplate(context.Background(), config.ID, otherConfig.ID)
	var invalid *ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdatePerformanceClamps(t *testing.T) {
	engine, store, _ := newTestConfigEngine(t)
	device := seedDevice(store, models.RegistrationVerified)

	config, _, err := engine.GetOrCreateDefault(context.Background(), device)
	if err != nil {
		t.Fatalf("seed config: %v", err)
	}

	engineVal := 150
	pumpVal := -5
	updated, err := engine.UpdatePerformance(context.Background(), config.ID, &engineVal, &pumpVal)
	if err != nil {
		t.Fatalf("update performance: %v", err)
	}

	if updated.EnginePerformance != 100 {
		t.Errorf("engine performance = %d, want clamped to 100", updated.EnginePerformance)
	}
	if updated.PumpPerformance != 0 {
		t.Errorf("pump performance = %d, want clamped to 0", updated.PumpPerformance)
	}

	// nil leaves the value alone
	updated, err = engine.UpdatePerformance(context.Background(), config.ID, nil, nil)
	if err != nil {
		t.Fatalf("noop update: %v", err)
	}
	if updated.EnginePerformance != 100 || updated.PumpPerformance != 0 {
		t.Error("nil values must not change performance")
	}
}

func TestApplyToDevicesBestEffort(t *testing.T) {
	engine, store, gateway := newTestConfigEngine(t)
	healthy := seedDevice(store, models.RegistrationVerified)
	broken := seedDevice(store, models.RegistrationVerified)
	store.failUpdateDevice[broken.ID] = errors.New("connection reset")
	missing := uuid.New()

	template := &models.ConfigurationTemplate{
		Name: "spring defaults",
		Settings: models.Variables{
			"pricing": map[string]interface{}{"price_per_minute": "12.00"},
			"timers":  map[string]interface{}{"default_timeout": 240},
		},
		IsActive: true,
	}
	if err := store.CreateTemplate(context.Background(), template); err != nil {
		t.Fatalf("seed template: %v", err)
	}

	result, err := engine.ApplyToDevices(context.Background(), template.ID,
		[]uuid.UUID{healthy.ID, broken.ID, missing}, true, nil)
	if err != nil {
		t.Fatalf("apply to devices: %v", err)
	}

	if result.SuccessCount != 1 {
		t.Errorf("success count = %d, want 1", result.SuccessCount)
	}
	if result.ErrorCount != 2 {
		t.Errorf("error count = %d, want 2", result.ErrorCount)
	}
	if len(result.Applied) != 1 || result.Applied[0].DeviceID != healthy.ID {
		t.Error("applied list should carry the healthy device")
	}
	if healthy.Settings == nil {
		t.Fatal("settings were not written to the healthy device")
	}
	if _, ok := healthy.Settings["pricing"]; !ok {
		t.Error("template sections missing from device settings")
	}

	// Audit records exist for both attempted devices, not the unknown id.
	applications, _, err := store.ListTemplateApplications(context.Background(), storage.ApplicationFilters{}, 100, 0)
	if err != nil {
		t.Fatalf("list applications: %v", err)
	}
	if len(applications) != 2 {
		t.Fatalf("application records = %d, want 2", len(applications))
	}
	statuses := map[uuid.UUID]models.ApplicationStatus{}
	for _, application := range applications {
		statuses[application.DeviceID] = application.Status
	}
	if statuses[healthy.ID] != models.ApplicationSuccess {
		t.Error("healthy device should have a success record")
	}
	if statuses[broken.ID] != models.ApplicationFailed {
		t.Error("broken device should have a failed record")
	}

	if gateway.count() != 1 {
		t.Errorf("published %d snapshots, want 1 (successes only)", gateway.count())
	}
}

func TestApplyToDevicesMergePreservesExistingKeys(t *testing.T) {
	engine, store, _ := newTestConfigEngine(t)
	device := seedDevice(store, models.RegistrationVerified)
	device.Settings = models.Variables{
		"timers":   map[string]interface{}{"default_timeout": 120},
		"branding": map[string]interface{}{"theme": "dark"},
	}

	template := &models.ConfigurationTemplate{
		Name: "timer reset",
		Settings: models.Variables{
			"pricing": map[string]interface{}{"price_per_minute": "8.00"},
			"timers":  map[string]interface{}{"default_timeout": 300},
		},
	}
	if err := store.CreateTemplate(context.Background(), template); err != nil {
		t.Fatalf("seed template: %v", err)
	}

	if _, err := engine.ApplyToDevices(context.Background(), template.ID, []uuid.UUID{device.ID}, false, nil); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, ok := device.Settings["branding"]; !ok {
		t.Error("merge must preserve keys the template does not carry")
	}
	timers, _ := device.Settings["timers"].(map[string]interface{})
	if timers["default_timeout"] != 300 {
		t.Errorf("timers section = %v, want template value", timers)
	}
}

func TestApplyToDevicesUnknownTemplate(t *testing.T) {
	engine, _, _ := newTestConfigEngine(t)

	_, err := engine.ApplyToDevices(context.Background(), uuid.New(), []uuid.UUID{uuid.New()}, false, nil)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}
