package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeviceConfiguration holds per-device pricing, timer and performance
// settings. A configuration either belongs to exactly one device or is
// a named template (IsTemplate set, DeviceID nil) used as a copy source.
type DeviceConfiguration struct {
	BaseModel

	DeviceID *uuid.UUID `json:"deviceId,omitempty" db:"device_id"`

	// Pricing
	PricePerMinute decimal.Decimal `json:"pricePerMinute" db:"price_per_minute"`

	// Timers (seconds)
	DefaultTimeout    int `json:"defaultTimeout" db:"default_timeout"`
	ValveResetTimeout int `json:"valveResetTimeout" db:"valve_reset_timeout"`

	// Bonus time
	BonusDurationEnabled bool `json:"bonusDurationEnabled" db:"bonus_duration_enabled"`
	BonusDurationAmount  int  `json:"bonusDurationAmount" db:"bonus_duration_amount"`

	// Performance (0-100)
	EnginePerformance int `json:"enginePerformance" db:"engine_performance"`
	PumpPerformance   int `json:"pumpPerformance" db:"pump_performance"`

	// Template marker
	IsTemplate   bool   `json:"isTemplate" db:"is_template"`
	TemplateName string `json:"templateName,omitempty" db:"template_name"`

	// Per-program overrides
	ProgramSettings []ProgramSetting `json:"programSettings,omitempty"`
}

// ProgramSetting enables a wash program on a configuration, optionally
// overriding its price.
type ProgramSetting struct {
	ConfigID    uuid.UUID        `json:"configId" db:"config_id"`
	ProgramID   uuid.UUID        `json:"programId" db:"program_id"`
	ProgramName string           `json:"programName,omitempty" db:"-"`
	CustomPrice *decimal.Decimal `json:"customPrice,omitempty" db:"custom_price"`
	IsEnabled   bool             `json:"isEnabled" db:"is_enabled"`
}

// ConfigurationTemplate stores a named free-form settings document that
// can be applied to many devices at once. Settings must contain at
// least the "pricing" and "timers" keys.
type ConfigurationTemplate struct {
	BaseModel

	Name        string     `json:"name" db:"name"`
	Description string     `json:"description" db:"description"`
	Settings    Variables  `json:"settings" db:"settings"`
	IsActive    bool       `json:"isActive" db:"is_active"`
	CreatedBy   *uuid.UUID `json:"createdBy,omitempty" db:"created_by"`
}

// ApplicationStatus represents the outcome of a template application
type ApplicationStatus string

const (
	ApplicationSuccess ApplicationStatus = "success"
	ApplicationFailed  ApplicationStatus = "failed"
)

// TemplateApplication records one attempt to apply a template to a device
type TemplateApplication struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	TemplateID   uuid.UUID         `json:"templateId" db:"template_id"`
	DeviceID     uuid.UUID         `json:"deviceId" db:"device_id"`
	AppliedAt    time.Time         `json:"appliedAt" db:"applied_at"`
	AppliedBy    *uuid.UUID        `json:"appliedBy,omitempty" db:"applied_by"`
	Status       ApplicationStatus `json:"status" db:"status"`
	ErrorMessage string            `json:"errorMessage,omitempty" db:"error_message"`
}
