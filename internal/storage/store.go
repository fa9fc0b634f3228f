package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Device methods
	CreateDevice(ctx context.Context, device *models.Device) error
	GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error)
	GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)
	UpdateDevice(ctx context.Context, device *models.Device) error
	DeleteDevice(ctx context.Context, id uuid.UUID) error
	ListDevices(ctx context.Context, filters DeviceFilters, limit, offset int) ([]*models.Device, int64, error)

	// Wash program methods
	CreateProgram(ctx context.Context, program *models.WashProgram) error
	GetProgram(ctx context.Context, id uuid.UUID) (*models.WashProgram, error)
	UpdateProgram(ctx context.Context, program *models.WashProgram) error
	DeleteProgram(ctx context.Context, id uuid.UUID) error
	ListPrograms(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.WashProgram, int64, error)

	// Device configuration methods
	CreateConfiguration(ctx context.Context, config *models.DeviceConfiguration) error
	GetConfiguration(ctx context.Context, id uuid.UUID) (*models.DeviceConfiguration, error)
	GetConfigurationByDevice(ctx context.Context, deviceID uuid.UUID) (*models.DeviceConfiguration, error)
	UpdateConfiguration(ctx context.Context, config *models.DeviceConfiguration) error
	DeleteConfiguration(ctx context.Context, id uuid.UUID) error
	ListConfigurations(ctx context.Context, templates bool, limit, offset int) ([]*models.DeviceConfiguration, int64, error)
	GetProgramSettings(ctx context.Context, configID uuid.UUID) ([]models.ProgramSetting, error)
	ReplaceProgramSettings(ctx context.Context, configID uuid.UUID, settings []models.ProgramSetting) error

	// Session methods
	CreateSession(ctx context.Context, session *models.DeviceSession) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error)
	UpdateSession(ctx context.Context, session *models.DeviceSession) error
	ListDeviceSessionsByStatus(ctx context.Context, deviceID uuid.UUID, statuses ...models.SessionStatus) ([]*models.DeviceSession, error)
	ListSessions(ctx context.Context, filters SessionFilters, limit, offset int) ([]*models.DeviceSession, int64, error)

	// Device log methods
	CreateDeviceLog(ctx context.Context, entry *models.DeviceLog) error
	ListDeviceLogs(ctx context.Context, filters LogFilters, limit, offset int) ([]*models.DeviceLog, int64, error)

	// Configuration template methods
	CreateTemplate(ctx context.Context, template *models.ConfigurationTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.ConfigurationTemplate, error)
	UpdateTemplate(ctx context.Context, template *models.ConfigurationTemplate) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	ListTemplates(ctx context.Context, limit, offset int) ([]*models.ConfigurationTemplate, int64, error)
	CreateTemplateApplication(ctx context.Context, application *models.TemplateApplication) error
	ListTemplateApplications(ctx context.Context, filters ApplicationFilters, limit, offset int) ([]*models.TemplateApplication, int64, error)

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error

	// Close the store
	Close() error
}

// DeviceFilters represents filters for device listings
type DeviceFilters struct {
	Status             *models.DeviceStatus
	RegistrationStatus *models.RegistrationStatus
	IsActive           *bool
	Search             string
}

// SessionFilters represents filters for session listings
type SessionFilters struct {
	DeviceID  *uuid.UUID
	ProgramID *uuid.UUID
	Status    *models.SessionStatus
}

// LogFilters represents filters for device log listings
type LogFilters struct {
	DeviceID  *uuid.UUID
	LogType   *models.LogType
	StartTime *time.Time
	EndTime   *time.Time
}

// ApplicationFilters represents filters for template application listings
type ApplicationFilters struct {
	TemplateID *uuid.UUID
	DeviceID   *uuid.UUID
	Status     *models.ApplicationStatus
	StartTime  *time.Time
	EndTime    *time.Time
}
