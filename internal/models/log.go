package models

import (
	"time"

	"github.com/google/uuid"
)

// LogType represents device log entry types
type LogType string

const (
	LogInfo         LogType = "info"
	LogWarning      LogType = "warning"
	LogError        LogType = "error"
	LogCommand      LogType = "command"
	LogStatusChange LogType = "status_change"
)

// DeviceLog is an append-only device event record. Entries are never
// updated or deleted by the server; retention is an external concern.
type DeviceLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	DeviceID  uuid.UUID `json:"deviceId" db:"device_id"`
	LogType   LogType   `json:"logType" db:"log_type"`
	Message   string    `json:"message" db:"message"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
