package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus represents the lifecycle state of a device session
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionPaused    SessionStatus = "paused"
	SessionCompleted SessionStatus = "completed"
	SessionError     SessionStatus = "error"
	SessionCancelled SessionStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionError
}

// DeviceSession represents one timed usage interval of a device,
// bounded by start and stop. At most one session per device may be
// active or paused at any instant.
type DeviceSession struct {
	BaseModel

	DeviceID  uuid.UUID  `json:"deviceId" db:"device_id"`
	ProgramID *uuid.UUID `json:"programId,omitempty" db:"program_id"`

	Status    SessionStatus `json:"status" db:"status"`
	StartedAt time.Time     `json:"startedAt" db:"started_at"`
	EndedAt   *time.Time    `json:"endedAt,omitempty" db:"ended_at"`

	// TotalDuration is wall-clock seconds between start and end,
	// truncated to whole seconds. Set at stop.
	TotalDuration int             `json:"totalDuration" db:"total_duration"`
	AmountCharged decimal.Decimal `json:"amountCharged" db:"amount_charged"`
	BonusTimeUsed int             `json:"bonusTimeUsed" db:"bonus_time_used"`

	ClientCard *string `json:"clientCard,omitempty" db:"client_card"`
}
