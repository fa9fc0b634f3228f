package models

import (
	"github.com/shopspring/decimal"
)

// WashProgram represents a wash program offered on devices.
// Pricing is per second; PricePerMinute is retained for legacy
// configurations and is not used for billing.
type WashProgram struct {
	BaseModel

	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	PricePerSecond decimal.Decimal  `json:"pricePerSecond" db:"price_per_second"`
	PricePerMinute *decimal.Decimal `json:"pricePerMinute,omitempty" db:"price_per_minute"`

	IsActive bool `json:"isActive" db:"is_active"`
}
