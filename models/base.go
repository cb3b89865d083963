package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StartingNAV is every team's NAV at game setup and after a reset.
var StartingNAV = decimal.RequireFromString("10.00")

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ensureID fills an empty primary key before insert.
func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
