package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RoundState is the stored lifecycle tag of a round.
//
//	open -> scored -> shocked -> finalized
//	           \________________/
//
// A drawn-but-uncommitted event never reaches the store.
type RoundState string

const (
	RoundStateOpen      RoundState = "open"      // allocations not yet submitted
	RoundStateScored    RoundState = "scored"    // allocations applied, shock still possible
	RoundStateShocked   RoundState = "shocked"   // black card applied
	RoundStateFinalized RoundState = "finalized" // terminal
)

func (s RoundState) CanAcceptAllocations() bool {
	return s == RoundStateOpen
}

func (s RoundState) CanApplyShock() bool {
	return s == RoundStateScored
}

func (s RoundState) CanFinalize() bool {
	return s == RoundStateScored || s == RoundStateShocked
}

// Round is one played market event.
type Round struct {
	ID          string     `json:"id" gorm:"primaryKey;size:36"`
	RoundNumber int        `json:"round_number" gorm:"uniqueIndex;not null"`
	Phase       Phase      `json:"phase" gorm:"type:varchar(16);not null"`
	ColorCardID string     `json:"color_card_id" gorm:"size:36;index;not null"`
	BlackCardID *string    `json:"black_card_id,omitempty" gorm:"size:36"`
	State       RoundState `json:"state" gorm:"type:varchar(16);not null;default:'open'"`
	FinalizedAt *time.Time `json:"finalized_at,omitempty"`

	ColorCard   *ColorCard       `json:"color_card,omitempty" gorm:"foreignKey:ColorCardID"`
	BlackCard   *BlackCard       `json:"black_card,omitempty" gorm:"foreignKey:BlackCardID"`
	Allocations []TeamAllocation `json:"allocations,omitempty" gorm:"foreignKey:RoundID"`

	Timestamps
}

func (r *Round) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// TeamAllocation is one team's submitted allocation and result for a round.
type TeamAllocation struct {
	ID           string          `json:"id" gorm:"primaryKey;size:36"`
	TeamID       string          `json:"team_id" gorm:"size:36;not null;uniqueIndex:idx_allocation_team_round"`
	RoundID      string          `json:"round_id" gorm:"size:36;not null;uniqueIndex:idx_allocation_team_round;index"`
	Allocation   AssetAllocation `json:"allocation" gorm:"embedded;embeddedPrefix:alloc_"`
	PitchScore   int             `json:"pitch_score" gorm:"not null;default:0"`
	EmotionScore int             `json:"emotion_score" gorm:"not null;default:0"`
	NAVBefore    decimal.Decimal `json:"nav_before" gorm:"column:nav_before;type:numeric(12,2);not null"`
	NAVAfter     decimal.Decimal `json:"nav_after" gorm:"column:nav_after;type:numeric(12,2);not null"`

	// WeightedReturn is the event's weighted return in percent.
	WeightedReturn decimal.Decimal `json:"weighted_return" gorm:"type:numeric(12,4);not null"`
	// WeightedModifier is set once a black card is applied to the round.
	WeightedModifier *decimal.Decimal `json:"weighted_modifier,omitempty" gorm:"type:numeric(12,4)"`

	Team *Team `json:"team,omitempty" gorm:"foreignKey:TeamID"`

	Timestamps
}

func (a *TeamAllocation) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
