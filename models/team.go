package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Team is one competing team and its running ledger.
// CurrentNAV and the score totals change only through round submission,
// shock application, rollback and an explicit NAV reset.
type Team struct {
	ID                string          `json:"id" gorm:"primaryKey;size:36"`
	Name              string          `json:"name" gorm:"not null"`
	Slug              string          `json:"slug" gorm:"uniqueIndex;not null"`
	CurrentNAV        decimal.Decimal `json:"current_nav" gorm:"column:current_nav;type:numeric(12,2);not null"`
	PitchTotal        int             `json:"pitch_total" gorm:"not null;default:0"`
	EmotionTotal      int             `json:"emotion_total" gorm:"not null;default:0"`
	InitialAllocation AssetAllocation `json:"initial_allocation" gorm:"embedded;embeddedPrefix:initial_"`

	Timestamps
}

func (t *Team) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
