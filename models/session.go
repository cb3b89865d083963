package models

import "gorm.io/gorm"

// GameSession is the single active game. It is replaced wholesale when a new
// game starts and removed on a full reset.
type GameSession struct {
	ID           string `json:"id" gorm:"primaryKey;size:36"`
	Mode         Mode   `json:"mode" gorm:"type:varchar(16);not null"`
	CurrentRound int    `json:"current_round" gorm:"not null;default:0"`
	IsActive     bool   `json:"is_active" gorm:"not null;default:false"`

	Timestamps
}

func (s *GameSession) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// AllModels is the AutoMigrate set.
func AllModels() []any {
	return []any{
		&GameSession{},
		&Team{},
		&ColorCard{},
		&BlackCard{},
		&Round{},
		&TeamAllocation{},
		&CatalogImport{},
	}
}
