package models

import "gorm.io/gorm"

// ColorCard is a market event: a phase-tagged vector of asset returns.
// Catalog data; read-only during play.
type ColorCard struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	CardNumber string     `json:"card_number" gorm:"uniqueIndex;not null"`
	Phase      Phase      `json:"phase" gorm:"type:varchar(16);index;not null"`
	Title      string     `json:"title"`
	CardText   string     `json:"card_text" gorm:"type:text"`
	Returns    AssetRates `json:"returns" gorm:"embedded;embeddedPrefix:return_"`

	Timestamps
}

func (c *ColorCard) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// BlackCard is a shock: a vector of modifiers applied on top of a round's result.
type BlackCard struct {
	ID         string     `json:"id" gorm:"primaryKey;size:36"`
	CardNumber string     `json:"card_number" gorm:"uniqueIndex;not null"`
	Title      string     `json:"title"`
	CardText   string     `json:"card_text" gorm:"type:text"`
	Modifiers  AssetRates `json:"modifiers" gorm:"embedded;embeddedPrefix:modifier_"`

	Timestamps
}

func (c *BlackCard) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CardKind distinguishes the two catalogs.
type CardKind string

const (
	CardKindColor CardKind = "color"
	CardKindBlack CardKind = "black"
)

// CatalogImport records a deck file already imported from the object store,
// so the sync worker imports each object version once.
type CatalogImport struct {
	ID        string   `json:"id" gorm:"primaryKey;size:36"`
	Source    string   `json:"source" gorm:"not null"` // bucket name
	ObjectKey string   `json:"object_key" gorm:"uniqueIndex:idx_catalog_import_object;not null"`
	ETag      string   `json:"etag" gorm:"column:etag;uniqueIndex:idx_catalog_import_object"`
	Kind      CardKind `json:"kind" gorm:"type:varchar(16);not null"`
	CardCount int      `json:"card_count"`

	Timestamps
}

func (c *CatalogImport) BeforeCreate(tx *gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
