package services

import (
	"errors"
	"fmt"
	"strings"

	"market-cards-scoring/models"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// CatalogService owns the color-card and black-card catalogs. Cards are
// read-only during play; imports only append.
type CatalogService struct {
	DB  *gorm.DB
	log zerolog.Logger
}

func NewCatalogService(db *gorm.DB, log zerolog.Logger) *CatalogService {
	return &CatalogService{DB: db, log: log.With().Str("component", "catalog").Logger()}
}

// GetColorCard looks a color card up by id.
func (s *CatalogService) GetColorCard(id string) (*models.ColorCard, error) {
	return getColorCard(s.DB, id)
}

func getColorCard(db *gorm.DB, id string) (*models.ColorCard, error) {
	var card models.ColorCard
	if err := db.First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("color card %s: %w", id, ErrCardNotFound)
		}
		return nil, err
	}
	return &card, nil
}

// GetBlackCard looks a black card up by id.
func (s *CatalogService) GetBlackCard(id string) (*models.BlackCard, error) {
	return getBlackCard(s.DB, id)
}

func getBlackCard(db *gorm.DB, id string) (*models.BlackCard, error) {
	var card models.BlackCard
	if err := db.First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("black card %s: %w", id, ErrCardNotFound)
		}
		return nil, err
	}
	return &card, nil
}

// ColorCardsByPhase returns a phase's pool ordered by card number.
func (s *CatalogService) ColorCardsByPhase(phase models.Phase) ([]models.ColorCard, error) {
	var cards []models.ColorCard
	err := s.DB.Where("phase = ?", phase).Order("card_number ASC").Find(&cards).Error
	return cards, err
}

// ListColorCards returns every color card ordered by card number.
func (s *CatalogService) ListColorCards() ([]models.ColorCard, error) {
	var cards []models.ColorCard
	err := s.DB.Order("card_number ASC").Find(&cards).Error
	return cards, err
}

// ListBlackCards returns every black card ordered by card number.
func (s *CatalogService) ListBlackCards() ([]models.BlackCard, error) {
	var cards []models.BlackCard
	err := s.DB.Order("card_number ASC").Find(&cards).Error
	return cards, err
}

// ImportColorCards parses a deck and appends it to the color catalog. Any bad
// row rejects the whole batch.
func (s *CatalogService) ImportColorCards(text string) ([]models.ColorCard, error) {
	var cards []models.ColorCard
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		cards, err = importColorCards(tx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("cards", len(cards)).Msg("📥 Imported color cards")
	return cards, nil
}

// ImportBlackCards parses a deck and appends it to the black catalog.
func (s *CatalogService) ImportBlackCards(text string) ([]models.BlackCard, error) {
	var cards []models.BlackCard
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var err error
		cards, err = importBlackCards(tx, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("cards", len(cards)).Msg("📥 Imported black cards")
	return cards, nil
}

// ImportDeck imports a deck of the given kind and records where it came from,
// in one transaction. Used by the bucket sync.
func (s *CatalogService) ImportDeck(kind models.CardKind, text string, record *models.CatalogImport) (int, error) {
	count := 0
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		switch kind {
		case models.CardKindBlack:
			cards, err := importBlackCards(tx, text)
			if err != nil {
				return err
			}
			count = len(cards)
		default:
			cards, err := importColorCards(tx, text)
			if err != nil {
				return err
			}
			count = len(cards)
		}
		if record == nil {
			return nil
		}
		record.Kind = kind
		record.CardCount = count
		return tx.Create(record).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// HasImport reports whether this version of an object was already imported.
func (s *CatalogService) HasImport(objectKey, etag string) (bool, error) {
	var count int64
	err := s.DB.Model(&models.CatalogImport{}).
		Where("object_key = ? AND etag = ?", objectKey, etag).
		Count(&count).Error
	return count > 0, err
}

// ClearCatalog removes every color and black card. Rounds reference cards by
// id, so the catalog can only be cleared once no round exists; a full game
// reset clears both together.
func (s *CatalogService) ClearCatalog() error {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var rounds int64
		if err := tx.Model(&models.Round{}).Count(&rounds).Error; err != nil {
			return err
		}
		if rounds > 0 {
			return fmt.Errorf("%d rounds reference the catalog: %w", rounds, ErrCatalogInUse)
		}
		return clearCatalog(tx)
	})
	if err != nil {
		return err
	}
	s.log.Warn().Msg("🧹 Catalog cleared")
	return nil
}

func clearCatalog(tx *gorm.DB) error {
	if err := tx.Where("1 = 1").Delete(&models.ColorCard{}).Error; err != nil {
		return err
	}
	if err := tx.Where("1 = 1").Delete(&models.BlackCard{}).Error; err != nil {
		return err
	}
	return tx.Where("1 = 1").Delete(&models.CatalogImport{}).Error
}

func importColorCards(tx *gorm.DB, text string) ([]models.ColorCard, error) {
	rows, err := parseCardRows(text, models.CardKindColor)
	if err != nil {
		return nil, err
	}
	if err := rejectExistingNumbers(tx, &models.ColorCard{}, rows); err != nil {
		return nil, err
	}

	cards := make([]models.ColorCard, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, models.ColorCard{
			CardNumber: row.CardNumber,
			Phase:      row.Phase,
			Title:      row.Title,
			CardText:   row.CardText,
			Returns:    row.Rates,
		})
	}
	if err := tx.CreateInBatches(&cards, 100).Error; err != nil {
		return nil, fmt.Errorf("insert color cards: %w", err)
	}
	return cards, nil
}

func importBlackCards(tx *gorm.DB, text string) ([]models.BlackCard, error) {
	rows, err := parseCardRows(text, models.CardKindBlack)
	if err != nil {
		return nil, err
	}
	if err := rejectExistingNumbers(tx, &models.BlackCard{}, rows); err != nil {
		return nil, err
	}

	cards := make([]models.BlackCard, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, models.BlackCard{
			CardNumber: row.CardNumber,
			Title:      row.Title,
			CardText:   row.CardText,
			Modifiers:  row.Rates,
		})
	}
	if err := tx.CreateInBatches(&cards, 100).Error; err != nil {
		return nil, fmt.Errorf("insert black cards: %w", err)
	}
	return cards, nil
}

// rejectExistingNumbers fails on the first row whose card number is already cataloged.
func rejectExistingNumbers(tx *gorm.DB, model any, rows []cardRow) error {
	numbers := make([]string, 0, len(rows))
	for _, row := range rows {
		numbers = append(numbers, row.CardNumber)
	}

	var existing []string
	if err := tx.Model(model).Where("card_number IN ?", numbers).Pluck("card_number", &existing).Error; err != nil {
		return err
	}
	if len(existing) == 0 {
		return nil
	}

	taken := make(map[string]bool, len(existing))
	for _, n := range existing {
		taken[strings.ToUpper(n)] = true
	}
	for _, row := range rows {
		if taken[strings.ToUpper(row.CardNumber)] {
			return &ParseError{Line: row.Line, Field: "card_number", Reason: fmt.Sprintf("card %s is already in the catalog", row.CardNumber)}
		}
	}
	return nil
}
