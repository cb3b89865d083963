package handlers

import (
	"market-cards-scoring/models"
	"market-cards-scoring/services"
	"market-cards-scoring/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func SetupCardRoutes(app *fiber.App, catalogService *services.CatalogService, logger zerolog.Logger) {
	log := logger.With().Str("component", "http").Logger()

	app.Get("/cards/color", func(c *fiber.Ctx) error {
		var (
			cards []models.ColorCard
			err   error
		)
		if raw := c.Query("phase"); raw != "" {
			phase, perr := models.ParsePhase(raw)
			if perr != nil {
				return badRequest(c, "invalid phase", perr)
			}
			cards, err = catalogService.ColorCardsByPhase(phase)
		} else {
			cards, err = catalogService.ListColorCards()
		}
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(cards)
	})

	app.Get("/cards/color/:id", func(c *fiber.Ctx) error {
		card, err := catalogService.GetColorCard(c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(card)
	})

	app.Get("/cards/black", func(c *fiber.Ctx) error {
		cards, err := catalogService.ListBlackCards()
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(cards)
	})

	app.Get("/cards/black/:id", func(c *fiber.Ctx) error {
		card, err := catalogService.GetBlackCard(c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(card)
	})

	app.Post("/cards/color/import", func(c *fiber.Ctx) error {
		text, err := importText(c)
		if err != nil {
			return badRequest(c, "could not read deck", err)
		}
		cards, err := catalogService.ImportColorCards(text)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"imported": len(cards), "cards": cards})
	})

	app.Post("/cards/black/import", func(c *fiber.Ctx) error {
		text, err := importText(c)
		if err != nil {
			return badRequest(c, "could not read deck", err)
		}
		cards, err := catalogService.ImportBlackCards(text)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"imported": len(cards), "cards": cards})
	})

	app.Delete("/cards", func(c *fiber.Ctx) error {
		if err := catalogService.ClearCatalog(); err != nil {
			return respondError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// importText takes the deck from a multipart "file" field, falling back to the raw body.
func importText(c *fiber.Ctx) (string, error) {
	if fileHeader, err := c.FormFile("file"); err == nil {
		data, err := utils.ReadUploadedFile(fileHeader)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	body := c.Body()
	if len(body) > utils.MaxImportBytes {
		return "", fiber.ErrRequestEntityTooLarge
	}
	return string(body), nil
}
