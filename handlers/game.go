package handlers

import (
	"market-cards-scoring/models"
	"market-cards-scoring/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type startGameRequest struct {
	Mode  models.Mode          `json:"mode"`
	Teams []services.TeamSetup `json:"teams"`
}

type modeRequest struct {
	Mode models.Mode `json:"mode"`
}

type resetRequest struct {
	KeepTeams bool `json:"keep_teams"`
}

func SetupGameRoutes(app *fiber.App, gameService *services.GameService, logger zerolog.Logger) {
	log := logger.With().Str("component", "http").Logger()

	app.Post("/game", func(c *fiber.Ctx) error {
		var req startGameRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		session, err := gameService.StartGame(req.Mode, req.Teams)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(session)
	})

	app.Get("/game", func(c *fiber.Ctx) error {
		session, err := gameService.GetSession()
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(session)
	})

	app.Patch("/game/mode", func(c *fiber.Ctx) error {
		var req modeRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		if _, err := models.ParseMode(string(req.Mode)); err != nil {
			return badRequest(c, "invalid mode", err)
		}
		session, err := gameService.SetMode(req.Mode)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(session)
	})

	// keep_teams may come as a query flag or in the body
	app.Post("/game/reset", func(c *fiber.Ctx) error {
		req := resetRequest{KeepTeams: c.QueryBool("keep_teams", false)}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body", err)
			}
		}
		if err := gameService.ResetGame(req.KeepTeams); err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(fiber.Map{"message": "game reset", "keep_teams": req.KeepTeams})
	})
}
