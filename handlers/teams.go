package handlers

import (
	"market-cards-scoring/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

func SetupTeamRoutes(app *fiber.App, teamService *services.TeamService, logger zerolog.Logger) {
	log := logger.With().Str("component", "http").Logger()

	app.Get("/teams", func(c *fiber.Ctx) error {
		teams, err := teamService.ListTeams()
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(teams)
	})

	app.Post("/teams", func(c *fiber.Ctx) error {
		var req services.TeamSetup
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		team, err := teamService.AddTeam(req)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(team)
	})

	app.Delete("/teams/:id", func(c *fiber.Ctx) error {
		if err := teamService.RemoveTeam(c.Params("id")); err != nil {
			return respondError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	app.Post("/teams/:id/reset-nav", func(c *fiber.Ctx) error {
		team, err := teamService.ResetTeamNav(c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(team)
	})

	app.Get("/standings", func(c *fiber.Ctx) error {
		standings, err := teamService.Standings()
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(standings)
	})
}
