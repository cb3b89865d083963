package handlers

import (
	"errors"

	"market-cards-scoring/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

type startRoundRequest struct {
	CardID string `json:"card_id"`
}

type submitRequest struct {
	Allocations []services.Submission `json:"allocations"`
}

type shockRequest struct {
	BlackCardID string `json:"black_card_id"`
}

func SetupRoundRoutes(app *fiber.App, roundService *services.RoundService, logger zerolog.Logger) {
	log := logger.With().Str("component", "http").Logger()

	// Drawing has no side effects; call again to redraw.
	app.Post("/rounds/draw", func(c *fiber.Ctx) error {
		var req services.DrawRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return badRequest(c, "invalid request body", err)
			}
		}
		draw, err := roundService.DrawEvent(req)
		if errors.Is(err, services.ErrNoCardsForPhase) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error(), "phase": draw.Phase})
		}
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(draw)
	})

	app.Post("/rounds", func(c *fiber.Ctx) error {
		var req startRoundRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		round, err := roundService.StartRound(req.CardID)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(round)
	})

	app.Get("/rounds", func(c *fiber.Ctx) error {
		rounds, err := roundService.ListRounds()
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(rounds)
	})

	app.Get("/rounds/:id", func(c *fiber.Ctx) error {
		round, err := roundService.GetRound(c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(round)
	})

	app.Get("/rounds/:id/allocations", func(c *fiber.Ctx) error {
		allocs, err := roundService.RoundAllocations(c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(allocs)
	})

	app.Post("/rounds/:id/allocations", func(c *fiber.Ctx) error {
		var req submitRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		allocs, err := roundService.SubmitAllocations(c.Params("id"), req.Allocations)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.Status(fiber.StatusCreated).JSON(allocs)
	})

	app.Post("/rounds/:id/shock", func(c *fiber.Ctx) error {
		var req shockRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid request body", err)
		}
		if req.BlackCardID == "" {
			return badRequest(c, "black_card_id is required", nil)
		}
		allocs, err := roundService.ApplyShock(c.Params("id"), req.BlackCardID)
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(allocs)
	})

	app.Post("/rounds/:id/finalize", func(c *fiber.Ctx) error {
		round, err := roundService.FinalizeRound(c.Params("id"))
		if err != nil {
			return respondError(c, log, err)
		}
		return c.JSON(round)
	})

	// ❗ Rollback is the only undo; only the latest round qualifies.
	app.Delete("/rounds/:id", func(c *fiber.Ctx) error {
		if err := roundService.RollbackRound(c.Params("id")); err != nil {
			return respondError(c, log, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
