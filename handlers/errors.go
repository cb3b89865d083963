package handlers

import (
	"errors"

	"market-cards-scoring/models"
	"market-cards-scoring/scoring"
	"market-cards-scoring/services"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var verr *services.ValidationFailedError
	var perr *services.ParseError
	switch {
	case errors.As(err, &verr), errors.As(err, &perr):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, scoring.ErrAllocationNotNormalized):
		return fiber.StatusInternalServerError
	case errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrRoundNotFound),
		errors.Is(err, services.ErrCardNotFound),
		errors.Is(err, services.ErrNoCardsForPhase),
		errors.Is(err, services.ErrNoActiveGame):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrRoundInProgress),
		errors.Is(err, services.ErrRoundNotOpen),
		errors.Is(err, services.ErrRoundNotScored),
		errors.Is(err, services.ErrShockAlreadyApplied),
		errors.Is(err, services.ErrRoundFinalized),
		errors.Is(err, services.ErrNotLatestRound),
		errors.Is(err, services.ErrDuplicateTeam),
		errors.Is(err, services.ErrCatalogInUse):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrCardRequired),
		errors.Is(err, services.ErrEmptyRoster),
		errors.Is(err, models.ErrUnknownPhase),
		errors.Is(err, models.ErrUnknownMode):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as JSON. Only server-side failures are logged.
func respondError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": err.Error()}

	var verr *services.ValidationFailedError
	var perr *services.ParseError
	switch {
	case errors.As(err, &verr):
		body["error"] = "validation failed"
		body["teams"] = verr.Teams
	case errors.As(err, &perr):
		body["line"] = perr.Line
		body["field"] = perr.Field
		body["reason"] = perr.Reason
	}

	if status >= fiber.StatusInternalServerError {
		requestID, _ := c.Locals("request_id").(string)
		logger.Error().Err(err).
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Msg("❌ Request failed")
		body["error"] = "internal error"
		body["cause"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}
