package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"market-cards-scoring/models"
	"market-cards-scoring/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type firstPick struct{}

func (firstPick) Intn(int) int { return 0 }

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.AllModels()...))

	log := zerolog.Nop()
	catalog := services.NewCatalogService(db, log)
	rounds := services.NewRoundService(db, catalog, services.NewDrawer(catalog, firstPick{}), log)

	app := fiber.New()
	SetupHealthRoutes(app, db)
	SetupGameRoutes(app, services.NewGameService(db, rounds, log), log)
	SetupTeamRoutes(app, services.NewTeamService(db, log), log)
	SetupCardRoutes(app, catalog, log)
	SetupRoundRoutes(app, rounds, log)
	return app
}

func do(t *testing.T, app *fiber.App, method, path, contentType, body string) (int, []byte) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, []byte) {
	return do(t, app, method, path, fiber.MIMEApplicationJSON, body)
}

const deck = "G1,Boom,Markets rally,15,2,-3,1\n"

func TestHealthz(t *testing.T) {
	app := newTestApp(t)
	status, _ := do(t, app, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, fiber.StatusOK, status)
}

func TestGameFlow(t *testing.T) {
	app := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodGet, "/game", "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body := do(t, app, http.MethodPost, "/cards/color/import", fiber.MIMETextPlain, deck)
	require.Equal(t, fiber.StatusCreated, status, string(body))
	status, _ = do(t, app, http.MethodPost, "/cards/black/import", fiber.MIMETextPlain, "K1,Sanctions,,-10,0,20,0\n")
	require.Equal(t, fiber.StatusCreated, status)

	status, body = doJSON(t, app, http.MethodPost, "/game", `{"mode":"virtual","teams":[
		{"name":"Alpha","initial_allocation":{"equity":25,"debt":25,"gold":25,"cash":25}},
		{"name":"Beta","initial_allocation":{"equity":25,"debt":25,"gold":25,"cash":25}}]}`)
	require.Equal(t, fiber.StatusCreated, status, string(body))

	status, body = doJSON(t, app, http.MethodGet, "/teams", "")
	require.Equal(t, fiber.StatusOK, status)
	var teams []models.Team
	require.NoError(t, json.Unmarshal(body, &teams))
	require.Len(t, teams, 2)

	status, body = doJSON(t, app, http.MethodPost, "/rounds/draw", "")
	require.Equal(t, fiber.StatusOK, status, string(body))
	var draw services.Draw
	require.NoError(t, json.Unmarshal(body, &draw))
	require.NotNil(t, draw.Card)
	assert.Equal(t, "G1", draw.Card.CardNumber)

	status, body = doJSON(t, app, http.MethodPost, "/rounds", fmt.Sprintf(`{"card_id":%q}`, draw.Card.ID))
	require.Equal(t, fiber.StatusCreated, status, string(body))
	var round models.Round
	require.NoError(t, json.Unmarshal(body, &round))

	status, body = doJSON(t, app, http.MethodPost, "/rounds", fmt.Sprintf(`{"card_id":%q}`, draw.Card.ID))
	assert.Equal(t, fiber.StatusConflict, status, string(body))

	bad := fmt.Sprintf(`{"allocations":[
		{"team_id":%q,"allocation":{"equity":40,"debt":30,"gold":20,"cash":10},"pitch_score":3},
		{"team_id":%q,"allocation":{"equity":30,"debt":30,"gold":30,"cash":20}}]}`, teams[0].ID, teams[1].ID)
	status, body = doJSON(t, app, http.MethodPost, "/rounds/"+round.ID+"/allocations", bad)
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "sum_mismatch")

	good := fmt.Sprintf(`{"allocations":[
		{"team_id":%q,"allocation":{"equity":40,"debt":30,"gold":20,"cash":10},"pitch_score":3},
		{"team_id":%q,"allocation":{"equity":10,"debt":10,"gold":20,"cash":60},"pitch_score":3}]}`, teams[0].ID, teams[1].ID)
	status, body = doJSON(t, app, http.MethodPost, "/rounds/"+round.ID+"/allocations", good)
	require.Equal(t, fiber.StatusCreated, status, string(body))

	status, body = doJSON(t, app, http.MethodGet, "/standings", "")
	require.Equal(t, fiber.StatusOK, status)
	var standings services.Standings
	require.NoError(t, json.Unmarshal(body, &standings))
	require.Len(t, standings.Teams, 2)
	assert.Equal(t, "Alpha", standings.Teams[0].Name)
	assert.Equal(t, "13.61", standings.Teams[0].CurrentNAV.StringFixed(2))

	status, body = doJSON(t, app, http.MethodGet, "/cards/black", "")
	require.Equal(t, fiber.StatusOK, status)
	var blacks []models.BlackCard
	require.NoError(t, json.Unmarshal(body, &blacks))
	require.Len(t, blacks, 1)

	shock := fmt.Sprintf(`{"black_card_id":%q}`, blacks[0].ID)
	status, _ = doJSON(t, app, http.MethodPost, "/rounds/"+round.ID+"/shock", shock)
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = doJSON(t, app, http.MethodPost, "/rounds/"+round.ID+"/shock", shock)
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/rounds/"+round.ID, "")
	assert.Equal(t, fiber.StatusNoContent, status)
	status, _ = doJSON(t, app, http.MethodGet, "/rounds/"+round.ID, "")
	assert.Equal(t, fiber.StatusNotFound, status)

	status, body = doJSON(t, app, http.MethodPost, "/teams/"+teams[0].ID+"/reset-nav", "")
	assert.Equal(t, fiber.StatusOK, status, string(body))

	status, _ = doJSON(t, app, http.MethodPost, "/game/reset?keep_teams=true", "")
	assert.Equal(t, fiber.StatusOK, status)
	status, body = doJSON(t, app, http.MethodGet, "/game", "")
	require.Equal(t, fiber.StatusOK, status)
	var session models.GameSession
	require.NoError(t, json.Unmarshal(body, &session))
	assert.Equal(t, 0, session.CurrentRound)

	// the kept roster can play straight away
	status, body = doJSON(t, app, http.MethodPost, "/rounds", fmt.Sprintf(`{"card_id":%q}`, draw.Card.ID))
	require.Equal(t, fiber.StatusCreated, status, string(body))

	status, _ = doJSON(t, app, http.MethodDelete, "/cards", "")
	assert.Equal(t, fiber.StatusConflict, status)

	status, _ = doJSON(t, app, http.MethodPost, "/game/reset", "")
	assert.Equal(t, fiber.StatusOK, status)
	status, _ = doJSON(t, app, http.MethodGet, "/game", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestUnknownPhaseAndModeAre400(t *testing.T) {
	app := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/rounds/draw", `{"mode":"virtual","phase":"purple"}`)
	assert.Equal(t, fiber.StatusBadRequest, status, string(body))

	status, body = doJSON(t, app, http.MethodPost, "/game", `{"mode":"remote","teams":[
		{"name":"Alpha","initial_allocation":{"equity":25,"debt":25,"gold":25,"cash":25}}]}`)
	assert.Equal(t, fiber.StatusBadRequest, status, string(body))
	assert.Contains(t, string(body), "unknown mode")
}

func TestRespondErrorLogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		c.Locals("request_id", "req-42")
		return respondError(c, zerolog.New(&buf), io.ErrUnexpectedEOF)
	})

	status, _ := do(t, app, http.MethodGet, "/boom", "", "")
	assert.Equal(t, fiber.StatusInternalServerError, status)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "req-42", entry["request_id"])
	assert.Equal(t, "/boom", entry["path"])
}

func TestImportParseErrorIs422(t *testing.T) {
	app := newTestApp(t)

	status, body := do(t, app, http.MethodPost, "/cards/color/import", fiber.MIMETextPlain,
		"G1,A,,1,1,1,1\nG2,B,,1,1,1,1\nG3,C,,abc,1,1,1\n")
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.EqualValues(t, 3, payload["line"])
	assert.Equal(t, "equity", payload["field"])

	status, body = doJSON(t, app, http.MethodGet, "/cards/color", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, "[]", string(body))
}

func TestCardsPhaseFilter(t *testing.T) {
	app := newTestApp(t)

	status, _ := do(t, app, http.MethodPost, "/cards/color/import", fiber.MIMETextPlain, "G1,A,,1,1,1,1\nR1,B,,1,1,1,1\n")
	require.Equal(t, fiber.StatusCreated, status)

	status, body := doJSON(t, app, http.MethodGet, "/cards/color?phase=red", "")
	require.Equal(t, fiber.StatusOK, status)
	var cards []models.ColorCard
	require.NoError(t, json.Unmarshal(body, &cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "R1", cards[0].CardNumber)

	status, _ = doJSON(t, app, http.MethodGet, "/cards/color?phase=purple", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&services.ValidationFailedError{}, fiber.StatusUnprocessableEntity},
		{fmt.Errorf("wrap: %w", &services.ParseError{Line: 2}), fiber.StatusUnprocessableEntity},
		{fmt.Errorf("team x: %w", services.ErrTeamNotFound), fiber.StatusNotFound},
		{services.ErrNoCardsForPhase, fiber.StatusNotFound},
		{services.ErrShockAlreadyApplied, fiber.StatusConflict},
		{services.ErrNotLatestRound, fiber.StatusConflict},
		{services.ErrCardRequired, fiber.StatusBadRequest},
		{services.ErrCatalogInUse, fiber.StatusConflict},
		{fmt.Errorf("%w %q", models.ErrUnknownPhase, "purple"), fiber.StatusBadRequest},
		{fmt.Errorf("%w %q", models.ErrUnknownMode, "remote"), fiber.StatusBadRequest},
		{io.ErrUnexpectedEOF, fiber.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}
