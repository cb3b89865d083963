package services

import (
	"fmt"
	"testing"

	"market-cards-scoring/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
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
	return db
}

// scriptedRand replays fixed picks and records the bounds it was asked for.
type scriptedRand struct {
	picks  []int
	bounds []int
}

func (r *scriptedRand) Intn(n int) int {
	r.bounds = append(r.bounds, n)
	if len(r.picks) == 0 {
		return 0
	}
	p := r.picks[0]
	r.picks = r.picks[1:]
	return p % n
}

type fixture struct {
	db      *gorm.DB
	catalog *CatalogService
	teams   *TeamService
	rounds  *RoundService
	game    *GameService
	rand    *scriptedRand
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	log := zerolog.Nop()
	rnd := &scriptedRand{}
	catalog := NewCatalogService(db, log)
	rounds := NewRoundService(db, catalog, NewDrawer(catalog, rnd), log)
	return &fixture{
		db:      db,
		catalog: catalog,
		teams:   NewTeamService(db, log),
		rounds:  rounds,
		game:    NewGameService(db, rounds, log),
		rand:    rnd,
	}
}

const testColorDeck = `card_number,title,card_text,equity,debt,gold,cash
G1,Boom,Markets rally,15,2,-3,1
G2,Soft landing,Rates ease,4,3,0,1
R1,Crash,Equities slump,-20,5,10,1
`

const testBlackDeck = `card_number,title,card_text,equity,debt,gold,cash
K1,Flat,Nothing happens,0,0,0,0
K2,Sanctions,Trade halts,-10,0,20,0
`

func (f *fixture) seedCatalog(t *testing.T) {
	t.Helper()
	_, err := f.catalog.ImportColorCards(testColorDeck)
	require.NoError(t, err)
	_, err = f.catalog.ImportBlackCards(testBlackDeck)
	require.NoError(t, err)
}

func (f *fixture) colorCard(t *testing.T, number string) *models.ColorCard {
	t.Helper()
	var card models.ColorCard
	require.NoError(t, f.db.First(&card, "card_number = ?", number).Error)
	return &card
}

func (f *fixture) blackCard(t *testing.T, number string) *models.BlackCard {
	t.Helper()
	var card models.BlackCard
	require.NoError(t, f.db.First(&card, "card_number = ?", number).Error)
	return &card
}

// startTwoTeamGame seeds the catalog and starts a game with teams Alpha and Beta.
func (f *fixture) startTwoTeamGame(t *testing.T) (alpha, beta models.Team) {
	t.Helper()
	f.seedCatalog(t)
	_, err := f.game.StartGame(models.ModeVirtual, []TeamSetup{
		{Name: "Alpha", InitialAllocation: alloc(25, 25, 25, 25)},
		{Name: "Beta", InitialAllocation: alloc(40, 40, 10, 10)},
	})
	require.NoError(t, err)

	teams, err := f.teams.ListTeams()
	require.NoError(t, err)
	require.Len(t, teams, 2)
	for _, team := range teams {
		switch team.Name {
		case "Alpha":
			alpha = team
		case "Beta":
			beta = team
		}
	}
	return alpha, beta
}

func alloc(e, d, g, c int) models.AssetAllocation {
	return models.AssetAllocation{Equity: e, Debt: d, Gold: g, Cash: c}
}

func navOf(t *testing.T, f *fixture, teamID string) string {
	t.Helper()
	team, err := f.teams.GetTeam(teamID)
	require.NoError(t, err)
	return team.CurrentNAV.StringFixed(2)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
