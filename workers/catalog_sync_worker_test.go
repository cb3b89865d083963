package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"market-cards-scoring/models"
	"market-cards-scoring/services"
	"market-cards-scoring/utils"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeStore struct {
	objects []utils.ObjectInfo
	bodies  map[string]string
	gets    int
	listErr error
}

func (f *fakeStore) Bucket() string { return "decks-test" }

func (f *fakeStore) List(_ context.Context, _ string) ([]utils.ObjectInfo, error) {
	return f.objects, f.listErr
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	f.gets++
	body, ok := f.bodies[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return []byte(body), nil
}

func newCatalog(t *testing.T) (*services.CatalogService, *gorm.DB) {
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
	return services.NewCatalogService(db, zerolog.Nop()), db
}

func TestSyncOnce_ImportsEachVersionOnce(t *testing.T) {
	catalog, db := newCatalog(t)
	store := &fakeStore{
		objects: []utils.ObjectInfo{
			{Key: "decks/green.csv", ETag: "v1"},
			{Key: "decks/Black-Shocks.csv", ETag: "v1"},
			{Key: "decks/readme.md", ETag: "v1"},
		},
		bodies: map[string]string{
			"decks/green.csv":        "G1,Boom,,15,2,-3,1\nG2,Calm,,1,1,1,1\n",
			"decks/Black-Shocks.csv": "K1,Sanctions,,-10,0,20,0\n",
		},
	}
	w := NewCatalogSyncWorker(catalog, store, "decks/", 0, zerolog.Nop())

	added, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, added)
	assert.Equal(t, 2, store.gets)

	blacks, err := catalog.ListBlackCards()
	require.NoError(t, err)
	assert.Len(t, blacks, 1)

	var imports []models.CatalogImport
	require.NoError(t, db.Order("object_key").Find(&imports).Error)
	require.Len(t, imports, 2)
	assert.Equal(t, "decks-test", imports[0].Source)

	added, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, 2, store.gets)
}

func TestSyncOnce_BadDeckIsSkipped(t *testing.T) {
	catalog, _ := newCatalog(t)
	store := &fakeStore{
		objects: []utils.ObjectInfo{
			{Key: "decks/broken.csv", ETag: "v1"},
			{Key: "decks/red.csv", ETag: "v1"},
		},
		bodies: map[string]string{
			"decks/broken.csv": "G1,A,,1,1,1,1\nG2,B,,x,1,1,1\n",
			"decks/red.csv":    "R1,Crash,,-20,5,10,1\n",
		},
	}
	w := NewCatalogSyncWorker(catalog, store, "decks/", 0, zerolog.Nop())

	added, err := w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	cards, err := catalog.ListColorCards()
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "R1", cards[0].CardNumber)

	// the broken version is not fetched again
	_, err = w.SyncOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets)
}

func TestSyncOnce_ListError(t *testing.T) {
	catalog, _ := newCatalog(t)
	store := &fakeStore{listErr: errors.New("bucket unreachable")}
	w := NewCatalogSyncWorker(catalog, store, "decks/", 0, zerolog.Nop())

	_, err := w.SyncOnce(context.Background())
	assert.Error(t, err)
}

func TestDeckKind(t *testing.T) {
	assert.Equal(t, models.CardKindBlack, deckKind("decks/BLACK_cards.csv"))
	assert.Equal(t, models.CardKindColor, deckKind("black/green.csv"))
}
