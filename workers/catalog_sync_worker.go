package workers

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"market-cards-scoring/models"
	"market-cards-scoring/services"
	"market-cards-scoring/utils"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// ObjectStore is the read side of the deck bucket. *utils.R2Client satisfies it.
type ObjectStore interface {
	Bucket() string
	List(ctx context.Context, prefix string) ([]utils.ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

var deckExtensions = map[string]bool{".csv": true, ".tsv": true, ".txt": true}

// CatalogSyncWorker imports card decks dropped into the bucket. Each object
// version (key + etag) is imported once; objects whose key mentions "black"
// go to the shock catalog, everything else to the color catalog.
type CatalogSyncWorker struct {
	catalog  *services.CatalogService
	store    ObjectStore
	prefix   string
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	failed map[string]bool // key@etag that failed to parse
}

func NewCatalogSyncWorker(catalog *services.CatalogService, store ObjectStore, prefix string, interval time.Duration, log zerolog.Logger) *CatalogSyncWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CatalogSyncWorker{
		catalog:  catalog,
		store:    store,
		prefix:   prefix,
		interval: interval,
		log:      log.With().Str("component", "catalog-sync").Logger(),
		failed:   map[string]bool{},
	}
}

// Start schedules SyncOnce right away and then every interval. Stop the
// returned scheduler with Shutdown.
func (w *CatalogSyncWorker) Start(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			if _, err := w.SyncOnce(ctx); err != nil {
				w.log.Error().Err(err).Msg("❌ Catalog sync failed")
			}
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule catalog sync: %w", err)
	}

	sched.Start()
	w.log.Info().Str("bucket", w.store.Bucket()).Str("prefix", w.prefix).Dur("interval", w.interval).Msg("🔁 Catalog sync scheduled")
	return sched, nil
}

// SyncOnce imports every new deck object and returns how many cards were added.
// A deck that fails to parse is logged and skipped until its content changes.
func (w *CatalogSyncWorker) SyncOnce(ctx context.Context) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	objects, err := w.store.List(ctx, w.prefix)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, obj := range objects {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		if !deckExtensions[strings.ToLower(path.Ext(obj.Key))] {
			continue
		}
		version := obj.Key + "@" + obj.ETag
		if w.failed[version] {
			continue
		}
		done, err := w.catalog.HasImport(obj.Key, obj.ETag)
		if err != nil {
			return added, err
		}
		if done {
			continue
		}

		n, err := w.importObject(ctx, obj)
		if err != nil {
			var perr *services.ParseError
			if errors.As(err, &perr) {
				w.failed[version] = true
				w.log.Warn().Str("key", obj.Key).Err(err).Msg("⚠️ Deck rejected")
				continue
			}
			return added, err
		}
		added += n
		w.log.Info().Str("key", obj.Key).Int("cards", n).Msg("📥 Deck imported")
	}
	return added, nil
}

func (w *CatalogSyncWorker) importObject(ctx context.Context, obj utils.ObjectInfo) (int, error) {
	body, err := w.store.Get(ctx, obj.Key)
	if err != nil {
		return 0, err
	}
	record := &models.CatalogImport{
		Source:    w.store.Bucket(),
		ObjectKey: obj.Key,
		ETag:      obj.ETag,
	}
	return w.catalog.ImportDeck(deckKind(obj.Key), string(body), record)
}

func deckKind(key string) models.CardKind {
	if strings.Contains(strings.ToLower(path.Base(key)), "black") {
		return models.CardKindBlack
	}
	return models.CardKindColor
}
