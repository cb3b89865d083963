package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"market-cards-scoring/config"
	"market-cards-scoring/handlers"
	"market-cards-scoring/middleware"
	"market-cards-scoring/models"
	"market-cards-scoring/services"
	"market-cards-scoring/utils"
	"market-cards-scoring/workers"

	"github.com/go-co-op/gocron/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, envFound, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.LogLevel, cfg.LogPretty)
	if !envFound {
		logger.Warn().Msg("⚠️  No .env file found, reading environment variables directly")
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	rnd, err := services.NewRandomSource(cfg.RandomSeed)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to seed random source")
	}

	catalogService := services.NewCatalogService(db, logger)
	teamService := services.NewTeamService(db, logger)
	roundService := services.NewRoundService(db, catalogService, services.NewDrawer(catalogService, rnd), logger)
	gameService := services.NewGameService(db, roundService, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sched gocron.Scheduler
	if cfg.R2.Enabled() {
		store, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize R2 client")
		}
		syncWorker := workers.NewCatalogSyncWorker(catalogService, store, cfg.R2.SyncPrefix, cfg.R2.SyncInterval, logger)
		if sched, err = syncWorker.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to start catalog sync")
		}
	} else {
		logger.Info().Msg("ℹ️ R2_BUCKET_NAME not set, catalog sync disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             utils.MaxImportBytes + 64*1024,
		DisableStartupMessage: true,
	})

	origins := strings.Join(cfg.Origins(), ",")
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders: "Origin, Content-Type, Accept, X-Requested-With, X-Request-ID",
		MaxAge:       86400,
	}))
	app.Use(middleware.RequestLogger(logger))

	handlers.SetupHealthRoutes(app, db)
	handlers.SetupGameRoutes(app, gameService, logger)
	handlers.SetupTeamRoutes(app, teamService, logger)
	handlers.SetupCardRoutes(app, catalogService, logger)
	handlers.SetupRoundRoutes(app, roundService, logger)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	logger.Info().Int("port", cfg.Port).Str("driver", cfg.DatabaseDriver).Msg("✅ Server running")
	logger.Info().Str("origins", origins).Msg("✅ CORS configured")

	<-ctx.Done()
	logger.Info().Msg("Shutting down server...")

	if sched != nil {
		if err := sched.Shutdown(); err != nil {
			logger.Warn().Err(err).Msg("catalog sync did not stop cleanly")
		}
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn().Err(err).Msg("server did not stop cleanly")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DatabaseDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	default:
		dialector = sqlite.Open(cfg.DatabaseURL)
	}

	level := gormlogger.Warn
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer.
	if cfg.DatabaseDriver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
