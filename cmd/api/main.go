package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pleasantpearl/pleasantpearl-backend/api/routes"
	"github.com/pleasantpearl/pleasantpearl-backend/internal/catalog"
	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/metrics"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/migrate"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/outbox"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/imagecdn"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/objectstore"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	imageClient, err := imagecdn.NewClient(cfg.ImageCDN, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap image cdn", err)
		os.Exit(1)
	}

	storeClient, err := objectstore.NewClient(context.Background(), cfg.ObjectStore, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap object store", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	mediaMetrics := metrics.NewMediaMetrics(registry)

	ingestor := media.NewIngestor(imageClient, storeClient, cfg.Media, cfg.ObjectStore.MaxSignTTL, logg, mediaMetrics)
	resolver := media.NewResolver(storeClient, cfg.ObjectStore, cfg.Media.ResolverWorkers, logg, mediaMetrics)
	cleaner := media.NewCleaner(imageClient, storeClient, logg, mediaMetrics)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	catalogService, err := catalog.NewService(
		catalog.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		ingestor,
		resolver,
		cleaner,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, registry, catalogService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
