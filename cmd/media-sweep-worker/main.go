package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/internal/media/sweeper"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/config"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/metrics"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/pubsub"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/imagecdn"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/storage/objectstore"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "media-sweep-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "media-sweep-worker"

	logg = logger.New(logger.Options{
		ServiceName: "media-sweep-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	imageClient, err := imagecdn.NewClient(cfg.ImageCDN, logg)
	requireResource(ctx, logg, "image cdn", err)

	storeClient, err := objectstore.NewClient(context.Background(), cfg.ObjectStore, logg)
	requireResource(ctx, logg, "object store", err)

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, true, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer pubsubClient.Close()

	cleaner := media.NewCleaner(imageClient, storeClient, logg, metrics.NewMediaMetrics(nil))
	sweep, err := sweeper.New(cleaner, pubsubClient.CatalogSubscription(), logg)
	requireResource(ctx, logg, "media sweeper", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"serviceKind": cfg.Service.Kind,
		"env":         cfg.App.Env,
	})
	logg.Info(runCtx, "media sweep worker ready")

	if err := sweep.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "media sweep worker not working", err)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
