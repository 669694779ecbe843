package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/omopql/omopql/internal/config"
	"github.com/omopql/omopql/internal/demo/seeder"
	s3store "github.com/omopql/omopql/internal/storage/s3"
)

func main() {
	serviceCfg, err := config.LoadFromEnv("omopql-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	seedCfg, err := seeder.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load seeder config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         serviceCfg.ObjectStore.Endpoint,
		Region:           serviceCfg.ObjectStore.Region,
		Bucket:           serviceCfg.ObjectStore.Bucket,
		AccessKeyID:      serviceCfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  serviceCfg.ObjectStore.SecretAccessKey,
		UseSSL:           serviceCfg.ObjectStore.UseSSL,
		Prefix:           serviceCfg.ObjectStore.Prefix,
		AutoCreateBucket: serviceCfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	service, err := seeder.NewService(seedCfg, logger, store)
	if err != nil {
		logger.Error("failed to initialize seeder", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(
		"seeding demo dataset",
		slog.String("bucket", serviceCfg.ObjectStore.Bucket),
		slog.String("prefix", seedCfg.Prefix),
		slog.Int("person_count", seedCfg.PersonCount),
		slog.Int64("seed", seedCfg.Seed),
	)

	err = service.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("seeding failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("seeding complete")
}
