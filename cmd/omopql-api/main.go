package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/omopql/omopql/internal/api"
	"github.com/omopql/omopql/internal/api/uistatic"
	"github.com/omopql/omopql/internal/auth"
	"github.com/omopql/omopql/internal/config"
	historypostgres "github.com/omopql/omopql/internal/history/postgres"
	"github.com/omopql/omopql/internal/mockdata"
	"github.com/omopql/omopql/internal/nl2sql"
	"github.com/omopql/omopql/internal/observability"
	"github.com/omopql/omopql/internal/query"
	duckdbengine "github.com/omopql/omopql/internal/query/duckdb"
	postgresengine "github.com/omopql/omopql/internal/query/postgres"
	"github.com/omopql/omopql/internal/storage"
	s3store "github.com/omopql/omopql/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("omopql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	var objectStore storage.ObjectStore
	if cfg.ObjectStore.Bucket != "" {
		store, err := s3store.New(context.Background(), s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		objectStore = store
	}

	var engine query.Engine
	switch {
	case cfg.Warehouse.DSN != "":
		db, err := postgresengine.Open(cfg.Warehouse.DSN, cfg.Warehouse.MaxOpenConns, cfg.Warehouse.MaxIdleConns, cfg.Warehouse.ConnMaxLifetime)
		if err != nil {
			logger.Error("failed to open warehouse", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		engine = postgresengine.NewEngine(db, cfg.Warehouse.Schema)
	case cfg.Demo.Enabled:
		if objectStore == nil {
			logger.Error("demo mode requires an object store")
			os.Exit(1)
		}
		engine = duckdbengine.NewEngine(objectStore, cfg.Demo.Prefix)
	}

	translator, err := nl2sql.New(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize translator", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Translator:        translator,
		Engine:            engine,
		Mock:              mockdata.NewGenerator(cfg.Mock.Seed, cfg.Mock.DefaultRows),
		ObjectStore:       objectStore,
		SchemaSampleRows:  cfg.UI.SchemaSampleRows,
		UI:                uistatic.Handler(),
		DependencyTimeout: time.Second,
	}

	if cfg.History.DSN != "" {
		historyDB, err := historypostgres.Open(context.Background(), historypostgres.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		historyRepo := historypostgres.NewRepository(historyDB)
		deps.History = historyRepo
		deps.Readiness = api.CombineReadinessChecks(
			historyRepo.HealthCheck,
			api.CheckEngine(engine),
		)
	} else {
		deps.Readiness = api.CheckEngine(engine)
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
