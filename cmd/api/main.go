package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/printbridge/backend/api/routes"
	"github.com/printbridge/backend/internal/admin"
	"github.com/printbridge/backend/internal/auth"
	"github.com/printbridge/backend/internal/files"
	"github.com/printbridge/backend/internal/printqueue"
	"github.com/printbridge/backend/internal/settings"
	"github.com/printbridge/backend/internal/stations"
	"github.com/printbridge/backend/internal/users"
	"github.com/printbridge/backend/pkg/config"
	"github.com/printbridge/backend/pkg/db"
	"github.com/printbridge/backend/pkg/logger"
	"github.com/printbridge/backend/pkg/migrate"
	"github.com/printbridge/backend/pkg/redis"
	"github.com/printbridge/backend/pkg/storage"
)

// settingsAdapter exposes the preference lookups the files and print queue
// services need without importing them into the settings package.
type settingsAdapter struct {
	svc settings.Service
}

func (a settingsAdapter) MaxUploadMB(ctx context.Context, userID uuid.UUID) (int, error) {
	row, err := a.svc.Get(ctx, userID)
	if err != nil {
		return 0, err
	}
	return row.MaxUploadMB, nil
}

func (a settingsAdapter) PrintPreferences(ctx context.Context, userID uuid.UUID) (*printqueue.PrintPreferences, error) {
	row, err := a.svc.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &printqueue.PrintPreferences{
		AutoPrintEnabled: row.AutoPrintEnabled,
		Orientation:      row.PrintOrientation,
		Copies:           row.PrintCopies,
		DefaultStationID: row.DefaultStationID,
	}, nil
}

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

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		logg.Error(context.Background(), "failed to prepare upload storage", err)
		os.Exit(1)
	}

	authService, err := auth.NewService(users.NewRepository(dbClient.DB()), cfg.JWT, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	stationsService, err := stations.NewService(stations.NewRepository(dbClient.DB()), dbClient, cfg.Station)
	if err != nil {
		logg.Error(context.Background(), "failed to create stations service", err)
		os.Exit(1)
	}

	settingsService, err := settings.NewService(settings.NewRepository(dbClient.DB()), stationsService)
	if err != nil {
		logg.Error(context.Background(), "failed to create settings service", err)
		os.Exit(1)
	}
	prefs := settingsAdapter{svc: settingsService}

	filesService, err := files.NewService(files.NewRepository(dbClient.DB()), store, prefs, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create files service", err)
		os.Exit(1)
	}

	queueService, err := printqueue.NewService(
		printqueue.NewRepository(dbClient.DB()),
		filesService,
		stationsService,
		prefs,
		dbClient,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create print queue service", err)
		os.Exit(1)
	}

	adminService, err := admin.NewService(admin.NewRepository(dbClient.DB()), dbClient, store)
	if err != nil {
		logg.Error(context.Background(), "failed to create admin service", err)
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
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			authService,
			filesService,
			settingsService,
			stationsService,
			queueService,
			adminService,
		),
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}
