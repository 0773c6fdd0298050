package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/volleyball-tournament/brackets"
	"github.com/Dosada05/volleyball-tournament/config"
	"github.com/Dosada05/volleyball-tournament/db"
	"github.com/Dosada05/volleyball-tournament/handlers"
	"github.com/Dosada05/volleyball-tournament/repositories"
	api "github.com/Dosada05/volleyball-tournament/routes"
	"github.com/Dosada05/volleyball-tournament/scheduler"
	"github.com/Dosada05/volleyball-tournament/services"
	"github.com/Dosada05/volleyball-tournament/storage"
	"github.com/Dosada05/volleyball-tournament/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort), slog.String("store", cfg.StoreDriver))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docStore, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open document store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close document store", slog.Any("error", err))
		} else {
			logger.Info("document store closed")
		}
	}()

	// The archive is optional; without it regeneration refuses to drop finished matches.
	var archiver services.FixtureArchiver
	r2Cfg := storage.CloudflareR2Config{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	}
	if r2Cfg.Enabled() {
		uploader, err := storage.NewCloudflareR2Uploader(ctx, r2Cfg)
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewFixtureArchiver(uploader)
		logger.Info("fixture archive enabled", slog.String("bucket", cfg.R2BucketName))
	}

	teamRepo := repositories.NewTeamRepository(docStore)
	playerRepo := repositories.NewPlayerRepository(docStore)
	tournamentRepo := repositories.NewTournamentRepository(docStore)
	matchRepo := repositories.NewMatchRepository(docStore)
	statRepo := repositories.NewTeamStatRepository(docStore)

	teamService := services.NewTeamService(teamRepo, playerRepo, tournamentRepo, cfg.MatchWriteRetries, logger)
	matchService := services.NewMatchService(matchRepo, teamRepo, tournamentRepo, statRepo, cfg.MatchWriteRetries, logger)
	tournamentService := services.NewTournamentService(tournamentRepo, teamRepo, matchRepo, statRepo, archiver, cfg.MatchWriteRetries, logger)

	wsHub := brackets.NewHub(handlers.LiveFeed(matchService, tournamentService), logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go wsHub.Run(hubCtx)

	phaseScheduler, err := scheduler.New(cfg.PhaseRefreshCron, tournamentService, logger)
	if err != nil {
		logger.Error("failed to create phase scheduler", slog.Any("error", err))
		os.Exit(1)
	}
	phaseScheduler.RefreshNow()
	phaseScheduler.Start()

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Teams:       handlers.NewTeamHandler(teamService),
		Tournaments: handlers.NewTournamentHandler(tournamentService, matchService),
		Matches:     handlers.NewMatchHandler(matchService),
		WebSocket:   handlers.NewWebSocketHandler(wsHub, matchService, tournamentService, cfg.CORSAllowedOrigins, logger),
	}, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
	}
	phaseScheduler.Stop(shutdownCtx)
	stopHub()
	logger.Info("application exited")
}

// openStore returns the configured store and a function releasing it together
// with any connection it owns.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.DocumentStore, func() error, error) {
	switch cfg.StoreDriver {
	case config.StoreBolt:
		s, err := store.NewBoltStore(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.StorePostgres:
		conn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		s, err := store.NewPostgresStore(ctx, conn, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, errors.Join(err, conn.Close())
		}
		return s, func() error { return errors.Join(s.Close(), conn.Close()) }, nil
	default:
		s := store.NewMemoryStore()
		return s, s.Close, nil
	}
}
