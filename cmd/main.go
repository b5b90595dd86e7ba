package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calvinlm/MatchPoint-Prototype-sub000/config"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/db"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/handlers"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/realtime"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/repositories"
	api "github.com/calvinlm/MatchPoint-Prototype-sub000/routes"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/services"
	"github.com/calvinlm/MatchPoint-Prototype-sub000/storage"
	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
)

const queueDepthInterval = 60 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var snapshots storage.SnapshotStore
	if cfg.SnapshotsEnabled() {
		snapshots, err = storage.NewCloudflareR2Store(storage.CloudflareR2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize R2 snapshot store", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("R2 snapshot store initialized")
	} else {
		logger.Info("snapshot archiving disabled (R2 not configured)")
	}

	wsHub := realtime.NewHub()
	go wsHub.Run()
	logger.Info("realtime hub started")

	transactor := repositories.NewSQLTransactor(dbConn)
	queueRepo := repositories.NewPostgresQueueRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	standingRepo := repositories.NewPostgresStandingRepository(dbConn)
	bracketRepo := repositories.NewPostgresBracketRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo, cfg.JWTSecretKey)
	queueService := services.NewQueueService(transactor, queueRepo, matchRepo, wsHub, logger)
	standingsService := services.NewStandingsService(transactor, matchRepo, standingRepo, bracketRepo, wsHub, snapshots, logger)
	matchService := services.NewMatchService(transactor, matchRepo, queueRepo, standingsService, wsHub, cfg.QueueRemoveCompleted, logger)
	logger.Info("services initialized")

	// Операционная телеметрия: периодически пишем глубину очередей в лог.
	go func() {
		ticker := time.NewTicker(queueDepthInterval)
		defer ticker.Stop()
		for range ticker.C {
			depths, err := queueDepths(context.Background(), dbConn)
			if err != nil {
				logger.Error("queue depth sweep failed", slog.Any("error", err))
				continue
			}
			for tournamentID, depth := range depths {
				logger.Info("queue depth", slog.Int("tournament_id", tournamentID), slog.Int("depth", depth))
			}
		}
	}()

	authHandler := handlers.NewAuthHandler(authService)
	queueHandler := handlers.NewQueueHandler(queueService)
	matchHandler := handlers.NewMatchHandler(matchService)
	standingsHandler := handlers.NewStandingsHandler(standingsService)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub)

	router := chi.NewRouter()
	api.SetupRoutes(router, cfg.JWTSecretKey, authHandler, queueHandler, matchHandler, standingsHandler, webSocketHandler)
	logger.Info("routes configured")

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
}

func queueDepths(ctx context.Context, dbConn *sql.DB) (map[int]int, error) {
	rows, err := dbConn.QueryContext(ctx, `SELECT tournament_id, COUNT(*) FROM queue_items GROUP BY tournament_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	depths := make(map[int]int)
	for rows.Next() {
		var tournamentID, depth int
		if err := rows.Scan(&tournamentID, &depth); err != nil {
			return nil, err
		}
		depths[tournamentID] = depth
	}
	return depths, rows.Err()
}
