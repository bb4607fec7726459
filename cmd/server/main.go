package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"

	"github.com/efreeman/landgrab/internal/config"
	"github.com/efreeman/landgrab/internal/handler"
	"github.com/efreeman/landgrab/internal/logger"
	"github.com/efreeman/landgrab/internal/middleware"
	"github.com/efreeman/landgrab/internal/repository/postgres"
	redisrepo "github.com/efreeman/landgrab/internal/repository/redis"
	"github.com/efreeman/landgrab/internal/scheduler"
	"github.com/efreeman/landgrab/internal/service"
)

func main() {
	logger.Init()
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	log.Info().Str("databaseURL", cfg.DatabaseURL).Msg("Config loaded")

	// Database
	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Repos
	seasonRepo := postgres.NewSeasonRepo(db)
	timeoutRepo := postgres.NewTimeoutRepo(db)

	// Durable scheduler (turn boundaries, draft windows, shot clocks)
	sched := scheduler.New(timeoutRepo)

	// WebSocket hub
	wsHub := handler.NewHub()

	// Services
	timing := service.Timing{
		TurnDuration: cfg.TurnDuration,
		DraftOpen:    cfg.DraftOpen,
		DraftClose:   cfg.DraftClose,
		ShotClock:    cfg.ShotClock,
	}
	turnSvc := service.NewTurnService(seasonRepo, redisClient, sched, wsHub, nil, timing)
	seasonSvc := service.NewSeasonService(seasonRepo, turnSvc)

	// Handlers
	seasonHandler := handler.NewSeasonHandler(seasonSvc, turnSvc)
	wsHandler := handler.NewWSHandler(wsHub)

	// Router
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	api := http.NewServeMux()
	api.HandleFunc("POST /seasons", seasonHandler.CreateSeason)
	api.HandleFunc("GET /seasons", seasonHandler.ListSeasons)
	api.HandleFunc("GET /seasons/{id}", seasonHandler.GetSeason)
	api.HandleFunc("POST /seasons/{id}/join", seasonHandler.JoinSeason)
	api.HandleFunc("POST /seasons/{id}/npcs", seasonHandler.AddNPC)
	api.HandleFunc("POST /seasons/{id}/start", seasonHandler.StartSeason)
	api.HandleFunc("GET /seasons/{id}/standings", seasonHandler.Standings)
	api.HandleFunc("GET /seasons/{id}/actions", seasonHandler.Actions)
	api.HandleFunc("POST /seasons/{id}/interactions", seasonHandler.SubmitInteraction)

	mux.Handle("/api/v1/", http.StripPrefix("/api/v1", api))

	// WebSocket (player identified via query param)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.CORSOrigins), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Recover active seasons (rehydrate Redis from Postgres, then replay
	// persisted timeouts) before taking traffic.
	if err := turnSvc.RecoverSeasons(context.Background()); err != nil {
		log.Error().Err(err).Msg("Failed to recover active seasons (non-fatal)")
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
