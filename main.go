package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/your-username/click-lite-discover/internal/api"
	"github.com/your-username/click-lite-discover/internal/auth"
	"github.com/your-username/click-lite-discover/internal/config"
	"github.com/your-username/click-lite-discover/internal/database"
	"github.com/your-username/click-lite-discover/internal/monitoring"
	"github.com/your-username/click-lite-discover/internal/query"
	"github.com/your-username/click-lite-discover/internal/websocket"
)

var version = "dev"

func main() {
	envFile := pflag.String("env-file", ".env", "environment file to load")
	port := pflag.String("port", "", "listen port, overrides PORT")
	logLevel := pflag.String("log-level", "", "log level, overrides LOG_LEVEL")
	initSchema := pflag.Bool("init-schema", true, "create the events table if missing")
	pflag.Parse()

	// Load environment variables
	if err := godotenv.Load(*envFile); err != nil {
		log.Debug().Err(err).Msg("No .env file found")
	}

	// Load configuration
	cfg := config.Load()
	if *port != "" {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Setup logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if level <= zerolog.DebugLevel {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().Str("version", version).Msg("Starting Click-Lite Discover")

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize database
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if *initSchema {
		if err := database.InitSchema(ctx, db, cfg.Database.Table); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize schema")
		}
	}

	// Query engine and saved queries
	engine := query.NewEngine(db, query.EngineConfig{
		Table:    cfg.Database.Table,
		MaxLimit: cfg.Discover.MaxLimit,
		Timeout:  cfg.Discover.QueryTimeout,
		CacheTTL: cfg.Discover.CacheTTL,
	})
	store := query.NewQueryStore(nil, query.DefaultValidator(cfg.Discover.MaxLimit))

	// Initialize WebSocket hub
	wsHub := websocket.NewHub()
	go wsHub.Run(ctx)

	// Health checks
	health := monitoring.NewHealthMonitor(version)
	health.RegisterChecker(monitoring.NewDatabaseHealthChecker(db))
	health.RegisterChecker(monitoring.NewCacheHealthChecker(func() (int64, int64, int, bool) {
		stats, ok := engine.CacheStats()
		return stats.Hits, stats.Misses, stats.Size, ok
	}, 0.1))

	authenticator := auth.New(cfg.JWT)
	if authenticator == nil {
		log.Warn().Msg("JWT_SECRET is not set, authentication is disabled")
	}

	// Setup routes
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Discover.QueryTimeout + 30*time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition", "X-Export-Rows"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	api.Routes(r, api.RouterConfig{
		Discover:      api.NewDiscoverHandler(engine, store, wsHub),
		Authenticator: authenticator,
		Health:        health.HTTPHandler(),
		Session:       websocket.HandleSession(wsHub, engine, cfg.Server.AllowedOrigins),
	})

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool, 1)
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server shutdown failed")
		}
		// Closes open Discover sessions
		stop()
		close(done)
	}()

	log.Info().Str("port", cfg.Server.Port).Msg("Server started")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Server failed to start")
	}

	<-done
	log.Info().Msg("Server stopped")
}
