package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"github.com/stanstork/chatpush/internal/config"
	"github.com/stanstork/chatpush/internal/credential"
	"github.com/stanstork/chatpush/internal/dedup"
	"github.com/stanstork/chatpush/internal/handlers"
	"github.com/stanstork/chatpush/internal/migration"
	"github.com/stanstork/chatpush/internal/notification"
	"github.com/stanstork/chatpush/internal/repository"
	"github.com/stanstork/chatpush/internal/routes"

	_ "github.com/lib/pq" // PostgreSQL driver
)

const tokenRefreshMargin = time.Minute

type application struct {
	config *config.Config
	db     *sql.DB
	logger zerolog.Logger
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	// Load configuration.
	cfg := config.Load()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	} else if err != nil {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("Unknown log level, using info")
	}

	app := &application{config: cfg, logger: logger}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := app.initRepository()
	if app.db != nil {
		defer app.db.Close()
	}

	tokens := app.initTokenSource()

	guard, closeGuard := app.initGuard(ctx)
	defer closeGuard()

	sender := notification.NewFirebaseNotifier(cfg.Firebase.Endpoint, cfg.Firebase.ProjectID, logger)

	dispatcher := notification.NewDispatcher(repo, tokens, sender, guard, logger, notification.DispatcherOptions{
		MaxConcurrency: cfg.Dispatch.MaxConcurrency,
		SendTimeout:    cfg.Dispatch.SendTimeout,
	})

	// Initialize the HTTP router and middleware.
	webhookHandler := handlers.NewWebhookHandler(dispatcher, logger)
	router := routes.NewRouter(webhookHandler, cfg.Webhook.SecretHash, logger)
	handler := h.RecoveryHandler(h.PrintRecoveryStack(true))(h.ProxyHeaders(router))

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(handler, cancel)

	logger.Info().Msg("Application terminated.")
}

// initRepository opens the configured chat store.
func (app *application) initRepository() repository.ChatRepository {
	cfg := app.config
	if cfg.Store.Driver == config.StoreDriverREST {
		app.logger.Info().Str("url", cfg.Store.RESTURL).Msg("Using REST chat store")
		return repository.NewRESTChatRepository(cfg.Store.RESTURL, cfg.Store.ServiceRoleKey, cfg.Store.Timeout)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		app.logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	if err := db.Ping(); err != nil {
		app.logger.Fatal().Err(err).Msg("Failed to ping database")
	}
	app.db = db

	if cfg.Migrate {
		if err := migration.RunMigrations(db, app.logger); err != nil {
			app.logger.Fatal().Err(err).Msg("Failed to run migrations")
		}
	}
	return repository.NewChatRepository(db)
}

// initTokenSource builds the OAuth2 token source for the messaging API.
func (app *application) initTokenSource() credential.Source {
	account, err := credential.ServiceAccountFromConfig(app.config.Firebase)
	if err != nil {
		app.logger.Fatal().Err(err).Msg("Failed to load Firebase service account")
	}
	// The project id may only be known from the service account file.
	app.config.Firebase.ProjectID = account.ProjectID

	var source credential.Source = credential.NewProvider(account, app.config.Firebase.TokenURL, app.logger)
	if app.config.Firebase.CacheToken {
		source = credential.NewCachingSource(source, tokenRefreshMargin)
	}
	return source
}

// initGuard picks the shared Redis guard when configured, else the in-process one.
func (app *application) initGuard(ctx context.Context) (dedup.Guard, func()) {
	cfg := app.config.Dedup
	if cfg.RedisURL != "" {
		guard, err := dedup.NewRedisGuard(ctx, cfg.RedisURL, cfg.Window, app.logger)
		if err != nil {
			app.logger.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		return guard, func() {
			if err := guard.Close(); err != nil {
				app.logger.Error().Err(err).Msg("Redis close error")
			}
		}
	}

	guard := dedup.NewMemoryGuard(cfg.Window, nil, app.logger)
	go guard.Run(ctx)
	return guard, func() {}
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, stopBackground context.CancelFunc) {
	logger := app.logger
	server := &http.Server{
		Addr:              ":" + app.config.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	stopBackground()
}
