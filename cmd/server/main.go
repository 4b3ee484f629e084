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

	"github.com/Stewz00/go-auth-service/internal/config"
	"github.com/Stewz00/go-auth-service/internal/database"
	"github.com/Stewz00/go-auth-service/internal/handler"
	"github.com/Stewz00/go-auth-service/internal/logging"
	"github.com/Stewz00/go-auth-service/internal/metrics"
	"github.com/Stewz00/go-auth-service/internal/repository"
	"github.com/Stewz00/go-auth-service/internal/server"
	"github.com/Stewz00/go-auth-service/internal/service"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		port      string
		storage   string
		dbURL     string
		logLevel  string
		logFormat string
		cost      int
		noLimit   bool
	)

	cmd := &cobra.Command{
		Use:           "auth-server",
		Short:         "Account authentication service with lockout and password reset",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Load configuration
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("storage") {
				cfg.Storage = storage
			}
			if flags.Changed("database-url") {
				cfg.DbURL = dbURL
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			if flags.Changed("bcrypt-cost") {
				cfg.BcryptCost = cost
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return run(cmd.Context(), cfg, !noLimit)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8080", "HTTP listen port (PORT)")
	cmd.Flags().StringVar(&storage, "storage", config.StorageMemory, "storage backend: memory or postgres (STORAGE)")
	cmd.Flags().StringVar(&dbURL, "database-url", "", "PostgreSQL connection URL (DATABASE_URL)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error (LOG_LEVEL)")
	cmd.Flags().StringVar(&logFormat, "log-format", "json", "log format: json or text (LOG_FORMAT)")
	cmd.Flags().IntVar(&cost, "bcrypt-cost", service.DefaultBcryptCost, "bcrypt work factor (BCRYPT_COST)")
	cmd.Flags().BoolVar(&noLimit, "no-rate-limit", false, "disable per-IP rate limiting")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, rateLimit bool) error {
	logger, err := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	repos, closeRepos, err := openRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeRepos()

	registry := metrics.NewRegistry()
	authService, err := service.NewAuthService(repos, cfg.JwtSecret,
		service.WithBcryptCost(cfg.BcryptCost),
		service.WithLogger(logger),
		service.WithMetrics(metrics.New(registry)),
	)
	if err != nil {
		return err
	}

	router := server.NewRouter(server.RouterConfig{
		AuthHandler: handler.NewAuthHandler(authService, logger),
		Logger:      logger,
		Gatherer:    registry,
		RateLimit:   rateLimit,
	})

	// Create server with timeouts
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("server is shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server exited properly")
	return nil
}

func openRepositories(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Repositories, func(), error) {
	if cfg.Storage != config.StoragePostgres {
		return service.Repositories{
			Users:       repository.NewMemoryUserRepository(),
			Attempts:    repository.NewMemoryAttemptRepository(),
			ResetTokens: repository.NewMemoryResetTokenRepository(),
		}, func() {}, nil
	}

	// Initialize database
	db, err := database.New(ctx, cfg.DbURL)
	if err != nil {
		return service.Repositories{}, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return service.Repositories{}, nil, err
	}
	logger.Info("database ready")

	return service.Repositories{
		Users:       repository.NewUserRepository(db),
		Attempts:    repository.NewAttemptRepository(db),
		ResetTokens: repository.NewResetTokenRepository(db),
	}, db.Close, nil
}
