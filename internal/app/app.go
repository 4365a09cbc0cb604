// Package app wires the configuration, storage, clients, services,
// scheduler and HTTP server together and runs the process until a
// termination signal arrives.
package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/config"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/crypto"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/database"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/forwarder"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/handler"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/metrics"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/msgraph"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/oauth"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/repository"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/scheduler"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/server"
	"github.com/kimghw/GraphAPIQuery-rev3/internal/service"
)

// Run initializes and starts the application
func Run() error {
	logger := logrus.StandardLogger()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	logger.Info("Starting Graph mail gateway")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	cipher, err := crypto.NewTokenCipher(cfg.Encryption.Secret, cfg.Encryption.Salt)
	if err != nil {
		return fmt.Errorf("failed to initialize token cipher: %w", err)
	}

	accounts := repository.NewAccountRepository(db)
	tokens := repository.NewTokenRepository(db, cipher)
	mail := repository.NewMailRepository(db)
	deltaLinks := repository.NewDeltaLinkRepository(db)
	webhooks := repository.NewWebhookRepository(db)
	logs := repository.NewLogRepository(db)
	calls := repository.NewExternalAPIRepository(db)

	oauthClient := oauth.NewClient(cfg.Graph)
	graphClient := msgraph.NewClient(cfg.Graph)
	forwardClient := forwarder.NewClient(cfg.ExternalAPI)

	m := metrics.NewMetrics()

	authService := service.NewAuthService(accounts, tokens, logs, oauthClient, m, logger)
	mailService := service.NewMailService(
		authService,
		accounts,
		mail,
		deltaLinks,
		webhooks,
		logs,
		calls,
		graphClient,
		forwardClient,
		cfg.ExternalAPI.MaxRetries,
		m,
		logger,
	)

	sched := scheduler.NewScheduler(&cfg.Scheduler, authService, mailService, m, logger)

	h := handler.NewHandlers(authService, mailService, sched, db, logger)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	go func() {
		logger.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		logger.Errorf("Failed to stop scheduler: %v", err)
	}
	sched.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("HTTP server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
