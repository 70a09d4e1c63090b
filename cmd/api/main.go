package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"epetcare/internal/adapters/auth/jwt"
	"epetcare/internal/adapters/storage/postgres"
	"epetcare/internal/platform/config"
	"epetcare/internal/platform/logger"
	"epetcare/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Error("config error", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	log.Info("config loaded", map[string]any{"config": cfg.String()})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = postgres.OpenWithRetry(ctx, cfg.Database.DSN, cfg.Database.ConnectRetries, log)
		if err != nil {
			log.Error("database unavailable", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()

		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			log.Error("migrations failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		if len(applied) > 0 {
			log.Info("migrations applied", map[string]any{"versions": applied})
		}
	} else {
		log.Warn("DB_DSN not set, using in-memory repositories", nil)
	}

	// sin JWT_SECRET (solo con DEV_AUTH) el servicio rechaza todo token
	jwtSvc := jwt.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	r := router.NewRouter(router.Options{
		AuthVerifier: jwtSvc,
		TokenIssuer:  jwtSvc,
		DevAuth:      cfg.Auth.DevAuth,
		DB:           db,
		BackupDir:    cfg.Sync.BackupDir,
		Logger:       log,
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{"addr": cfg.HTTP.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown error", map[string]any{"error": err.Error()})
		}
	}
}
