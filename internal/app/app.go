// Package app wires configuration, storage, and the HTTP API into runnable
// commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agenthub-dev/agenthub/internal/cache"
	"github.com/agenthub-dev/agenthub/internal/config"
	dbpkg "github.com/agenthub-dev/agenthub/internal/db"
	"github.com/agenthub-dev/agenthub/internal/http/api"
	"github.com/agenthub-dev/agenthub/internal/llmconfig"
	"github.com/agenthub-dev/agenthub/internal/security"
	"github.com/agenthub-dev/agenthub/internal/session"
	internalsettings "github.com/agenthub-dev/agenthub/internal/settings"
)

const shutdownTimeout = 10 * time.Second

// OpenDatabase opens the configured database and applies pending schema
// revisions.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	conn, errOpen := dbpkg.Open(cfg.Database.DSN)
	if errOpen != nil {
		return nil, errOpen
	}
	if errMigrate := dbpkg.Migrate(conn); errMigrate != nil {
		return nil, errMigrate
	}
	return conn, nil
}

// RunServer starts the HTTP API and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := OpenDatabase(cfg)
	if errOpen != nil {
		return errOpen
	}

	if errSnapshot := internalsettings.RefreshDBConfigSnapshot(ctx, conn); errSnapshot != nil {
		return fmt.Errorf("app: load settings snapshot: %w", errSnapshot)
	}

	encryptor, errEncryptor := security.NewEncryptor(cfg.EncryptionKey)
	if errEncryptor != nil {
		return fmt.Errorf("app: init encryptor: %w", errEncryptor)
	}

	sessionCache, errCache := cache.NewSessionCache(ctx, cfg.Redis)
	if errCache != nil {
		log.WithError(errCache).Warn("app: redis unavailable, sessions fall back to database only")
		sessionCache = nil
	}
	defer func() {
		if errClose := sessionCache.Close(); errClose != nil {
			log.WithError(errClose).Warn("app: close session cache")
		}
	}()

	sessions := session.NewStore(conn, sessionCache)
	llmStore := llmconfig.NewStore(conn, encryptor)

	session.NewSweeper(sessions).Start(ctx)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.RegisterAPIRoutes(engine, conn, cfg.JWT, sessions, llmStore)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("app: listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", errServe)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	log.Info("app: server stopped")
	return nil
}
