// Package app wires vaultcache's components together: configuration,
// logging, metrics, storage, the account cache, the auth manager, the
// upstream client, and the HTTP server, and owns the process lifecycle.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/duskforge/vaultcache/internal/accountcache"
	"github.com/duskforge/vaultcache/internal/authmanager"
	"github.com/duskforge/vaultcache/internal/authstore"
	"github.com/duskforge/vaultcache/internal/config"
	"github.com/duskforge/vaultcache/internal/handlers"
	"github.com/duskforge/vaultcache/internal/httpserver"
	"github.com/duskforge/vaultcache/internal/model"
	"github.com/duskforge/vaultcache/internal/telemetry"
	"github.com/duskforge/vaultcache/internal/upstream"
)

// Run builds every component from cfg and serves until ctx is
// cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting vaultcached", "listen", cfg.ListenAddr())

	storage := newStorage(cfg, logger)
	cache := accountcache.NewCache()
	client := upstream.NewClient(cfg.UpstreamBaseURL, cfg.AuthBaseURL)
	manager := authmanager.New(storage, cache, client, logger)

	var managerReady atomic.Bool
	metricsReg := telemetry.NewMetricsRegistry()

	srv := httpserver.NewServer(cfg, logger, metricsReg, managerReady.Load)
	h := handlers.New(cache, manager.ReadView(), client, logger, cfg.EnableSingleAccount)
	h.Mount(srv.APIRouter)

	managerDone := make(chan error, 1)
	managerCtx, cancelManager := context.WithCancel(ctx)
	defer cancelManager()
	go func() {
		managerDone <- manager.Run(managerCtx)
	}()
	managerReady.Store(true)

	if cfg.InitialCredentialFile != "" {
		if err := ingestInitialCredential(ctx, cfg.InitialCredentialFile, manager.ReadView(), logger); err != nil {
			logger.Error("ingesting initial credential file", "error", err)
		}
	}

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutting down http server", "error", err)
		}
		cancelManager()
		<-managerDone
		return nil
	case err := <-errCh:
		cancelManager()
		<-managerDone
		return err
	}
}

// newStorage chooses the durable backend when a storage directory is
// configured, and the volatile in-memory backend otherwise.
func newStorage(cfg *config.Config, logger *slog.Logger) authstore.Store {
	if cfg.StorageDir != "" {
		logger.Info("using durable auth storage", "dir", cfg.StorageDir)
		return authstore.NewDurable(cfg.StorageDir)
	}
	logger.Info("using in-memory auth storage (credentials will not survive a restart)")
	return authstore.NewMemory()
}

// ingestInitialCredential reads a single JSON credential from path and
// enqueues it on the manager's inbox via the same path PUT /auth/:id
// uses, so a fresh deployment can be seeded without an HTTP round trip.
func ingestInitialCredential(ctx context.Context, path string, view authmanager.ReadView, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading initial credential file: %w", err)
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return fmt.Errorf("decoding initial credential file: %w", err)
	}

	exists, err := view.Contains(cred.Sub)
	if err != nil {
		return fmt.Errorf("checking existing auth: %w", err)
	}
	if exists {
		logger.Info("initial credential already tracked, skipping", "account_id", cred.Sub)
		return nil
	}

	if err := view.AddAuth(ctx, cred); err != nil {
		return fmt.Errorf("enqueueing initial credential: %w", err)
	}
	logger.Info("initial credential enqueued", "account_id", cred.Sub)
	return nil
}
