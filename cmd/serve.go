package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpress/chatbot/internal/api"
	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/config"
	"github.com/mcpress/chatbot/internal/dedup"
	"github.com/mcpress/chatbot/internal/reconcile"
	"github.com/mcpress/chatbot/internal/search"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // CSV reconciliation of a full export takes a while
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting HTTP API server", "version", Version)

	pool, closePool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePool()

	authors, err := author.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating author store: %w", err)
	}
	cat, err := catalog.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating catalog store: %w", err)
	}
	engine := dedup.NewEngine(pool, logger)
	reconciler := reconcile.New(cat, authors, logger)

	// Search is optional at serve time: without an API key the catalog
	// and reconciliation endpoints still work.
	var searcher api.Searcher
	if embedder, embErr := newEmbedder(ctx, cfg); embErr != nil {
		logger.Warn("semantic search disabled", "error", embErr)
	} else {
		store, storeErr := search.NewStore(pool, embedder, logger)
		if storeErr != nil {
			return fmt.Errorf("creating search store: %w", storeErr)
		}
		searcher = store
	}

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Authors:     authors,
		Catalog:     cat,
		Dedup:       engine,
		Reconciler:  reconciler,
		Searcher:    searcher,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"api", "/api/*",
		"health", "/api/health, /api/ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}
