package service

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

	"github.com/gin-gonic/gin"
	"gitlab.com/dirk.krummacker/beetagged/internal/config"
	"gitlab.com/dirk.krummacker/beetagged/internal/facebook"
	"gitlab.com/dirk.krummacker/beetagged/internal/linkedin"
	"gitlab.com/dirk.krummacker/beetagged/internal/pipeline"
	"gitlab.com/dirk.krummacker/beetagged/internal/search"
	"gitlab.com/dirk.krummacker/beetagged/internal/store"
	"golang.org/x/sync/errgroup"
)

// Run opens the contact store, starts the HTTP server and blocks until a shutdown signal arrives
// or ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_driver", cfg.Store.Driver),
		slog.String("log_level", cfg.App.LogLevel.String()))

	contacts, err := store.Open(ctx, cfg.Store.Options())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer contacts.Close()

	vocab, err := cfg.Search.LoadVocabulary()
	if err != nil {
		return fmt.Errorf("load vocabulary: %w", err)
	}
	engine := search.NewEngine(vocab, cfg.Search.ResultCap)

	p := pipeline.New(contacts, engine,
		pipeline.WithLogger(logger),
		pipeline.WithProfileSource(facebook.NewClient(cfg.Facebook.Client(), logger)),
		pipeline.WithResolver(linkedin.NewResolver(cfg.Import.HeaderVariations)),
		pipeline.WithStoreTimeout(cfg.Store.Timeout),
		pipeline.WithMaxUploadBytes(cfg.Import.MaxUploadBytes),
		pipeline.WithConcurrency(cfg.Facebook.Concurrency),
	)

	if gin.Mode() == gin.DebugMode && os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           SetupHttpRouter(p, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Search.VocabularyFile != "" {
		g.Go(func() error {
			if err := search.WatchVocabulary(gCtx, engine, cfg.Search.VocabularyFile, logger); err != nil {
				logger.Warn("vocabulary watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
