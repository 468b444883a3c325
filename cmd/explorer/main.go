// Command explorer serves the tissue protein interaction explorer: it loads a
// tissue dataset into Memgraph, computes betweenness centrality, and serves
// the resulting network to the visualization front-end.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/config"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/dataset"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphquery"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/graphstore"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/httpapi"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/observability"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/pipeline"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Explorer stopped", zap.Error(err))
	}
	log.Println("Server stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 1. Connect to the store ---
	executor, err := graphstore.NewExecutor(cfg.Store.URI, cfg.Store.Username, cfg.Store.Password, cfg.Store.Database, cfg.Store.QueryTimeout)
	if err != nil {
		return fmt.Errorf("create store driver: %w", err)
	}
	defer func() {
		if err := executor.Close(context.Background()); err != nil {
			logger.Warn("Closing store driver failed", zap.Error(err))
		}
	}()

	if err := graphstore.WaitUntilAvailable(ctx, executor, cfg.Store.RetryInterval, logger); err != nil {
		return fmt.Errorf("wait for store: %w", err)
	}

	metrics := observability.NewCollector("explorer")
	breakerCfg := graphstore.DefaultBreakerConfig("graph-store")
	breakerCfg.FailureThreshold = cfg.Breaker.FailureRatio
	breakerCfg.Timeout = cfg.Breaker.OpenTimeout
	runner := graphstore.NewBreakerRunner(graphstore.NewInstrumentedRunner(executor, metrics), breakerCfg, logger)

	// --- 2. Build the pipeline and the query layer ---
	source, err := dataset.NewSource(ctx, cfg.DatasetSource())
	if err != nil {
		return fmt.Errorf("create dataset source: %w", err)
	}

	gate := &pipeline.Gate{}
	loader := pipeline.NewLoader(runner, source, pipeline.LoaderConfig{
		BatchSize:   cfg.Pipeline.BatchSize,
		CallTimeout: cfg.Pipeline.Timeout,
	}, logger, metrics)
	centrality := pipeline.NewCentralityInvoker(runner, pipeline.CentralityConfig{
		Directed:    cfg.Pipeline.CentralityDirected,
		Normalized:  cfg.Pipeline.CentralityNormalized,
		CallTimeout: cfg.Pipeline.Timeout,
	}, logger)
	orchestrator := pipeline.NewOrchestrator(loader, centrality, gate, cfg.Pipeline.Timeout, logger, metrics)

	assembler := graphquery.NewAssembler(runner, logger, metrics)
	resolver, err := graphquery.NewResolver(runner, logger)
	if err != nil {
		return fmt.Errorf("create resolver: %w", err)
	}

	// --- 3. Initial load ---
	if cfg.InitialTissue != "" {
		if _, err := orchestrator.Reload(ctx, cfg.InitialTissue); err != nil {
			logger.Error("Initial load failed", zap.String("tissue", cfg.InitialTissue), zap.Error(err))
		}
	}

	// --- 4. Serve ---
	router := httpapi.NewRouter(orchestrator, assembler, resolver, gate, executor, metrics, logger, httpapi.Options{
		TemplateDir:    cfg.TemplateFolder,
		StaticDir:      cfg.StaticFolder,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	srv := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router.Setup(),
		ReadTimeout: 15 * time.Second,
		// A reload answers only once the whole pipeline is done.
		WriteTimeout: cfg.Pipeline.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server",
			zap.String("address", srv.Addr),
			zap.Bool("debug", cfg.Debug),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	return nil
}
