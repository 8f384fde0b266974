// Package main wires together the syllabus analyzer service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/campuslib/syllabus-analyzer/internal/acquire"
	"github.com/campuslib/syllabus-analyzer/internal/api"
	"github.com/campuslib/syllabus-analyzer/internal/catalog"
	"github.com/campuslib/syllabus-analyzer/internal/clock/system"
	"github.com/campuslib/syllabus-analyzer/internal/config"
	"github.com/campuslib/syllabus-analyzer/internal/discovery"
	"github.com/campuslib/syllabus-analyzer/internal/dispatcher"
	"github.com/campuslib/syllabus-analyzer/internal/extract"
	"github.com/campuslib/syllabus-analyzer/internal/id/uuid"
	"github.com/campuslib/syllabus-analyzer/internal/logging"
	"github.com/campuslib/syllabus-analyzer/internal/orchestrator"
	"github.com/campuslib/syllabus-analyzer/internal/pipeline"
	"github.com/campuslib/syllabus-analyzer/internal/progress"
	"github.com/campuslib/syllabus-analyzer/internal/progress/sinks"
	queuememory "github.com/campuslib/syllabus-analyzer/internal/queue/memory"
	"github.com/campuslib/syllabus-analyzer/internal/storage/local"
	"github.com/campuslib/syllabus-analyzer/internal/storage/memory"
	"github.com/campuslib/syllabus-analyzer/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore := memory.NewJobStore()
	artifactStore, err := local.New(local.Config{BaseDir: cfg.Storage.ResultsDir})
	if err != nil {
		logger.Fatal("artifact store init failed", zap.Error(err))
	}
	queue := queuememory.NewQueue(cfg.Acquire.QueueDepth)
	clock := system.New()
	idGen := uuid.New()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	promSink, err := sinks.NewPrometheusSink(registry)
	if err != nil {
		logger.Fatal("metrics sink init failed", zap.Error(err))
	}
	hub := progress.NewHub(
		progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
	)

	discoverer := discovery.New(discovery.Config{
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}, logger.Named("discovery"))
	acquirer := acquire.New(acquire.Config{
		Workers:   cfg.Acquire.Workers,
		UserAgent: cfg.HTTP.UserAgent,
		Timeout:   cfg.RequestTimeout(),
	}, logger.Named("acquire"))
	extractor := extract.NewChain(
		extract.NewPDFTextSource(logger.Named("pdftext")),
		buildStrategies(cfg, logger),
		logger.Named("extract"),
	)
	checker := catalog.NewChecker(catalog.NewClient(catalog.ClientConfig{
		BaseURL: cfg.Catalog.BaseURL,
		APIKey:  cfg.Catalog.APIKey,
		Timeout: cfg.CatalogTimeout(),
	}, logger.Named("catalog")), logger.Named("catalog"))

	tracker := orchestrator.NewTracker()
	orch := orchestrator.New(
		orchestrator.Config{DownloadsDir: cfg.Storage.DownloadsDir},
		jobStore,
		artifactStore,
		queue,
		idGen,
		clock,
		tracker,
		logger.Named("orchestrator"),
	)

	workerCfg := worker.Config{
		DownloadsDir:     cfg.Storage.DownloadsDir,
		PoliSciTargetURL: cfg.Category.PoliSciTargetURL,
		PoliSciPrefix:    cfg.Category.PoliSciPrefix,
		MaxDownloads:     cfg.Acquire.MaxDownloads,
	}
	var workers []*worker.Worker
	for i := 0; i < cfg.Acquire.Workers; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			artifactStore,
			discoverer,
			acquirer,
			extractor,
			checker,
			tracker,
			hub,
			clock,
			workerCfg,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	apiServer := api.NewServer(jobStore, artifactStore, orch, registry, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("progress hub close error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildStrategies assembles the extraction fallback chain. The model
// strategy is skipped when the provider cannot be configured so the
// service still runs with heuristic extraction only.
func buildStrategies(cfg config.Config, logger *zap.Logger) []pipeline.MetadataStrategy {
	var strategies []pipeline.MetadataStrategy
	llm, err := extract.NewLLMStrategy(extract.LLMConfig{
		Provider:  cfg.LLM.Provider,
		Model:     cfg.LLM.Model,
		APIKey:    cfg.LLM.APIKey,
		ServerURL: cfg.LLM.ServerURL,
	})
	if err != nil {
		logger.Warn("llm strategy unavailable, using heuristics only", zap.Error(err))
	} else {
		strategies = append(strategies, llm)
	}
	return append(strategies, extract.NewHeuristicStrategy(), extract.NewSentinelStrategy())
}
