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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubhsaxena/furniture-search/internal/api"
	"github.com/shubhsaxena/furniture-search/internal/cache"
	"github.com/shubhsaxena/furniture-search/internal/catalog"
	"github.com/shubhsaxena/furniture-search/internal/clickhouse"
	"github.com/shubhsaxena/furniture-search/internal/config"
	"github.com/shubhsaxena/furniture-search/internal/elasticsearch"
	"github.com/shubhsaxena/furniture-search/internal/firestore"
	"github.com/shubhsaxena/furniture-search/internal/indexing"
	"github.com/shubhsaxena/furniture-search/internal/kafka"
	"github.com/shubhsaxena/furniture-search/internal/observability"
	"github.com/shubhsaxena/furniture-search/internal/orchestrator"
	"github.com/shubhsaxena/furniture-search/internal/vocabulary"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to optional .env file")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	if err := config.LoadEnv(envPath); err != nil {
		return fmt.Errorf("loading env: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting furniture search service",
		zap.String("service", cfg.Observability.ServiceName),
	)

	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	vocab, err := vocabulary.Load(cfg.Vocabulary.Path)
	if err != nil {
		return fmt.Errorf("loading vocabulary: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthHandler := api.NewHealthHandler(logger)

	// Catalog: Elasticsearch is the primary candidate source. Firestore,
	// when configured, backs it up and resolves category names.
	esClient, err := elasticsearch.NewClient(cfg.Elasticsearch, cfg.Search, logger)
	if err != nil {
		return fmt.Errorf("initializing elasticsearch: %w", err)
	}
	defer esClient.Close()
	if err := esClient.EnsureIndex(ctx); err != nil {
		logger.Warn("ensuring products index failed", zap.Error(err))
	}
	healthHandler.RegisterES(esClient)

	var (
		source   catalog.Source = esClient
		resolver catalog.CategoryResolver
		fsClient *firestore.Client
	)
	if cfg.Firestore.ProjectID != "" {
		fsClient, err = firestore.NewClient(ctx, cfg.Firestore, logger)
		if err != nil {
			logger.Warn("firestore initialization failed, category names and catalog failover unavailable", zap.Error(err))
		} else {
			defer fsClient.Close()
			source = catalog.NewFailoverSource(esClient, fsClient, logger)
			resolver = fsClient
			healthHandler.Register("firestore", fsClient)
			logger.Info("firestore client initialized")
		}
	}

	executor := catalog.NewExecutor(source, resolver, cfg.Search.MaxCandidates, logger)

	// Optional dependencies stay nil interfaces when unavailable; search
	// fails open without them.
	var (
		searchCache orchestrator.Cache
		invalidator indexing.CacheInvalidator
	)
	redisCache, err := cache.NewRedisCache(cfg.Redis, logger)
	if err != nil {
		logger.Warn("redis initialization failed, caching disabled", zap.Error(err))
	} else {
		defer redisCache.Close()
		searchCache = redisCache
		invalidator = redisCache
		healthHandler.Register("redis", redisCache)
	}

	var (
		events    orchestrator.EventStore
		analytics observability.SlowSearchWriter
		changelog indexing.ChangelogWriter
	)
	chClient, err := clickhouse.NewClient(cfg.ClickHouse, logger)
	if err != nil {
		logger.Warn("clickhouse initialization failed, analytics and trending unavailable", zap.Error(err))
	} else {
		defer chClient.Close()
		if err := chClient.EnsureTables(ctx); err != nil {
			logger.Warn("clickhouse table creation failed", zap.Error(err))
		}
		events = chClient
		analytics = chClient
		changelog = chClient
		healthHandler.Register("clickhouse", chClient)
	}

	slowQueryDetector := observability.NewSlowQueryDetector(
		cfg.Search.SlowQuery.WarningThreshold,
		cfg.Search.SlowQuery.CriticalThreshold,
		logger,
		analytics,
	)

	orch := orchestrator.New(executor, searchCache, events, slowQueryDetector, vocab, cfg.Search, logger)

	bg, bgCtx := errgroup.WithContext(ctx)

	if cfg.Vocabulary.Watch && cfg.Vocabulary.Path != "" {
		bg.Go(func() error {
			err := vocabulary.Watch(bgCtx, cfg.Vocabulary.Path, logger, onVocabularyReload(orch, invalidator, logger))
			if err != nil {
				logger.Warn("vocabulary watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	// Indexing pipeline: Firestore changes are bridged to Kafka and the
	// consumer applies them to the products index.
	if len(cfg.Kafka.Brokers) > 0 {
		processor := indexing.NewStreamProcessor(
			esClient, changelog, invalidator, cfg.Elasticsearch, cfg.Firestore.ProductsCollection, logger,
		)
		defer func() {
			if err := processor.Stop(); err != nil {
				logger.Error("indexing processor final flush failed", zap.Error(err))
			}
		}()

		consumer := kafka.NewConsumer(cfg.Kafka, processor.HandleEvent, logger)
		if err := consumer.Start(bgCtx); err != nil {
			logger.Warn("kafka consumer start failed, indexing pipeline unavailable", zap.Error(err))
		} else {
			defer consumer.Stop()
			healthHandler.Register("kafka", consumer)
		}

		if fsClient != nil {
			producer := kafka.NewProducer(cfg.Kafka, logger)
			defer producer.Close()

			for _, collection := range []string{cfg.Firestore.ProductsCollection, cfg.Firestore.CategoriesCollection} {
				listener := fsClient.NewChangeListener(collection, producer.PublishChangeEvent)
				bg.Go(func() error {
					if err := listener.Listen(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
						logger.Warn("firestore change listener stopped", zap.Error(err))
					}
					return nil
				})
			}
		}
	}

	handler := api.NewHandler(orch, logger)
	router := api.NewRouter(handler, healthHandler, cfg.Server.MaxConcurrent, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancel()
	if err := bg.Wait(); err != nil {
		logger.Error("background worker error", zap.Error(err))
	}

	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
