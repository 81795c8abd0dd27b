package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"consentsync/internal/audit"
	"consentsync/internal/consentmanager"
	"consentsync/internal/fhir"
	"consentsync/internal/pipeline"
	"consentsync/internal/pipeline/adapters"
	"consentsync/internal/pipeline/handler"
	pipelinemetrics "consentsync/internal/pipeline/metrics"
	"consentsync/internal/platform/config"
	"consentsync/internal/platform/database"
	"consentsync/internal/platform/httpclient"
	"consentsync/internal/platform/httpserver"
	"consentsync/internal/platform/logger"
	"consentsync/internal/platform/metrics"
	"consentsync/internal/platform/redis"
	"consentsync/internal/secrets"
	"consentsync/internal/staging"
)

const (
	auditBufferSize    = 1024
	healthCheckTimeout = 5 * time.Second
)

// main wires dependencies, serves the router and shuts down on SIGINT or
// SIGTERM. SIGHUP reloads the tenant secrets file.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fhir-consent-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log, cfg.App.Name)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := newStore(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer closeStore()

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	var tokenCache fhir.TokenCache = fhir.NewMemoryTokenCache()
	if redisClient != nil {
		tokenCache = fhir.NewRedisTokenCache(redisClient.Client)
		log.Info("using redis token cache")
	}

	publisher, stopAudit, err := newPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer stopAudit()

	emptyPage, err := pipeline.ParseEmptyPagePolicy(cfg.Sync.EmptyPagePolicy)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	batch, err := pipeline.ParseBatchPolicy(cfg.Sync.BatchPolicy)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	hc := httpclient.New(cfg.HTTPClient, log)
	provider := secrets.NewFileProvider(cfg.Secrets.File)
	go reloadSecretsOnHUP(ctx, provider, log)

	tokens := fhir.NewTokenSource(hc, tokenCache, cfg.FHIR, log)
	fhirClient := fhir.NewClient(hc, provider, tokens, log)
	cm := consentmanager.New(hc, cfg.ConsentManager, log)

	svc := pipeline.New(store, adapters.NewFHIRAdapter(fhirClient), cm,
		staging.Namer{DBName: cfg.Sync.DBName, PartitionKey: cfg.Sync.PartitionKey},
		pipeline.Config{
			DefaultPageSize: cfg.Sync.DefaultPageSize,
			MaxPageSize:     cfg.Sync.MaxPageSize,
			EmptyPage:       emptyPage,
			Batch:           batch,
		},
		pipeline.WithAudit(publisher),
		pipeline.WithMetrics(pipelinemetrics.New()),
		pipeline.WithLogger(log),
	)

	health := handler.NewHealth(healthCheckTimeout,
		handler.Check{Name: "staging", Fn: store.Ping},
		handler.Check{Name: "consent-manager", Fn: cm.Health},
		handler.Check{Name: "redis", Fn: redisClient.Ping},
	)
	router := handler.NewRouter(cfg.Server, handler.New(svc, cfg.Sync, log), health, metrics.New(), log)
	srv := httpserver.New(cfg.Server, router)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", cfg.Server.Addr, "base_path", cfg.Server.BasePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// newStore uses Postgres when a database URL is configured and falls back to
// the in-memory store for local runs.
func newStore(ctx context.Context, cfg config.DatabaseConfig, log *slog.Logger) (staging.Store, func(), error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL not set, staging changes in memory")
		return staging.NewInMemory(), func() {}, nil
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return staging.NewPostgres(db), func() { _ = db.Close() }, nil
}

// newPublisher returns the Kafka publisher behind an async worker, or a no-op
// publisher when no brokers are configured.
func newPublisher(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (audit.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		return audit.Nop{}, func() {}, nil
	}
	k, err := audit.NewKafka(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := k.EnsureTopic(ctx, cfg.Partitions, cfg.Replication); err != nil {
		log.Warn("could not ensure audit topic", "topic", cfg.Topic, "error", err.Error())
	}

	worker := audit.NewWorker(k, auditBufferSize, log)
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = worker.Run(workerCtx)
	}()

	return worker, func() {
		cancel()
		wg.Wait()
		k.Close()
	}, nil
}

func reloadSecretsOnHUP(ctx context.Context, provider *secrets.FileProvider, log *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := provider.Reload(); err != nil {
				log.Error("secrets reload failed", "error", err.Error())
				continue
			}
			log.Info("secrets reloaded")
		}
	}
}
