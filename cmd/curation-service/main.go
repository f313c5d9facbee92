package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/curator/pkg/common/config"
	"github.com/synaptica-ai/curator/pkg/common/database"
	"github.com/synaptica-ai/curator/pkg/common/kafka"
	"github.com/synaptica-ai/curator/pkg/common/logger"
	"github.com/synaptica-ai/curator/pkg/common/middleware"
	"github.com/synaptica-ai/curator/pkg/common/models"
	"github.com/synaptica-ai/curator/pkg/ingestion"
	"github.com/synaptica-ai/curator/pkg/normalizer"
	"github.com/synaptica-ai/curator/pkg/observability/metrics"
	"github.com/synaptica-ai/curator/pkg/pipeline"
	"github.com/synaptica-ai/curator/pkg/storage"
)

const ledgerRetention = 30 * 24 * time.Hour

func main() {
	logger.Init()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s3Store, err := storage.NewS3Store(ctx, cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to create s3 client")
	}

	dests, err := pipeline.DestinationsFromConfig(ctx, cfg, "s3", s3Store)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure output destinations")
	}

	filter, err := pipeline.NewFilterFromConfig(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to configure de-identification")
	}

	opts := []pipeline.RunnerOption{pipeline.WithTriggerScope(cfg.Bucket, cfg.RawPrefix)}

	var repo *ingestion.Repository
	if cfg.LedgerEnabled {
		db, err := database.GetPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Fatal("failed to connect to postgres")
		}
		defer database.ClosePostgres()

		repo = ingestion.NewRepository(db)
		if err := repo.AutoMigrate(); err != nil {
			logger.Log.WithError(err).Fatal("failed to migrate ledger tables")
		}
		opts = append(opts, pipeline.WithLedger(ingestion.NewLedger(repo)))
	}

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaResultTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaResultTopic)
		defer producer.Close()
		opts = append(opts, pipeline.WithPublisher(producer))
	}

	runner := pipeline.NewRunner(
		s3Store,
		filter,
		normalizer.NewBuilder(normalizer.DefaultColumns()),
		storage.NewWriter(dests...),
		pipeline.LayoutFromConfig(cfg),
		opts...,
	)
	handler := pipeline.NewHTTPHandler(runner, cfg.MaxRequestBody)

	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTriggerTopic != "" {
		consumer := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaTriggerTopic, cfg.KafkaGroupID)
		defer consumer.Close()

		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, value []byte) error {
				var event models.TriggerEvent
				if err := json.Unmarshal(value, &event); err != nil {
					logger.Log.WithError(err).Warn("discarding malformed trigger payload")
					return nil
				}
				handler.Process(ctx, event)
				return nil
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.WithError(err).Error("trigger consumer stopped")
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods(http.MethodGet)

	router.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.WritePrometheus(w)
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	handler.Register(api)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host":   cfg.ServerHost,
			"port":   cfg.ServerPort,
			"bucket": cfg.Bucket,
		}).Info("Curation Service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("failed to start server")
		}
	}()

	if repo != nil {
		go func() {
			ticker := time.NewTicker(12 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := repo.CleanupExpired(context.Background(), ledgerRetention); err != nil {
						logger.Log.WithError(err).Warn("ledger cleanup failed")
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Curation Service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Error("server forced to shutdown")
	}

	logger.Log.Info("Curation Service stopped")
}
