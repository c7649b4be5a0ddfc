package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"demand-pipeline/internal/config"
	"demand-pipeline/internal/messaging"
	"demand-pipeline/internal/models"
	"demand-pipeline/internal/repository"
	"demand-pipeline/internal/services"
	"demand-pipeline/pkg/database"
	"demand-pipeline/pkg/logging"
	"demand-pipeline/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("demand-features", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info(ctx, "[STARTUP] Starting demand feature service", logging.Fields{
		"version":         "1.0.0",
		"mode":            cfg.Pipeline.Mode,
		"brokers":         cfg.Kafka.Brokers,
		"input_topic":     cfg.Kafka.InputTopic,
		"output_topic":    cfg.Kafka.OutputTopic,
		"max_window_size": cfg.Pipeline.MaxWindowSize,
	})

	metricsCollector := metrics.NewCollector("demand_features")

	// Feature store
	db, err := database.NewPostgresDB(&database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	}, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	featureRepo := repository.NewFeatureRepository(db, logger, metricsCollector)

	storeSink := services.NewFeatureStoreSink(
		featureRepo,
		cfg.Pipeline.SinkBatchSize,
		cfg.Pipeline.SinkFlushInterval,
		logger,
		metricsCollector,
	)
	storeSink.Start(ctx)

	// Kafka transport
	producer := messaging.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OutputTopic, logger, metricsCollector)
	defer producer.Close()

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.InputTopic, cfg.Kafka.ConsumerGroup, logger, metricsCollector)

	// Feature engine
	var monitor *services.LivenessMonitor
	if cfg.Pipeline.Mode == config.ModeHistorical {
		monitor = services.NewLivenessMonitor(cfg.Pipeline.IdleTimeout, cfg.Pipeline.PollInterval, logger)
	}

	pipeline := services.NewFeaturePipeline(
		services.NewTimeFeatureEncoder(services.NewUSFederalHolidays()),
		services.NewWindowStore(cfg.Pipeline.MaxWindowSize),
		services.NewRollingFeatureCalculator(cfg.Pipeline.DefaultDemand, logger),
		monitor,
		logger,
		metricsCollector,
		producer,
		storeSink,
	)

	// Observability endpoints
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","timestamp":%q}`, time.Now().UTC().Format(time.RFC3339))
	}).Methods("GET")

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] Observability endpoints listening", logging.Fields{
			"address": httpServer.Addr,
		})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	if monitor != nil {
		go monitor.Run(ctx)
	}

	// Consume until the context is cancelled or the liveness monitor
	// requests shutdown. Validation failures are logged inside the
	// pipeline and skipped so one malformed record cannot stall the
	// stream.
	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- consumer.Run(ctx, func(ctx context.Context, key, value []byte) error {
			_, err := pipeline.ProcessRaw(ctx, value)
			if err != nil && !models.IsValidationError(err) {
				return err
			}
			return nil
		})
	}()

	var monitorDone <-chan struct{}
	if monitor != nil {
		monitorDone = monitor.Done()
	}

	consumeStopped := false
	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "[SHUTDOWN] Received termination signal", logging.Fields{})
	case <-monitorDone:
		logger.Info(ctx, "[SHUTDOWN] Historical replay drained, shutting down", logging.Fields{})
	case err := <-consumeErr:
		consumeStopped = true
		if err != nil {
			logger.Error(ctx, "[CONSUMER_ERROR] Consumer stopped", logging.Fields{}, err)
		}
	}

	// Graceful drain: closing the reader unblocks the consume loop after
	// the in-flight record finishes the full enrichment path.
	if err := consumer.Close(); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Failed to close consumer", logging.Fields{}, err)
	}
	if !consumeStopped {
		<-consumeErr
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := storeSink.Close(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "[SHUTDOWN_ERROR] Failed to flush feature store sink", logging.Fields{}, err)
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(shutdownCtx, "[SHUTDOWN_COMPLETE] Demand feature service stopped", logging.Fields{})
}
