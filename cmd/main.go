package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"airalert-service/internal/api"
	"airalert-service/internal/config"
	"airalert-service/internal/contacts"
	"airalert-service/internal/db"
	"airalert-service/internal/dispatch"
	"airalert-service/internal/kafka"
	"airalert-service/internal/logging"
	"airalert-service/internal/pipeline"
	"airalert-service/internal/purpleair"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	dbConn, err := db.New(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	// Telemetry fetcher
	fetcher, err := purpleair.New(cfg.PurpleAir.BaseURL, cfg.PurpleAir.APIKey, cfg.Pipeline.Timezone)
	if err != nil {
		logger.Errorf("Failed to init telemetry client: %v", err)
		log.Fatalf("Telemetry client failed: %v", err)
	}

	// Dispatcher with contact lookup and message providers
	resolver := contacts.NewClient(cfg.Contacts.BaseURL, cfg.Contacts.Token)
	dispatcher := dispatch.New(dbConn, resolver, cfg, logger)

	// Pipeline with websocket event feed
	hub := api.NewHub()
	pipe := pipeline.New(dbConn, fetcher, dispatcher, hub, pipeline.Config{
		SpikeThreshold: cfg.Pipeline.SpikeThreshold,
		RadiusMeters:   cfg.Pipeline.RadiusMeters,
	}, logger)
	go pipe.Start(ctx, cfg.Pipeline.PollInterval)
	logger.Infof("Pipeline started: threshold=%.1f radius=%.0fm interval=%s",
		cfg.Pipeline.SpikeThreshold, cfg.Pipeline.RadiusMeters, cfg.Pipeline.PollInterval)

	// Alert-closure consumer
	consumer := kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, dbConn, logger)
	go consumer.Start(ctx)

	// Start API server
	handler := api.NewHandler(dbConn, pipe, logger)
	router := api.NewRouter(handler, hub, logger, cfg)
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Infof("Shutting down...")
	cancel()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Kafka close failed: %v", err)
	}
	logger.Infof("Service stopped")
}
