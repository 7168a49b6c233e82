package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/atmolab/atmocast/internal/api"
	"github.com/atmolab/atmocast/internal/config"
	"github.com/atmolab/atmocast/internal/ingest"
	"github.com/atmolab/atmocast/internal/partition"
	s3store "github.com/atmolab/atmocast/internal/storage/s3"
)

func main() {
	cfgFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.WithField("environment", cfg.Environment).Info("Starting atmocast server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	store, err := s3store.NewStore(&s3store.Config{
		Region:         cfg.Store.Region,
		Bucket:         cfg.Store.Bucket,
		Prefix:         cfg.Store.Prefix,
		Endpoint:       cfg.Store.Endpoint,
		ForcePathStyle: cfg.Store.ForcePathStyle,
		MaxRetries:     cfg.Store.MaxRetries,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create object store")
	}
	if err := store.Connect(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to connect to object store")
	}
	defer store.Close()

	// Ingestion consumer, enabled when a queue is configured.
	if cfg.Queue.URL != "" {
		appender := partition.NewAppender(store, logger)
		consumer, err := ingest.NewConsumer(&ingest.Config{
			Region:      cfg.Queue.Region,
			QueueURL:    cfg.Queue.URL,
			MaxMessages: cfg.Queue.MaxMessages,
			WaitTime:    cfg.Queue.WaitTime,
		}, appender, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create ingestion consumer")
		}
		go func() {
			if err := consumer.Run(ctx); err != nil && err != context.Canceled {
				logger.WithError(err).Error("Ingestion consumer exited")
			}
		}()
	}

	router := mux.NewRouter()
	router.Use(api.RequestID, api.CORS, api.Logging(logger))
	api.NewHandler(store, logger).Register(router)

	// Metrics listener
	go func() {
		metricsAddr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.WithField("address", metricsAddr).Info("Starting metrics server")

		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("address", serverAddr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}
	logger.Info("Server stopped")
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
