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

	"github.com/joho/godotenv"
	"github.com/mstgnz/goesewa/infra/config"
	"github.com/mstgnz/goesewa/infra/logger"
	"github.com/mstgnz/goesewa/infra/opensearch"
	"github.com/mstgnz/goesewa/router"
	"github.com/mstgnz/goesewa/service"
)

const version = "1.0.0"

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Load Env Error: %v", err)
	}

	cfg, err := config.GetAppConfig()
	if err != nil {
		log.Fatalf("Config Error: %v", err)
	}

	storage, err := config.NewSQLiteStorage(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("SQLite Error: %v", err)
	}
	defer storage.Close()

	merchants := config.NewMerchantConfig(storage)
	if flows, err := merchants.LoadFromEnv(); err != nil {
		log.Printf("No merchant loaded from environment: %v", err)
	} else {
		log.Printf("Merchant %s loaded for %v", config.GetEnv(config.EnvProductCode, ""), flows)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := router.Dependencies{
		App:       cfg,
		Merchants: merchants,
		Storage:   storage,
		Version:   version,
	}
	opts := []service.Option{service.WithDefaultMerchant(config.GetEnv(config.EnvProductCode, ""))}

	var (
		sink     logger.EventSink
		osLogger *opensearch.Logger
	)
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			osLogger = opensearch.NewLogger(osClient)
			sink = osLogger
			deps.Logs = osLogger
			opts = append(opts, service.WithRecorder(osLogger))
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	logger.InitGlobalLogger(sink)
	deps.Logger = logger.GetGlobalLogger()
	opts = append(opts, service.WithLogger(deps.Logger))
	if osLogger != nil {
		go purgeLogs(ctx, osLogger, cfg.LogRetentionDays)
	}

	deps.Registry = service.NewRegistry(merchants, opts...)

	handler, stopRouter := router.New(deps)
	defer stopRouter()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           handler,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err.Error())
		}
	}()

	log.Println("API is running on", cfg.Port)

	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown Error: %v", err)
	}
}

// purgeLogs deletes exchange and system logs older than the retention window
// once at startup and then daily
func purgeLogs(ctx context.Context, l *opensearch.Logger, days int) {
	if days <= 0 {
		return
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		deleted, err := l.PurgeOlderThan(ctx, days)
		if err != nil && !errors.Is(err, opensearch.ErrLoggingDisabled) {
			logger.Error("log retention purge failed", err)
		} else if deleted > 0 {
			logger.Info(fmt.Sprintf("purged %d log documents older than %d days", deleted, days))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
