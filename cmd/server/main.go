package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prateekshukla17/XenCRM-Backend/internal/broker/nats"
	"github.com/prateekshukla17/XenCRM-Backend/internal/config"
	"github.com/prateekshukla17/XenCRM-Backend/internal/events"
	"github.com/prateekshukla17/XenCRM-Backend/internal/logging"
	"github.com/prateekshukla17/XenCRM-Backend/internal/pipeline"
	"github.com/prateekshukla17/XenCRM-Backend/internal/security"
	"github.com/prateekshukla17/XenCRM-Backend/internal/server"
	"github.com/prateekshukla17/XenCRM-Backend/internal/store/postgres"
	"github.com/prateekshukla17/XenCRM-Backend/internal/vendorsim"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to the server configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration error", slog.String("code", "SYS_STARTUP"), slog.Any("error", err))
		os.Exit(1)
	}

	logging.Init(cfg.LogFile)

	if cfg.Admin.APIKey == "" {
		key, err := security.GenerateKey()
		if err != nil {
			slog.Error("generate admin API key", slog.String("code", "SYS_STARTUP"), slog.Any("error", err))
			os.Exit(1)
		}
		cfg.Admin.APIKey = key
		slog.Warn("no admin API key configured, generated one for this run",
			slog.String("code", "SYS_STARTUP"), slog.String("api_key", key))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN)
	if err != nil {
		slog.Error("database connection failed", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("database migration failed", slog.String("code", "DB_ERROR"), slog.Any("error", err))
		os.Exit(1)
	}

	comms := postgres.NewCommunicationStore(db)
	receipts := postgres.NewReceiptStore(db)
	counters := postgres.NewCounterStore(db)

	channel := nats.New(cfg.Broker.URL)
	vendor := vendorsim.New(cfg.Vendor)
	hub := events.NewHub()

	producer := pipeline.NewProducer(cfg.Producer, comms, vendor, channel)
	consumer := pipeline.NewConsumer(cfg.Consumer, comms, receipts, counters, channel, hub)
	coordinator := pipeline.NewCoordinator(channel, producer, consumer)

	if err := coordinator.Start(ctx); err != nil {
		slog.Error("pipeline start failed", slog.String("code", "SYS_STARTUP"), slog.Any("error", err))
		os.Exit(1)
	}

	admin := server.New(server.Config{
		Addr:       cfg.Admin.Addr,
		APIKey:     cfg.Admin.APIKey,
		StaleAfter: cfg.StaleAfter,
	}, coordinator, comms, counters, hub)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("admin API listening",
			slog.String("code", "SYS_STARTUP"), slog.String("addr", cfg.Admin.Addr))
		serveErr <- admin.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received", slog.String("code", "SYS_SHUTDOWN"))
	case err := <-serveErr:
		if err != nil {
			slog.Error("admin API failed", slog.String("code", "SYS_ERROR"), slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := admin.Shutdown(shutdownCtx); err != nil {
		slog.Error("admin API shutdown failed", slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
	}
	if err := coordinator.Stop(); err != nil {
		slog.Error("pipeline stop failed", slog.String("code", "SYS_SHUTDOWN"), slog.Any("error", err))
	}

	slog.Info("server stopped", slog.String("code", "SYS_SHUTDOWN"))
}
