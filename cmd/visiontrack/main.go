package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"visiontrack/internal/alerts"
	"visiontrack/internal/api"
	"visiontrack/internal/config"
	"visiontrack/internal/engine"
	"visiontrack/internal/ingest"
	"visiontrack/internal/logging"
	"visiontrack/internal/model"
	"visiontrack/internal/notify"
	"visiontrack/internal/stats"
	"visiontrack/internal/storage"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML or JSON config file (defaults apply when empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("visiontrack", version)
		return
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "visiontrack:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	var manager *config.Manager
	if configPath != "" {
		m, err := config.NewManager(config.ResolvePath(configPath))
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		manager = m
	} else {
		manager = config.NewManagerFromConfig(config.DefaultConfig())
	}
	cfg := manager.Get()
	logger := logging.NewLogger(cfg.LogLevel)
	logger.Info("starting", "version", version, "mode", cfg.Mode, "config", manager.Path())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := storage.NewStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
		err := store.Init(initCtx)
		initCancel()
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		defer store.Close()
		logger.Info("storage enabled", "driver", cfg.Storage.Driver)
	}

	var notifiers []notify.Notifier
	var hub *notify.Hub
	if cfg.Notify.WebSocket {
		hub = notify.NewHub(logger)
		notifiers = append(notifiers, hub)
	}
	if cfg.Notify.Log {
		notifiers = append(notifiers, notify.NewLogNotifier(logger))
	}
	if store != nil {
		notifiers = append(notifiers, storage.NewNotifier(store, logger))
	}
	dispatcher := notify.NewDispatcher(cfg.Notify.ChannelBuffer, logger, notifiers...)

	agg := stats.NewAggregator()
	alertStore := alerts.NewStore(cfg.Alerts.StoreLimit)

	eng, err := engine.New(cfg, logger, dispatcher, store, agg, alertStore)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	frames := make(chan model.Frame, cfg.Ingest.ChannelBuffer)
	ingest.StartREST(ctx, manager, frames, logger)
	ingest.StartTCPStream(ctx, manager, frames, logger)
	ingest.StartKafka(ctx, manager, frames, logger)
	ingest.StartReplay(ctx, manager, frames, logger)

	api.Start(ctx, manager, alertStore, eng, store, hub, logger, version)

	if manager.Path() != "" {
		go manager.Watch(3*time.Second,
			func(next *config.Config) {
				logger.Info("config reloaded", "path", manager.Path())
				eng.UpdateConfig(next)
			},
			func(err error) {
				logger.Warn("config reload failed", "err", err)
			},
			ctx.Done(),
		)
	}

	eng.Run(ctx, frames)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	eng.Stop(stopCtx)
	if hub != nil {
		hub.CloseAll()
	}
	logger.Info("shutdown complete")
	return nil
}
