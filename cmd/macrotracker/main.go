package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"MacroTracker/internal/config"
	"MacroTracker/internal/logger"
	"MacroTracker/internal/metrics"
	"MacroTracker/internal/notifier"
	"MacroTracker/internal/recorder"
	"MacroTracker/internal/tracker"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Env); err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Get().Named("main")

	if err := cfg.Validate(); err != nil {
		log.Fatalw("config validation", "error", err)
	}
	log.Infow("MacroTracker starting", "user", cfg.UserID, "tick", cfg.Schedule.TickSpec)

	// Init recorder
	var rec recorder.Recorder
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
	if err != nil {
		log.Warnw("init sqlite recorder failed, using in-memory store", "path", cfg.Database.SQLitePath, "error", err)
		rec = recorder.NewMemoryRecorder()
	} else {
		rec = sr
	}
	defer rec.Close()

	// Init notifier
	var n notifier.Notifier = notifier.NewLogNotifier()
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		n = notifier.RetryingNotifier{TelegramNotifier: tn, MaxRetries: cfg.Telegram.MaxRetries}
	} else {
		log.Infow("telegram disabled, notifications go to the log")
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Errorw("metrics server", "error", err)
			}
		}()
	}

	tr := tracker.New(rec, n, tracker.Options{
		UserID:           cfg.UserID,
		Sessions:         cfg.Sessions,
		TickSpec:         cfg.Schedule.TickSpec,
		AlertLeadMinutes: cfg.Schedule.AlertLeadMinutes,
		AlertOnEnd:       cfg.Schedule.AlertOnEnd,
		WriteTimeout:     cfg.Journal.WriteTimeout,
		ExportDir:        cfg.Export.Dir,
	})
	if err := tr.Start(ctx); err != nil {
		log.Fatalw("start tracker", "error", err)
	}

	if tn != nil {
		go tn.StartPolling(ctx, tr.HandleCommand)
		log.Infow("telegram polling started")
	}

	log.Infow("MacroTracker is running. Press Ctrl+C to stop.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Infow("shutdown signal received, stopping...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := tr.Stop(stopCtx); err != nil {
		log.Warnw("pending writes abandoned", "error", err)
	}
	cancel()
	log.Infow("MacroTracker stopped")
}
