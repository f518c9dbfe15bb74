package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"topicpush/internal/app"
	"topicpush/internal/config"
	"topicpush/internal/email"
	"topicpush/internal/reconcile"
	"topicpush/internal/report"
	"topicpush/internal/scheduler"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := app.NewLogger(cfg.LogLevel)
	log.Info("configuration resolved",
		"ses_region", cfg.Region,
		"ses_sender", cfg.Sender,
		"store", cfg.StoreDriver,
		"topics", strings.Join(cfg.Topics.Names(), ","),
	)
	if cfg.Region == "" || cfg.Sender == "" {
		log.Warn("SES region or sender missing, notifications will not be sent")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, lock, err := app.OpenStore(cfg, log)
	if err != nil {
		log.Error("open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	mailer, err := email.New(ctx, cfg.Region, cfg.Sender, cfg.Message, log)
	if err != nil {
		log.Error("create mailer", "error", err)
		os.Exit(1)
	}

	var rep scheduler.Reporter = report.Nop{}
	if cfg.ReportEnabled() {
		tg, err := report.NewTelegram(cfg.TelegramBotToken, cfg.ReportChatID, log)
		if err != nil {
			log.Error("create telegram reporter", "error", err)
			os.Exit(1)
		}
		rep = tg
	}

	driver := reconcile.New(store, mailer, cfg.Topics, log)
	driver.SetSendInterval(cfg.SendInterval)

	sched := scheduler.New(driver, lock, rep, log)

	if cfg.RunInterval == 0 {
		if err := sched.Tick(ctx); err != nil {
			os.Exit(1)
		}
		return
	}

	log.Info("starting scheduler", "interval", cfg.RunInterval)
	sched.SetTickInterval(cfg.RunInterval)
	sched.Run(ctx)
	log.Info("scheduler stopped")
}
