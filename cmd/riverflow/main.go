package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/apikey"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/mail"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/internal/server"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/pkg/config"
	"github.com/CMC-Global-Team/RiverFlow-SMTP-Server/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if level := logging.ParseLevel(cfg.Log.Level); level != logging.LevelInfo {
		logger = logging.New(level)
		slog.SetDefault(logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	mailer := mail.New(cfg.SMTP, logger)
	verifyCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	if err := mailer.Verify(verifyCtx); err != nil {
		logger.Warn("SMTP connection could not be verified; email sending may fail", slog.Any("error", err))
	} else {
		logger.Info("SMTP server is ready to send emails", slog.String("host", cfg.SMTP.Host))
	}
	cancel()

	store, err := apikey.Open(cfg.Keys.File, logger)
	if err != nil {
		logger.Error("Failed to open API key store", slog.Any("error", err))
		os.Exit(1)
	}

	app := server.NewApp(logger, ctx, cfg, mailer, store)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
