package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kapu/mkw-stats-bot-go/internal/app"
	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/ocr"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		util.NewLogger().Error("Config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger, err := util.EnableFileLoggingWithLevel(util.LogConfig{
		Dir:        cfg.Logging.Dir,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	}, "bot.log", cfg.Logging.Level)
	if err != nil {
		util.NewLogger().Error("Logger init failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ocrFunc := ocr.NewHTTPFunc(cfg.OCR.Endpoint, cfg.OCR.SubmitBudget)

	runtime, cleanup, err := app.InitializeBotRuntime(ctx, cfg, ocrFunc, logger)
	if err != nil {
		logger.Error("Runtime init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	serverErr := runtime.Start(ctx)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-interrupt:
		logger.Info("Shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server failed", slog.Any("error", err))
		}
	case <-ctx.Done():
	}

	cancel()
	runtime.Shutdown()
}
