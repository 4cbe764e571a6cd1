// sweep_sessions: 만료된 벌크 세션을 일회성으로 expired 처리하는 운영 도구.
// 데몬의 주기적 sweep과 같은 질의를 쓰며, 장애 후 수동 복구용이다.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/service/bulk"
	"github.com/kapu/mkw-stats-bot-go/internal/service/database"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

func main() {
	logger := util.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	postgres, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		MaxConns: 1,
	}, logger)
	if err != nil {
		logger.Error("Postgres init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer postgres.Close()

	store := bulk.NewStore(postgres, nil, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	swept, err := store.SweepExpired(ctx)
	if err != nil {
		logger.Error("Sweep failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Sweep complete", slog.Int64("expired", swept))
}
