package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/bot"
	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/mq"
	"github.com/kapu/mkw-stats-bot-go/internal/ocr"
	"github.com/kapu/mkw-stats-bot-go/internal/server"
	"github.com/kapu/mkw-stats-bot-go/internal/service/bulk"
)

// BotRuntime: cmd/bot 프로세스의 실행 구성요소 묶음.
// 봇 워커, 이벤트 소비자, 리뷰 API 서버, 백그라운드 루프들을 함께 기동한다.
type BotRuntime struct {
	Config   *config.Config
	Bot      *bot.Bot
	Consumer *mq.Consumer
	Server   *server.Server
	Engine   *ocr.Engine
	Monitor  *ocr.Monitor
	Sweeper  *bulk.Sweeper
	Logger   *slog.Logger
}

// NewBotRuntime: 런타임 구성요소를 묶는다. (Wire 프로바이더)
func NewBotRuntime(
	cfg *config.Config,
	b *bot.Bot,
	consumer *mq.Consumer,
	srv *server.Server,
	engine *ocr.Engine,
	monitor *ocr.Monitor,
	sweeper *bulk.Sweeper,
	logger *slog.Logger,
) *BotRuntime {
	return &BotRuntime{
		Config:   cfg,
		Bot:      b,
		Consumer: consumer,
		Server:   srv,
		Engine:   engine,
		Monitor:  monitor,
		Sweeper:  sweeper,
		Logger:   logger,
	}
}

// Start: 모든 백그라운드 구성요소를 기동한다. HTTP 서버 에러는 채널로 전달된다.
func (r *BotRuntime) Start(ctx context.Context) <-chan error {
	r.Engine.Start()
	r.Monitor.Start()
	r.Sweeper.Start(ctx)
	r.Consumer.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Server.Start()
	}()

	r.Logger.Info("Runtime started", slog.String("version", r.Config.Version))
	return errCh
}

// Shutdown: 구성요소들을 역순으로 정리한다.
func (r *BotRuntime) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := r.Server.Shutdown(shutdownCtx); err != nil {
		r.Logger.Warn("HTTP shutdown failed", slog.Any("error", err))
	}
	r.Consumer.Stop()
	r.Sweeper.Stop()
	r.Monitor.Stop()
	r.Engine.Stop()
	r.Logger.Info("Runtime stopped")
}
