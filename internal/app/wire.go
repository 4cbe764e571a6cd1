//go:build wireinject

package app

import (
	"context"
	"log/slog"

	"github.com/google/wire"

	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/ocr"
)

//go:generate go run github.com/google/wire/cmd/wire@v0.7.0

// InitializeBotRuntime - Wire가 의존성 그래프를 분석하여 생성 코드 생성
// wire gen 명령으로 wire_gen.go 파일이 자동 생성됨
func InitializeBotRuntime(
	ctx context.Context,
	cfg *config.Config,
	ocrFunc ocr.Func,
	logger *slog.Logger,
) (*BotRuntime, func(), error) {
	wire.Build(RuntimeSet)
	return nil, nil, nil
}
