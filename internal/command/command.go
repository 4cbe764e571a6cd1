// Package command: 채팅 명령어 레지스트리와 핸들러.
// 데코레이터식 등록 대신 기동 시점에 명시적으로 레지스트리를 채운다.
package command

import (
	"context"
	"log/slog"

	"github.com/kapu/mkw-stats-bot-go/internal/adapter"
	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/ocr"
	"github.com/kapu/mkw-stats-bot-go/internal/service/bulk"
	"github.com/kapu/mkw-stats-bot-go/internal/service/guild"
	"github.com/kapu/mkw-stats-bot-go/internal/service/resolver"
	"github.com/kapu/mkw-stats-bot-go/internal/service/roster"
	"github.com/kapu/mkw-stats-bot-go/internal/service/stats"
	"github.com/kapu/mkw-stats-bot-go/internal/service/war"
)

// Command: 봇 명령어를 처리하는 인터페이스 정의 (이름, 설명, 실행 로직)
// raw는 명령 이름 뒤에 붙은 인자 원문이다.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error
}

// ImageProvider: 채널별로 최근 관측한 이미지 이벤트를 돌려주는 인터페이스.
// 봇 워커의 이미지 버퍼가 구현하며, scanimage/bulkscanimage가 사용한다.
type ImageProvider interface {
	// Recent: 채널에서 최근 관측한 이미지들을 오래된 것부터 최대 limit개 반환합니다.
	Recent(guildID int64, channelID string, limit int) []*domain.ImageEvent
}

// ConfirmationStore: 단건 스캔의 대화형 승인 대기 상태 저장소.
type ConfirmationStore interface {
	// Put: 채널의 승인 대기 전적을 저장합니다. 기존 대기 건은 대체된다.
	Put(guildID int64, channelID string, players []domain.WarPlayer, raceCount int)
	// Take: 채널의 승인 대기 전적을 꺼내고 제거합니다.
	Take(guildID int64, channelID string) ([]domain.WarPlayer, int, bool)
}

// Dependencies: 명령어 실행에 필요한 서비스 의존성 모음
type Dependencies struct {
	Config      *config.Config
	Guilds      *guild.Repository
	Roster      *roster.Repository
	RosterCache *roster.Cache
	Resolver    *resolver.Service
	Wars        *war.Service
	WarRepo     *war.Repository
	Stats       *stats.Service
	Bulk        *bulk.Store
	Engine      *ocr.Engine
	Images      ImageProvider
	Confirms    ConfirmationStore
	Formatter   *adapter.Formatter
	SendMessage func(ctx context.Context, channelID, message string) error
	Logger      *slog.Logger
}

// reply: 명령이 실행된 채널로 응답을 보낸다.
func (d *Dependencies) reply(ctx context.Context, cmdCtx *domain.CommandContext, message string) error {
	return d.SendMessage(ctx, cmdCtx.ChannelID, message)
}
