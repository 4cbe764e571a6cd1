// Package bot: 채팅 플랫폼과 파이프라인을 잇는 봇 워커.
// 명령 이벤트는 레지스트리로 디스패치하고, OCR 채널의 이미지 이벤트는
// EXPRESS 스캔 후 대화형 승인 프롬프트로 이어진다.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/kapu/mkw-stats-bot-go/internal/chat"
	"github.com/kapu/mkw-stats-bot-go/internal/command"
	"github.com/kapu/mkw-stats-bot-go/internal/config"
	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/ocr"
	"github.com/kapu/mkw-stats-bot-go/internal/service/guild"
	"github.com/kapu/mkw-stats-bot-go/internal/service/resolver"
)

// Bot: 이벤트 핸들러 본체. chat.EventHandler를 구현한다.
type Bot struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   chat.Client
	registry *command.Registry
	deps     *command.Dependencies
	guilds   *guild.Repository
	engine   *ocr.Engine
	resolver *resolver.Service
	images   *ImageBuffer
	confirms *Confirmations

	// 채팅 플랫폼 레이트리밋 보호. 초당 5건.
	sendLimiter *rate.Limiter
}

// New: 봇 워커를 생성하고 명령어 레지스트리를 채운다.
func New(
	cfg *config.Config,
	client chat.Client,
	deps *command.Dependencies,
	images *ImageBuffer,
	confirms *Confirmations,
	logger *slog.Logger,
) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config dependency is required")
	}
	if client == nil {
		return nil, fmt.Errorf("chat client dependency is required")
	}
	if deps == nil {
		return nil, fmt.Errorf("command dependencies are required")
	}

	b := &Bot{
		cfg:         cfg,
		logger:      logger,
		client:      client,
		deps:        deps,
		guilds:      deps.Guilds,
		engine:      deps.Engine,
		resolver:    deps.Resolver,
		images:      images,
		confirms:    confirms,
		sendLimiter: rate.NewLimiter(rate.Limit(5), 5),
	}

	deps.Images = images
	deps.Confirms = confirms
	deps.SendMessage = b.send

	b.registry = command.NewRegistry()
	command.RegisterAll(b.registry, deps)

	logger.Info("Bot initialized", slog.Int("commands", b.registry.Count()))
	return b, nil
}

// send: 레이트리밋을 적용해 채널로 메시지를 보낸다.
func (b *Bot) send(ctx context.Context, channelID, message string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout.ChatSend)
	defer cancel()

	if err := b.sendLimiter.Wait(ctx); err != nil {
		return err
	}
	return b.client.SendMessage(ctx, channelID, message)
}

// HandleCommand: 슬래시 명령 1건을 레지스트리로 디스패치합니다.
func (b *Bot) HandleCommand(ctx context.Context, cmdCtx *domain.CommandContext, name, raw string) {
	err := b.registry.Execute(ctx, cmdCtx, name, raw)
	if err == nil {
		return
	}

	if errors.Is(err, command.ErrUnknownCommand) {
		_ = b.send(ctx, cmdCtx.ChannelID, fmt.Sprintf("Unknown command %q. Try help.", name))
		return
	}

	b.logger.Error("Command failed",
		slog.String("command", name),
		slog.Int64("guild_id", cmdCtx.GuildID),
		slog.Any("error", err),
	)
	_ = b.send(ctx, cmdCtx.ChannelID, "Something went wrong. Please try again.")
}

// HandleImage: 이미지 이벤트를 버퍼에 쌓고, 설정된 OCR 채널이면 자동 스캔한다.
func (b *Bot) HandleImage(ctx context.Context, event *domain.ImageEvent) {
	b.images.Add(event)

	cfg, err := b.guilds.Get(ctx, event.GuildID)
	if err != nil {
		b.logger.Error("Guild lookup failed", slog.Int64("guild_id", event.GuildID), slog.Any("error", err))
		return
	}
	if cfg == nil || !cfg.IsActive || cfg.OCRChannelID != event.ChannelID {
		return // 스캔 대상 채널이 아니면 버퍼 적재로 끝
	}

	b.autoScan(ctx, event)
}

// autoScan: OCR 채널에 올라온 이미지를 EXPRESS로 스캔하고 승인 프롬프트를 띄운다.
func (b *Bot) autoScan(ctx context.Context, event *domain.ImageEvent) {
	out, err := b.engine.Process(ctx, ocr.TierExpress, event.Bytes)
	if err != nil || out.Status != ocr.StatusOK {
		b.logger.Warn("Auto-scan OCR failed",
			slog.Int64("guild_id", event.GuildID),
			slog.String("filename", event.Filename),
			slog.Any("error", err),
		)
		_ = b.send(ctx, event.ChannelID,
			"Couldn't read this image. Try again or enter the results manually with addwar.")
		return
	}

	resolve, err := b.resolver.ResolverFor(ctx, event.GuildID)
	if err != nil {
		b.logger.Error("Roster snapshot failed", slog.Int64("guild_id", event.GuildID), slog.Any("error", err))
		return
	}

	detected := ocr.ParseResults(out.Boxes, constants.ScoringConfig.DefaultRaceCount, resolve)
	if len(detected) == 0 {
		_ = b.send(ctx, event.ChannelID,
			"No player rows detected. Try again or enter the results manually with addwar.")
		return
	}

	players := make([]domain.WarPlayer, len(detected))
	for i, d := range detected {
		players[i] = domain.WarPlayer{Name: d.Name, Score: d.Score, RacesPlayed: d.RacesPlayed}
	}
	b.confirms.Put(event.GuildID, event.ChannelID, players, constants.ScoringConfig.DefaultRaceCount)

	_ = b.send(ctx, event.ChannelID,
		b.deps.Formatter.DetectedPlayers(detected, constants.ScoringConfig.DefaultRaceCount))
}

var _ chat.EventHandler = (*Bot)(nil)
