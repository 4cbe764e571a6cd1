package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/war"
)

// resolveWarPlayers: 입력된 이름들을 로스터 정식 이름으로 해석한다.
// 해석 실패한 이름은 그대로 두어 war 서비스의 unknown player 검증에 걸리게 한다.
func resolveWarPlayers(ctx context.Context, deps *Dependencies, guildID int64, players []domain.WarPlayer) ([]domain.WarPlayer, error) {
	out := make([]domain.WarPlayer, len(players))
	for i, p := range players {
		name, _, err := deps.Resolver.ResolveName(ctx, guildID, p.Name)
		if err != nil {
			return nil, err
		}
		p.Name = name
		out[i] = p
	}
	return out, nil
}

// AddWarCommand: 전적 1건을 수동 입력으로 추가한다.
type AddWarCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *AddWarCommand) Name() string { return "addwar" }

// Description 은 명령어 설명을 반환한다.
func (c *AddWarCommand) Description() string { return "addwar <Name:Score,...> [races]" }

// Execute 는 명령을 실행한다.
func (c *AddWarCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 1 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	players, err := ParsePlayerScores(args[0])
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	raceCount := constants.ScoringConfig.DefaultRaceCount
	if len(args) > 1 {
		if raceCount, err = argInt(args[1], "races"); err != nil {
			return c.deps.reply(ctx, cmdCtx, userMessage(err))
		}
	}

	resolved, err := resolveWarPlayers(ctx, c.deps, cmdCtx.GuildID, players)
	if err != nil {
		return err
	}

	result, err := c.deps.Wars.Submit(ctx, cmdCtx.GuildID, resolved, raceCount, war.SubmitOptions{})
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"War #%d saved: team score %d, differential %+d.",
		result.WarID, result.TeamScore, result.TeamDifferential))
}

// AppendPlayerToWarCommand: 기존 전적에 플레이어를 추가한다.
type AppendPlayerToWarCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *AppendPlayerToWarCommand) Name() string { return "appendplayertowar" }

// Description 은 명령어 설명을 반환한다.
func (c *AppendPlayerToWarCommand) Description() string {
	return "appendplayertowar <war_id> <Name:Score,...>"
}

// Execute 는 명령을 실행한다.
func (c *AppendPlayerToWarCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 2 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	warID, err := argInt(args[0], "war_id")
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	players, err := ParsePlayerScores(args[1])
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	resolved, err := resolveWarPlayers(ctx, c.deps, cmdCtx.GuildID, players)
	if err != nil {
		return err
	}

	updated, err := c.deps.Wars.AppendPlayers(ctx, cmdCtx.GuildID, int64(warID), resolved)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"War #%d updated: %d players, differential %+d.",
		updated.ID, len(updated.Players), updated.TeamDifferential))
}

// RemoveWarCommand: 전적을 삭제하고 통계 기여를 되돌린다.
type RemoveWarCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *RemoveWarCommand) Name() string { return "removewar" }

// Description 은 명령어 설명을 반환한다.
func (c *RemoveWarCommand) Description() string { return "removewar <war_id>" }

// Execute 는 명령을 실행한다.
func (c *RemoveWarCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	warID, err := argInt(raw, "war_id")
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	removed, err := c.deps.Wars.Remove(ctx, cmdCtx.GuildID, int64(warID))
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"War #%d removed; reverted stats for %d players.", removed.ID, len(removed.Players)))
}

// ShowAllWarsCommand: 전적 목록을 보여준다.
type ShowAllWarsCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *ShowAllWarsCommand) Name() string { return "showallwars" }

// Description 은 명령어 설명을 반환한다.
func (c *ShowAllWarsCommand) Description() string { return "showallwars [limit]" }

// Execute 는 명령을 실행한다.
func (c *ShowAllWarsCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	limit := constants.PaginationConfig.DefaultLimit
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		var err error
		if limit, err = argInt(trimmed, "limit"); err != nil {
			return c.deps.reply(ctx, cmdCtx, userMessage(err))
		}
	}
	if limit > constants.PaginationConfig.MaxLimit {
		limit = constants.PaginationConfig.MaxLimit
	}

	wars, total, err := c.deps.WarRepo.List(ctx, cmdCtx.GuildID, 0, limit)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.WarList(wars, total))
}

// ConfirmWarCommand: 단건 스캔의 승인 대기 전적을 저장한다.
type ConfirmWarCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *ConfirmWarCommand) Name() string { return "confirmwar" }

// Description 은 명령어 설명을 반환한다.
func (c *ConfirmWarCommand) Description() string { return "confirmwar" }

// Execute 는 명령을 실행한다.
func (c *ConfirmWarCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	players, raceCount, ok := c.deps.Confirms.Take(cmdCtx.GuildID, cmdCtx.ChannelID)
	if !ok {
		return c.deps.reply(ctx, cmdCtx, "Nothing to confirm in this channel.")
	}

	result, err := c.deps.Wars.Submit(ctx, cmdCtx.GuildID, players, raceCount, war.SubmitOptions{})
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"War #%d saved: team score %d, differential %+d.",
		result.WarID, result.TeamScore, result.TeamDifferential))
}

// CancelWarCommand: 단건 스캔의 승인 대기 전적을 버린다.
type CancelWarCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *CancelWarCommand) Name() string { return "cancelwar" }

// Description 은 명령어 설명을 반환한다.
func (c *CancelWarCommand) Description() string { return "cancelwar" }

// Execute 는 명령을 실행한다.
func (c *CancelWarCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	if _, _, ok := c.deps.Confirms.Take(cmdCtx.GuildID, cmdCtx.ChannelID); !ok {
		return c.deps.reply(ctx, cmdCtx, "Nothing to cancel in this channel.")
	}
	return c.deps.reply(ctx, cmdCtx, "Pending scan discarded.")
}
