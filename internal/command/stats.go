package command

import (
	"context"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/stats"
)

// StatsCommand: 플레이어 통계 또는 리더보드를 보여준다.
// stats [player] [lastxwars=N] [sortby=key]
type StatsCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *StatsCommand) Name() string { return "stats" }

// Description 은 명령어 설명을 반환한다.
func (c *StatsCommand) Description() string { return "stats [player] [lastxwars=N] [sortby=key]" }

// Execute 는 명령을 실행한다.
func (c *StatsCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	var (
		playerName string
		lastXWars  int
		sortRaw    string
	)
	for _, arg := range splitArgs(raw) {
		switch {
		case strings.HasPrefix(arg, "lastxwars="):
			n, err := argInt(strings.TrimPrefix(arg, "lastxwars="), "lastxwars")
			if err != nil {
				return c.deps.reply(ctx, cmdCtx, userMessage(err))
			}
			lastXWars = n
		case strings.HasPrefix(arg, "sortby="):
			sortRaw = strings.TrimPrefix(arg, "sortby=")
		default:
			playerName = arg
		}
	}

	if playerName != "" {
		resolved, _, err := c.deps.Resolver.ResolveName(ctx, cmdCtx.GuildID, playerName)
		if err != nil {
			return c.deps.reply(ctx, cmdCtx, userMessage(err))
		}
		entry, err := c.deps.Stats.PlayerStats(ctx, cmdCtx.GuildID, resolved, lastXWars)
		if err != nil {
			return c.deps.reply(ctx, cmdCtx, userMessage(err))
		}
		return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.PlayerStats(entry))
	}

	sortKey, err := stats.ParseSortKey(sortRaw)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	entries, err := c.deps.Stats.Leaderboard(ctx, cmdCtx.GuildID, sortKey, 0, lastXWars)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.Leaderboard(entries, sortKey))
}
