package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// AddNicknameCommand: 플레이어에게 닉네임을 추가한다.
// 이후 OCR 해석이 퍼지 매칭 없이 닉네임 단계에서 적중하게 된다.
type AddNicknameCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *AddNicknameCommand) Name() string { return "addnickname" }

// Description 은 명령어 설명을 반환한다.
func (c *AddNicknameCommand) Description() string { return "addnickname <name> <nickname>" }

// Execute 는 명령을 실행한다.
func (c *AddNicknameCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 2 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	if err := c.deps.Roster.AddNickname(ctx, cmdCtx.GuildID, args[0], args[1]); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("%q now resolves to %s.", args[1], args[0]))
}

// RemoveNicknameCommand: 플레이어의 닉네임을 제거한다.
type RemoveNicknameCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *RemoveNicknameCommand) Name() string { return "removenickname" }

// Description 은 명령어 설명을 반환한다.
func (c *RemoveNicknameCommand) Description() string { return "removenickname <name> <nickname>" }

// Execute 는 명령을 실행한다.
func (c *RemoveNicknameCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 2 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	if err := c.deps.Roster.RemoveNickname(ctx, cmdCtx.GuildID, args[0], args[1]); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Removed nickname %q from %s.", args[1], args[0]))
}

// NicknamesForCommand: 플레이어의 닉네임 목록을 보여준다.
type NicknamesForCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *NicknamesForCommand) Name() string { return "nicknamesfor" }

// Description 은 명령어 설명을 반환한다.
func (c *NicknamesForCommand) Description() string { return "nicknamesfor <name>" }

// Execute 는 명령을 실행한다.
func (c *NicknamesForCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	name := strings.TrimSpace(raw)
	if name == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	player, err := c.deps.Roster.GetByName(ctx, cmdCtx.GuildID, name)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if player == nil {
		return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Unknown player %q.", name))
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.Nicknames(player.Name, player.Nicknames))
}
