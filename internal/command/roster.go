package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// AddPlayerCommand: 플레이어를 로스터에 추가한다.
type AddPlayerCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *AddPlayerCommand) Name() string { return "addplayer" }

// Description 은 명령어 설명을 반환한다.
func (c *AddPlayerCommand) Description() string { return "addplayer <name> [member_status]" }

// Execute 는 명령을 실행한다.
func (c *AddPlayerCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 1 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	status := domain.StatusMember
	if len(args) > 1 {
		status = domain.MemberStatus(args[1])
	}

	player, err := c.deps.Roster.Create(ctx, cmdCtx.GuildID, args[0], status)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)

	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"%s added to the roster as %s.", player.Name, player.MemberStatus))
}

// RemovePlayerCommand: 플레이어를 로스터에서 제외한다. 과거 전적 기여는 유지된다.
type RemovePlayerCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *RemovePlayerCommand) Name() string { return "removeplayer" }

// Description 은 명령어 설명을 반환한다.
func (c *RemovePlayerCommand) Description() string { return "removeplayer <name>" }

// Execute 는 명령을 실행한다.
func (c *RemovePlayerCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	name := strings.TrimSpace(raw)
	if name == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	if err := c.deps.Roster.Deactivate(ctx, cmdCtx.GuildID, name); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)

	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("%s removed from the roster.", name))
}

// SetMemberStatusCommand: 멤버 상태를 변경한다.
type SetMemberStatusCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *SetMemberStatusCommand) Name() string { return "setmemberstatus" }

// Description 은 명령어 설명을 반환한다.
func (c *SetMemberStatusCommand) Description() string {
	return "setmemberstatus <name> <Member|Trial|Ally|Kicked>"
}

// Execute 는 명령을 실행한다.
func (c *SetMemberStatusCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 2 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	if err := c.deps.Roster.SetMemberStatus(ctx, cmdCtx.GuildID, args[0], domain.MemberStatus(args[1])); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)

	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("%s is now %s.", args[0], args[1]))
}

// RosterCommand: 전체 로스터를 보여준다.
type RosterCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *RosterCommand) Name() string { return "roster" }

// Description 은 명령어 설명을 반환한다.
func (c *RosterCommand) Description() string { return "roster" }

// Execute 는 명령을 실행한다.
func (c *RosterCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	players, err := c.deps.Roster.List(ctx, cmdCtx.GuildID, false)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.Roster(players))
}

// ShowTrialsCommand: Trial 상태 플레이어 목록을 보여준다.
type ShowTrialsCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *ShowTrialsCommand) Name() string { return "showtrials" }

// Description 은 명령어 설명을 반환한다.
func (c *ShowTrialsCommand) Description() string { return "showtrials" }

// Execute 는 명령을 실행한다.
func (c *ShowTrialsCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	players, err := c.deps.Roster.ListByStatus(ctx, cmdCtx.GuildID, domain.StatusTrial)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if len(players) == 0 {
		return c.deps.reply(ctx, cmdCtx, "No trial members.")
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.Roster(players))
}

// ShowKickedCommand: Kicked 상태 플레이어 목록을 보여준다.
type ShowKickedCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *ShowKickedCommand) Name() string { return "showkicked" }

// Description 은 명령어 설명을 반환한다.
func (c *ShowKickedCommand) Description() string { return "showkicked" }

// Execute 는 명령을 실행한다.
func (c *ShowKickedCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	players, err := c.deps.Roster.ListByStatus(ctx, cmdCtx.GuildID, domain.StatusKicked)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if len(players) == 0 {
		return c.deps.reply(ctx, cmdCtx, "No kicked members.")
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.Roster(players))
}
