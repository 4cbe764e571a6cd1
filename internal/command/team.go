package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// AddTeamCommand: 팀을 추가한다.
type AddTeamCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *AddTeamCommand) Name() string { return "addteam" }

// Description 은 명령어 설명을 반환한다.
func (c *AddTeamCommand) Description() string { return "addteam <name>" }

// Execute 는 명령을 실행한다.
func (c *AddTeamCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	name := strings.TrimSpace(raw)
	if name == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}
	if err := c.deps.Guilds.AddTeam(ctx, cmdCtx.GuildID, name); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Team %q added.", name))
}

// RemoveTeamCommand: 팀을 제거하고 소속 플레이어를 Unassigned로 되돌린다.
type RemoveTeamCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *RemoveTeamCommand) Name() string { return "removeteam" }

// Description 은 명령어 설명을 반환한다.
func (c *RemoveTeamCommand) Description() string { return "removeteam <name>" }

// Execute 는 명령을 실행한다.
func (c *RemoveTeamCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	name := strings.TrimSpace(raw)
	if name == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}
	if err := c.deps.Guilds.RemoveTeam(ctx, cmdCtx.GuildID, name); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if err := c.deps.Roster.UnassignTeamMembers(ctx, cmdCtx.GuildID, name); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Team %q removed.", name))
}

// RenameTeamCommand: 팀 이름을 바꾸고 소속 플레이어의 팀 값도 갱신한다.
type RenameTeamCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *RenameTeamCommand) Name() string { return "renameteam" }

// Description 은 명령어 설명을 반환한다.
func (c *RenameTeamCommand) Description() string { return "renameteam <old> <new>" }

// Execute 는 명령을 실행한다.
func (c *RenameTeamCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 2 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}
	oldName, newName := args[0], args[1]

	if err := c.deps.Guilds.RenameTeam(ctx, cmdCtx.GuildID, oldName, newName); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if err := c.deps.Roster.RenameTeamMembers(ctx, cmdCtx.GuildID, oldName, newName); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Team %q renamed to %q.", oldName, newName))
}

// AssignPlayersCommand: 플레이어들을 팀에 배정한다.
type AssignPlayersCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *AssignPlayersCommand) Name() string { return "assignplayers" }

// Description 은 명령어 설명을 반환한다.
func (c *AssignPlayersCommand) Description() string { return "assignplayers <name1,name2,...> <team>" }

// Execute 는 명령을 실행한다.
func (c *AssignPlayersCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 2 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	names := make([]string, 0)
	for _, n := range strings.Split(args[0], ",") {
		if trimmed := strings.TrimSpace(n); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	team := args[1]

	cfg, err := c.deps.Guilds.Get(ctx, cmdCtx.GuildID)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if cfg == nil || !cfg.HasTeam(team) {
		return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Team %q does not exist. Use addteam first.", team))
	}

	if err := c.deps.Roster.AssignTeam(ctx, cmdCtx.GuildID, names, team); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Assigned %d players to %q.", len(names), team))
}

// UnassignPlayerCommand: 플레이어의 팀 배정을 해제한다.
type UnassignPlayerCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *UnassignPlayerCommand) Name() string { return "unassignplayerfromteam" }

// Description 은 명령어 설명을 반환한다.
func (c *UnassignPlayerCommand) Description() string { return "unassignplayerfromteam <name>" }

// Execute 는 명령을 실행한다.
func (c *UnassignPlayerCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	name := strings.TrimSpace(raw)
	if name == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}
	if err := c.deps.Roster.UnassignTeam(ctx, cmdCtx.GuildID, name); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("%s is now unassigned.", name))
}

// ShowAllTeamsCommand: 팀 목록과 인원수를 보여준다.
type ShowAllTeamsCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *ShowAllTeamsCommand) Name() string { return "showallteams" }

// Description 은 명령어 설명을 반환한다.
func (c *ShowAllTeamsCommand) Description() string { return "showallteams" }

// Execute 는 명령을 실행한다.
func (c *ShowAllTeamsCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	cfg, err := c.deps.Guilds.Get(ctx, cmdCtx.GuildID)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if cfg == nil {
		return c.deps.reply(ctx, cmdCtx, "Guild is not set up yet. Run setup first.")
	}

	counts := make(map[string]int, len(cfg.TeamNames))
	for _, team := range cfg.TeamNames {
		players, err := c.deps.Roster.ListByTeam(ctx, cmdCtx.GuildID, team)
		if err != nil {
			return c.deps.reply(ctx, cmdCtx, userMessage(err))
		}
		counts[team] = len(players)
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.Teams(cfg.TeamNames, counts))
}

// ShowTeamRosterCommand: 특정 팀의 로스터를 보여준다.
type ShowTeamRosterCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *ShowTeamRosterCommand) Name() string { return "showspecificteamroster" }

// Description 은 명령어 설명을 반환한다.
func (c *ShowTeamRosterCommand) Description() string { return "showspecificteamroster <team>" }

// Execute 는 명령을 실행한다.
func (c *ShowTeamRosterCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	team := strings.TrimSpace(raw)
	if team == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}

	players, err := c.deps.Roster.ListByTeam(ctx, cmdCtx.GuildID, team)
	if err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	if len(players) == 0 {
		return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("No players on team %q.", team))
	}
	return c.deps.reply(ctx, cmdCtx, c.deps.Formatter.Roster(players))
}
