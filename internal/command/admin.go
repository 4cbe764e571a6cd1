package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// SetupCommand: 길드 초기 설정 (팀 이름, 플레이어 목록, 결과 채널).
type SetupCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *SetupCommand) Name() string { return "setup" }

// Description 은 명령어 설명을 반환한다.
func (c *SetupCommand) Description() string {
	return "setup <teamname> <player1,player2,...> <results_channel>"
}

// Execute 는 명령을 실행한다.
func (c *SetupCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	args := splitArgs(raw)
	if len(args) < 3 {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}
	teamName, playersCSV, channel := args[0], args[1], args[2]

	if err := c.deps.Guilds.Setup(ctx, cmdCtx.GuildID, fmt.Sprintf("guild-%d", cmdCtx.GuildID), teamName, channel); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}

	created := 0
	for _, name := range strings.Split(playersCSV, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, err := c.deps.Roster.Create(ctx, cmdCtx.GuildID, name, domain.StatusMember); err == nil {
			created++
		}
	}
	c.deps.RosterCache.Invalidate(ctx, cmdCtx.GuildID)

	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf(
		"Setup complete: team %q, %d players added, OCR channel %s.", teamName, created, channel))
}

// SetChannelCommand: 자동 스캔 대상 채널 변경.
type SetChannelCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *SetChannelCommand) Name() string { return "setchannel" }

// Description 은 명령어 설명을 반환한다.
func (c *SetChannelCommand) Description() string { return "setchannel <channel>" }

// Execute 는 명령을 실행한다.
func (c *SetChannelCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	channel := strings.TrimSpace(raw)
	if channel == "" {
		return c.deps.reply(ctx, cmdCtx, "Usage: "+c.Description())
	}
	if err := c.deps.Guilds.SetOCRChannel(ctx, cmdCtx.GuildID, channel); err != nil {
		return c.deps.reply(ctx, cmdCtx, userMessage(err))
	}
	return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("OCR channel set to %s.", channel))
}

// CheckPermissionsCommand: 봇이 채널에서 동작 가능한지 점검한다.
// 게이트웨이 경유 구조에서는 전송 가능 여부 확인으로 충분하다.
type CheckPermissionsCommand struct {
	deps *Dependencies
}

// Name 은 명령어 이름을 반환한다.
func (c *CheckPermissionsCommand) Name() string { return "checkpermissions" }

// Description 은 명령어 설명을 반환한다.
func (c *CheckPermissionsCommand) Description() string { return "checkpermissions <channel>" }

// Execute 는 명령을 실행한다.
func (c *CheckPermissionsCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	channel := strings.TrimSpace(raw)
	if channel == "" {
		channel = cmdCtx.ChannelID
	}
	if err := c.deps.SendMessage(ctx, channel, "Permission check: the bot can post here."); err != nil {
		return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Cannot post in %s: delivery failed.", channel))
	}
	if channel != cmdCtx.ChannelID {
		return c.deps.reply(ctx, cmdCtx, fmt.Sprintf("Posted a test message in %s.", channel))
	}
	return nil
}

// HelpCommand: 등록된 명령어 목록을 보여준다.
type HelpCommand struct {
	deps     *Dependencies
	registry *Registry
}

// Name 은 명령어 이름을 반환한다.
func (c *HelpCommand) Name() string { return "help" }

// Description 은 명령어 설명을 반환한다.
func (c *HelpCommand) Description() string { return "help" }

// Execute 는 명령을 실행한다.
func (c *HelpCommand) Execute(ctx context.Context, cmdCtx *domain.CommandContext, raw string) error {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, cmd := range c.registry.List() {
		fmt.Fprintf(&b, "  %s\n", cmd.Description())
	}
	return c.deps.reply(ctx, cmdCtx, strings.TrimRight(b.String(), "\n"))
}
