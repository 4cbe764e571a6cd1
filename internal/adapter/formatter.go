// Package adapter: 서비스 결과를 채팅 메시지 텍스트로 변환하는 포매터.
package adapter

import (
	"fmt"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/stats"
)

// Formatter: 채팅 응답 메시지 포매터.
type Formatter struct{}

// NewFormatter: 새로운 포매터를 생성합니다.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// War: 전적 1건의 요약을 렌더링합니다.
func (f *Formatter) War(w *domain.War) string {
	var b strings.Builder
	outcome := "TIE"
	switch domain.OutcomeOf(w.TeamDifferential) {
	case domain.OutcomeWin:
		outcome = "WIN"
	case domain.OutcomeLoss:
		outcome = "LOSS"
	}

	fmt.Fprintf(&b, "War #%d — %s (%d races)\n", w.ID, outcome, w.RaceCount)
	fmt.Fprintf(&b, "Team score %d, differential %+d\n", w.TeamScore, w.TeamDifferential)
	for _, p := range w.Players {
		fmt.Fprintf(&b, "  %s: %d (%d races)\n", p.Name, p.Score, p.RacesPlayed)
	}
	return strings.TrimRight(b.String(), "\n")
}

// WarList: 전적 목록을 렌더링합니다.
func (f *Formatter) WarList(wars []*domain.War, total int) string {
	if len(wars) == 0 {
		return "No wars recorded yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Wars (%d total):\n", total)
	for _, w := range wars {
		fmt.Fprintf(&b, "#%d  %s  %d players  score %d  diff %+d\n",
			w.ID, w.WarDate.Format("2006-01-02"), len(w.Players), w.TeamScore, w.TeamDifferential)
	}
	return strings.TrimRight(b.String(), "\n")
}

// DetectedPlayers: OCR 결과를 승인 프롬프트 메시지로 렌더링합니다.
func (f *Formatter) DetectedPlayers(players []domain.DetectedPlayer, raceCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Detected results (%d races):\n", raceCount)
	for _, p := range players {
		marker := ""
		if !p.IsRosterMember {
			marker = "  [not on roster]"
		}
		if p.RawName != "" && p.RawName != p.Name {
			fmt.Fprintf(&b, "  %s: %d (read as %q)%s\n", p.Name, p.Score, p.RawName, marker)
		} else {
			fmt.Fprintf(&b, "  %s: %d%s\n", p.Name, p.Score, marker)
		}
	}
	b.WriteString("Reply with `confirmwar` to save or `cancelwar` to discard.")
	return b.String()
}

// Roster: 로스터 목록을 렌더링합니다.
func (f *Formatter) Roster(players []*domain.Player) string {
	if len(players) == 0 {
		return "The roster is empty."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Roster (%d players):\n", len(players))
	for _, p := range players {
		status := ""
		if p.MemberStatus != domain.StatusMember {
			status = fmt.Sprintf(" [%s]", p.MemberStatus)
		}
		fmt.Fprintf(&b, "  %s — %s%s\n", p.Name, p.Team, status)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Leaderboard: 리더보드를 렌더링합니다.
func (f *Formatter) Leaderboard(entries []stats.Entry, sortKey stats.SortKey) string {
	if len(entries) == 0 {
		return "No stats recorded yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Leaderboard (by %s):\n", sortKey)
	for _, e := range entries {
		fmt.Fprintf(&b, "%2d. %-16s avg %.1f  wars %.2f  total %d  diff %+d\n",
			e.Rank, e.Name, e.AverageScore, e.WarCount, e.TotalScore, e.TotalTeamDifferential)
	}
	return strings.TrimRight(b.String(), "\n")
}

// PlayerStats: 플레이어 1명의 통계를 렌더링합니다.
func (f *Formatter) PlayerStats(e *stats.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s)\n", e.Name, e.Team, e.MemberStatus)
	fmt.Fprintf(&b, "  wars: %.2f  races: %d\n", e.WarCount, e.TotalRaces)
	fmt.Fprintf(&b, "  total score: %d  average: %.1f\n", e.TotalScore, e.AverageScore)
	fmt.Fprintf(&b, "  team differential: %+d\n", e.TotalTeamDifferential)
	if e.LastWarDate != nil {
		fmt.Fprintf(&b, "  last war: %s\n", *e.LastWarDate)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Overview: 길드 개요를 렌더링합니다.
func (f *Formatter) Overview(o *stats.Overview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Guild overview:\n")
	fmt.Fprintf(&b, "  wars: %d (%dW / %dL / %dT)\n", o.TotalWars, o.Wins, o.Losses, o.Ties)
	fmt.Fprintf(&b, "  active players: %d\n", o.ActivePlayers)
	fmt.Fprintf(&b, "  average team score: %.1f\n", o.AverageScore)
	if o.TopPlayer != "" {
		fmt.Fprintf(&b, "  top player: %s\n", o.TopPlayer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Teams: 팀 목록과 인원수를 렌더링합니다.
func (f *Formatter) Teams(teams []string, counts map[string]int) string {
	if len(teams) == 0 {
		return "No teams configured. Use addteam to create one."
	}

	var b strings.Builder
	b.WriteString("Teams:\n")
	for _, t := range teams {
		fmt.Fprintf(&b, "  %s (%d players)\n", t, counts[t])
	}
	return strings.TrimRight(b.String(), "\n")
}

// Nicknames: 플레이어의 닉네임 목록을 렌더링합니다.
func (f *Formatter) Nicknames(name string, nicknames []string) string {
	if len(nicknames) == 0 {
		return fmt.Sprintf("%s has no nicknames.", name)
	}
	return fmt.Sprintf("%s: %s", name, strings.Join(nicknames, ", "))
}
