package domain

import (
	"strings"
	"time"
)

// MemberStatus: 로스터 구성원의 상태.
type MemberStatus string

// 로스터 구성원 상태 값.
const (
	StatusMember MemberStatus = "Member"
	StatusTrial  MemberStatus = "Trial"
	StatusAlly   MemberStatus = "Ally"
	StatusKicked MemberStatus = "Kicked"
)

// ValidMemberStatus: 주어진 문자열이 유효한 멤버 상태인지 확인합니다.
func ValidMemberStatus(s string) bool {
	switch MemberStatus(s) {
	case StatusMember, StatusTrial, StatusAlly, StatusKicked:
		return true
	}
	return false
}

// UnassignedTeam: 팀 미배정 플레이어의 팀 이름.
const UnassignedTeam = "Unassigned"

// Player: 길드 로스터의 플레이어.
// 파생 집계(TotalScore, WarCount 등)는 전적 삽입/삭제 트랜잭션 안에서만 갱신된다.
type Player struct {
	ID           int64
	GuildID      int64
	Name         string
	Nicknames    []string
	Team         string
	MemberStatus MemberStatus
	IsActive     bool

	TotalScore            int
	TotalRaces            int
	WarCount              float64 // 소수점 둘째 자리까지 (races/race_count 누적)
	AverageScore          float64
	TotalTeamDifferential int
	LastWarDate           *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasNickname: 플레이어가 해당 닉네임을 보유하는지 대소문자 무시로 확인합니다.
func (p *Player) HasNickname(nick string) bool {
	for _, n := range p.Nicknames {
		if strings.EqualFold(n, nick) {
			return true
		}
	}
	return false
}

// LongestAliasLength: 닉네임 모호성 해소에 쓰이는, 본명과 닉네임 중 가장 긴 길이를 반환한다.
func (p *Player) LongestAliasLength() int {
	longest := len([]rune(p.Name))
	for _, n := range p.Nicknames {
		if l := len([]rune(n)); l > longest {
			longest = l
		}
	}
	return longest
}
