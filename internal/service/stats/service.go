// Package stats: 리더보드, 길드 개요, 플레이어별 통계 조회.
// 저장된 집계를 읽는 것이 기본이며, lastxwars 지정 시에는 최근 N개
// 전적만으로 집계를 재계산하되 어디에도 저장하지 않는다.
package stats

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/service/roster"
	"github.com/kapu/mkw-stats-bot-go/internal/service/war"
	apperrors "github.com/kapu/mkw-stats-bot-go/pkg/errors"
)

// SortKey: 리더보드 정렬 기준.
type SortKey string

// 리더보드 정렬 기준 값.
const (
	SortAverageScore SortKey = "average_score"
	SortTotalScore   SortKey = "total_score"
	SortWarCount     SortKey = "war_count"
	SortDifferential SortKey = "total_team_differential"
)

// ParseSortKey: 문자열을 정렬 기준으로 해석한다. 비어 있으면 average_score,
// 모르는 값이면 ValidationError를 반환한다.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case "", SortAverageScore:
		return SortAverageScore, nil
	case SortTotalScore:
		return SortTotalScore, nil
	case SortWarCount:
		return SortWarCount, nil
	case SortDifferential:
		return SortDifferential, nil
	default:
		return "", apperrors.NewValidationError("unknown sort key", "sort")
	}
}

// Entry: 리더보드 1행.
type Entry struct {
	Rank                  int     `json:"rank"`
	Name                  string  `json:"name"`
	Team                  string  `json:"team"`
	MemberStatus          string  `json:"member_status"`
	TotalScore            int     `json:"total_score"`
	TotalRaces            int     `json:"total_races"`
	WarCount              float64 `json:"war_count"`
	AverageScore          float64 `json:"average_score"`
	TotalTeamDifferential int     `json:"total_team_differential"`
	LastWarDate           *string `json:"last_war_date,omitempty"`
}

// Overview: 길드 전적 개요.
type Overview struct {
	TotalWars     int     `json:"total_wars"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	Ties          int     `json:"ties"`
	ActivePlayers int     `json:"active_players"`
	AverageScore  float64 `json:"average_team_score"`
	TopPlayer     string  `json:"top_player,omitempty"`
}

// Service: 통계 조회 서비스.
type Service struct {
	rosterRepo *roster.Repository
	warRepo    *war.Repository
	logger     *slog.Logger
}

// NewService: 새로운 통계 서비스를 생성합니다.
func NewService(rosterRepo *roster.Repository, warRepo *war.Repository, logger *slog.Logger) *Service {
	return &Service{
		rosterRepo: rosterRepo,
		warRepo:    warRepo,
		logger:     logger,
	}
}

// Leaderboard: 정렬 기준에 따른 리더보드를 반환한다.
// lastXWars > 0이면 플레이어별 최근 N개 전적만으로 집계를 재계산한다.
func (s *Service) Leaderboard(ctx context.Context, guildID int64, sortKey SortKey, limit, lastXWars int) ([]Entry, error) {
	players, err := s.rosterRepo.List(ctx, guildID, true)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if lastXWars > 0 {
		entries, err = s.recomputeFromRecent(ctx, guildID, players, lastXWars)
		if err != nil {
			return nil, err
		}
	} else {
		entries = make([]Entry, 0, len(players))
		for _, p := range players {
			if p.WarCount <= 0 {
				continue
			}
			entries = append(entries, entryOf(p))
		}
	}

	sortEntries(entries, sortKey)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

func entryOf(p *domain.Player) Entry {
	e := Entry{
		Name:                  p.Name,
		Team:                  p.Team,
		MemberStatus:          string(p.MemberStatus),
		TotalScore:            p.TotalScore,
		TotalRaces:            p.TotalRaces,
		WarCount:              p.WarCount,
		AverageScore:          p.AverageScore,
		TotalTeamDifferential: p.TotalTeamDifferential,
	}
	if p.LastWarDate != nil {
		d := p.LastWarDate.Format("2006-01-02")
		e.LastWarDate = &d
	}
	return e
}

// recomputeFromRecent: 플레이어별 최근 N개 전적만으로 집계를 재계산한다.
// 저장된 집계는 건드리지 않는다.
func (s *Service) recomputeFromRecent(ctx context.Context, guildID int64, players []*domain.Player, n int) ([]Entry, error) {
	// 전적을 최신순으로 전부 걷어 플레이어별 최근 N개 참가 기록을 모은다.
	type participation struct {
		score   int
		races   int
		raceCnt int
		diff    int
		warDate string
	}

	const pageSize = 200
	perPlayer := make(map[string][]participation)

	offset := 0
	for {
		wars, total, err := s.warRepo.List(ctx, guildID, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, w := range wars {
			for _, wp := range w.Players {
				if len(perPlayer[wp.Name]) >= n {
					continue
				}
				perPlayer[wp.Name] = append(perPlayer[wp.Name], participation{
					score:   wp.Score,
					races:   wp.RacesPlayed,
					raceCnt: w.RaceCount,
					diff:    w.TeamDifferential,
					warDate: w.WarDate.Format("2006-01-02"),
				})
			}
		}
		offset += len(wars)
		if offset >= total || len(wars) == 0 {
			break
		}
	}

	byName := make(map[string]*domain.Player, len(players))
	for _, p := range players {
		byName[p.Name] = p
	}

	entries := make([]Entry, 0, len(perPlayer))
	for name, records := range perPlayer {
		p := byName[name]
		if p == nil {
			continue // 로스터에서 사라진 이름은 표시하지 않는다
		}
		e := Entry{
			Name:         name,
			Team:         p.Team,
			MemberStatus: string(p.MemberStatus),
		}
		warCount := 0.0
		for _, rec := range records {
			e.TotalScore += rec.score
			e.TotalRaces += rec.races
			e.TotalTeamDifferential += rec.diff
			warCount += float64(rec.races) / float64(rec.raceCnt)
			if e.LastWarDate == nil || rec.warDate > *e.LastWarDate {
				d := rec.warDate
				e.LastWarDate = &d
			}
		}
		e.WarCount = math.Round(warCount*100) / 100
		if e.WarCount > 0 {
			e.AverageScore = float64(e.TotalScore) / e.WarCount
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func sortEntries(entries []Entry, key SortKey) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch key {
		case SortTotalScore:
			if a.TotalScore != b.TotalScore {
				return a.TotalScore > b.TotalScore
			}
		case SortWarCount:
			if a.WarCount != b.WarCount {
				return a.WarCount > b.WarCount
			}
		case SortDifferential:
			if a.TotalTeamDifferential != b.TotalTeamDifferential {
				return a.TotalTeamDifferential > b.TotalTeamDifferential
			}
		default:
			if a.AverageScore != b.AverageScore {
				return a.AverageScore > b.AverageScore
			}
		}
		return a.Name < b.Name
	})
}

// GuildOverview: 길드 전적 개요를 계산합니다.
func (s *Service) GuildOverview(ctx context.Context, guildID int64) (*Overview, error) {
	overview := &Overview{}

	const pageSize = 200
	offset := 0
	teamScoreSum := 0
	for {
		wars, total, err := s.warRepo.List(ctx, guildID, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, w := range wars {
			overview.TotalWars++
			teamScoreSum += w.TeamScore
			switch domain.OutcomeOf(w.TeamDifferential) {
			case domain.OutcomeWin:
				overview.Wins++
			case domain.OutcomeLoss:
				overview.Losses++
			default:
				overview.Ties++
			}
		}
		offset += len(wars)
		if offset >= total || len(wars) == 0 {
			break
		}
	}

	if overview.TotalWars > 0 {
		overview.AverageScore = float64(teamScoreSum) / float64(overview.TotalWars)
	}

	players, err := s.rosterRepo.List(ctx, guildID, false)
	if err != nil {
		return nil, err
	}
	overview.ActivePlayers = len(players)

	best := 0.0
	for _, p := range players {
		if p.WarCount > 0 && p.AverageScore > best {
			best = p.AverageScore
			overview.TopPlayer = p.Name
		}
	}
	return overview, nil
}

// PlayerStats: 플레이어 1명의 집계를 반환합니다. lastXWars > 0이면 최근 N개 전적으로
// 재계산한 집계를 돌려주며, 전적별 참가 기록은 반환하지 않는다.
func (s *Service) PlayerStats(ctx context.Context, guildID int64, name string, lastXWars int) (*Entry, error) {
	p, err := s.rosterRepo.GetByName(ctx, guildID, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NewValidationError("unknown player", "name")
	}

	if lastXWars > 0 {
		entries, err := s.recomputeFromRecent(ctx, guildID, []*domain.Player{p}, lastXWars)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			e := entryOf(p)
			e.TotalScore, e.TotalRaces, e.WarCount, e.AverageScore, e.TotalTeamDifferential = 0, 0, 0, 0, 0
			return &e, nil
		}
		return &entries[0], nil
	}

	e := entryOf(p)
	return &e, nil
}
