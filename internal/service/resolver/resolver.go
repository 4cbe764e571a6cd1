// Package resolver: OCR이 추출한 이름 토큰을 길드 로스터의 정식 이름으로
// 해석한다. 정확 일치 → 닉네임 → 퍼지 매칭 순서로 시도하며, 로스터
// 스냅샷이 주어지면 순수 함수로 동작하므로 동시 호출에 안전하다.
package resolver

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

// 퍼지 매칭 허용 편집 거리의 절대 상한.
const maxFuzzyDistance = 2

// Resolve: 원시 문자열을 로스터 스냅샷에 대해 해석한다.
// (정식 이름, 로스터 멤버 여부)를 반환하며, 실패 시 원문 그대로 (s, false)다.
func Resolve(raw string, players []*domain.Player) (string, bool) {
	s := util.TrimSpace(raw)
	if s == "" {
		return raw, false
	}

	// Strategy 1: 정식 이름 정확 일치 (대소문자 무시)
	for _, p := range players {
		if strings.EqualFold(s, p.Name) {
			return p.Name, true
		}
	}

	// Strategy 2: 닉네임 일치 (대소문자 무시)
	if name, ok := resolveNickname(s, players); ok {
		return name, true
	}

	// Strategy 3: 혼동 문자 접기 + 편집 거리 퍼지 매칭
	if name, ok := resolveFuzzy(s, players); ok {
		return name, true
	}

	return s, false
}

// resolveNickname: 닉네임 보유 플레이어를 찾는다. 여러 명이면 본명/닉네임 중
// 가장 긴 길이 기준, 동률이면 정식 이름 사전순으로 해소한다.
func resolveNickname(s string, players []*domain.Player) (string, bool) {
	var candidates []*domain.Player
	for _, p := range players {
		if p.HasNickname(s) {
			candidates = append(candidates, p)
		}
	}

	switch len(candidates) {
	case 0:
		return "", false
	case 1:
		return candidates[0].Name, true
	}

	sort.Slice(candidates, func(i, j int) bool {
		li, lj := candidates[i].LongestAliasLength(), candidates[j].LongestAliasLength()
		if li != lj {
			return li > lj
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0].Name, true
}

// resolveFuzzy: 소문자화 + 혼동 문자 접기 후 편집 거리가
// ⌊len(s)/4⌋ 이하(절대 상한 2)인 후보를 찾는다. 정확히 한 명일 때만 성공한다.
func resolveFuzzy(s string, players []*domain.Player) (string, bool) {
	threshold := len([]rune(s)) / 4
	if threshold > maxFuzzyDistance {
		threshold = maxFuzzyDistance
	}

	folded := util.FoldConfusables(s)

	var matched *domain.Player
	for _, p := range players {
		if fuzzyHit(folded, p, threshold) {
			if matched != nil && matched != p {
				return "", false // 후보가 둘 이상이면 해석하지 않는다
			}
			matched = p
		}
	}

	if matched == nil {
		return "", false
	}
	return matched.Name, true
}

func fuzzyHit(folded string, p *domain.Player, threshold int) bool {
	if util.LevenshteinDistance(folded, util.FoldConfusables(p.Name)) <= threshold {
		return true
	}
	for _, nick := range p.Nicknames {
		if util.LevenshteinDistance(folded, util.FoldConfusables(nick)) <= threshold {
			return true
		}
	}
	return false
}

// RosterProvider: 길드 로스터 스냅샷을 제공하는 인터페이스. (로스터 캐시가 구현)
type RosterProvider interface {
	Snapshot(ctx context.Context, guildID int64) ([]*domain.Player, error)
}

// Service: 로스터 조회가 결합된 이름 해석 서비스.
type Service struct {
	roster RosterProvider
	logger *slog.Logger
}

// NewService: 새로운 해석 서비스를 생성합니다.
func NewService(roster RosterProvider, logger *slog.Logger) *Service {
	return &Service{roster: roster, logger: logger}
}

// ResolveName: 길드 로스터를 읽어 이름 1개를 해석합니다.
func (s *Service) ResolveName(ctx context.Context, guildID int64, raw string) (string, bool, error) {
	players, err := s.roster.Snapshot(ctx, guildID)
	if err != nil {
		return raw, false, err
	}
	name, ok := Resolve(raw, players)
	return name, ok, nil
}

// ResolveAll: 추출된 플레이어 행들의 이름을 일괄 해석해 갱신한다.
// 스냅샷은 한 번만 읽는다.
func (s *Service) ResolveAll(ctx context.Context, guildID int64, detected []domain.DetectedPlayer) ([]domain.DetectedPlayer, error) {
	players, err := s.roster.Snapshot(ctx, guildID)
	if err != nil {
		return detected, err
	}

	out := make([]domain.DetectedPlayer, len(detected))
	for i, d := range detected {
		raw := d.RawName
		if raw == "" {
			raw = d.Name
		}
		name, ok := Resolve(raw, players)
		d.Name = name
		d.RawName = raw
		d.IsRosterMember = ok
		out[i] = d
	}
	return out, nil
}

// ResolverFor: 파서에 넘길 수 있는 콜백 형태로, 스냅샷을 캡처한 해석 함수를 만든다.
func (s *Service) ResolverFor(ctx context.Context, guildID int64) (func(string) (string, bool), error) {
	players, err := s.roster.Snapshot(ctx, guildID)
	if err != nil {
		return nil, err
	}
	return func(raw string) (string, bool) {
		return Resolve(raw, players)
	}, nil
}
