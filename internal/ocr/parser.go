package ocr

import (
	"sort"
	"strconv"
	"strings"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

// ResolveFunc: 파서가 이름 토큰을 로스터 정식 이름으로 해석할 때 쓰는 콜백.
// (canonical_name, is_roster_member)를 반환한다.
type ResolveFunc func(raw string) (string, bool)

// scoreConfusables: 점수 토큰에서 OCR이 문자로 잘못 읽은 숫자를 복원한다.
var scoreConfusables = strings.NewReplacer(
	"O", "0", "o", "0",
	"l", "1", "I", "1", "i", "1",
	"S", "5", "s", "5",
	"B", "8",
	"Z", "2", "z", "2",
)

// ParseResults: OCR 텍스트 박스들을 전적 결과 화면의 (이름, 점수) 행으로 변환한다.
// 박스를 읽기 순서(위→아래, 왼→오른쪽)로 정렬한 뒤, 이름 토큰과 그 뒤에 오는
// 가장 가까운 점수 토큰을 짝짓는다. 로스터에 없는 이름도 raw 그대로 유지한다.
func ParseResults(boxes []TextBox, raceCount int, resolve ResolveFunc) []domain.DetectedPlayer {
	if raceCount <= 0 {
		raceCount = constants.ScoringConfig.DefaultRaceCount
	}

	tokens := tokenize(boxes)

	players := make([]domain.DetectedPlayer, 0, 12)
	var pendingName string

	flush := func(score int, ok bool) {
		if pendingName == "" {
			return
		}
		if !ok {
			pendingName = ""
			return
		}
		name, isMember := pendingName, false
		if resolve != nil {
			name, isMember = resolve(pendingName)
		}
		players = append(players, domain.DetectedPlayer{
			Name:           name,
			Score:          score,
			RawName:        pendingName,
			IsRosterMember: isMember,
			RacesPlayed:    raceCount,
		})
		pendingName = ""
	}

	for _, tok := range tokens {
		if score, ok := extractScore(tok); ok {
			flush(score, true)
			continue
		}

		// 이름 토큰이 연달아 오면 앞의 이름은 점수 없는 행으로 버린다.
		if pendingName != "" {
			flush(0, false)
		}
		pendingName = tok
	}

	return players
}

// tokenize: 박스를 행 우선으로 정렬하고, 한 박스 안에 "이름 점수"가 함께
// 들어 있는 경우를 분리한다.
func tokenize(boxes []TextBox) []string {
	sorted := make([]TextBox, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		// 같은 행(세로로 겹치는 박스)은 왼쪽부터 읽는다.
		if overlapsVertically(sorted[i].Box, sorted[j].Box) {
			return sorted[i].Box.X < sorted[j].Box.X
		}
		return sorted[i].Box.Y < sorted[j].Box.Y
	})

	tokens := make([]string, 0, len(sorted)*2)
	for _, b := range sorted {
		for _, field := range strings.Fields(b.Text) {
			if trimmed := util.TrimSpace(field); trimmed != "" {
				tokens = append(tokens, trimmed)
			}
		}
	}
	return tokens
}

func overlapsVertically(a, b Box) bool {
	aTop, aBottom := a.Y, a.Y+a.Height
	bTop, bBottom := b.Y, b.Y+b.Height
	return aTop < bBottom && bTop < aBottom
}

// extractScore: 토큰이 점수(0..999)인지 판별한다. 순수 숫자가 아니면
// 혼동 문자 복원을 시도하고, 그래도 숫자가 아니면 점수가 아니다.
func extractScore(tok string) (int, bool) {
	if v, err := strconv.Atoi(tok); err == nil {
		if v >= constants.ScoringConfig.MinScore && v <= constants.ScoringConfig.MaxScore {
			return v, true
		}
		return 0, false
	}

	// 숫자와 혼동 문자만으로 구성된 토큰만 복원 대상으로 본다.
	if len(tok) > 3 || !mostlyNumeric(tok) {
		return 0, false
	}
	repaired := scoreConfusables.Replace(tok)
	v, err := strconv.Atoi(repaired)
	if err != nil || v < constants.ScoringConfig.MinScore || v > constants.ScoringConfig.MaxScore {
		return 0, false
	}
	return v, true
}

// mostlyNumeric: 토큰의 절반 이상이 숫자면 true. "Wi11ow" 같은 이름이
// 점수로 오인되는 것을 막는다.
func mostlyNumeric(tok string) bool {
	digits := 0
	for _, r := range tok {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits*2 >= len([]rune(tok))
}
