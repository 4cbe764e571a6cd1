package war

import (
	"testing"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

func TestValidateRaceCountBoundaries(t *testing.T) {
	for _, valid := range []int{1, 12, 24} {
		if err := ValidateRaceCount(valid); err != nil {
			t.Fatalf("race count %d must be accepted: %v", valid, err)
		}
	}
	for _, invalid := range []int{0, -1, 25} {
		if err := ValidateRaceCount(invalid); err == nil {
			t.Fatalf("race count %d must be rejected", invalid)
		}
	}
}

func TestValidatePlayers(t *testing.T) {
	if err := validatePlayers(nil, 12); err == nil {
		t.Fatalf("empty player set must be rejected")
	}

	dup := []domain.WarPlayer{
		{Name: "Alpha", Score: 90, RacesPlayed: 12},
		{Name: "alpha", Score: 80, RacesPlayed: 12},
	}
	if err := validatePlayers(dup, 12); err == nil {
		t.Fatalf("case-insensitive duplicate names must be rejected")
	}

	overRaces := []domain.WarPlayer{{Name: "Alpha", Score: 90, RacesPlayed: 13}}
	if err := validatePlayers(overRaces, 12); err == nil {
		t.Fatalf("races_played above race_count must be rejected")
	}

	ok := []domain.WarPlayer{{Name: "Alpha", Score: 90, RacesPlayed: 6}}
	if err := validatePlayers(ok, 12); err != nil {
		t.Fatalf("valid players rejected: %v", err)
	}
}

func TestNormalizeRacesDefaultsToRaceCount(t *testing.T) {
	players := normalizeRaces([]domain.WarPlayer{{Name: "Alpha", Score: 90}}, 12)
	if players[0].RacesPlayed != 12 {
		t.Fatalf("expected default races 12, got %+v", players[0])
	}
}

func TestIsDuplicateWar(t *testing.T) {
	last := []domain.WarPlayer{
		{Name: "Alpha", Score: 95},
		{Name: "Beta", Score: 80},
	}

	same := []domain.WarPlayer{
		{Name: " beta ", Score: 80},
		{Name: "ALPHA", Score: 95},
	}
	if !isDuplicateWar(same, last) {
		t.Fatalf("normalized identical wars must be detected")
	}

	differentScore := []domain.WarPlayer{
		{Name: "Alpha", Score: 94},
		{Name: "Beta", Score: 80},
	}
	if isDuplicateWar(differentScore, last) {
		t.Fatalf("different scores must not be duplicates")
	}

	if isDuplicateWar(nil, last) {
		t.Fatalf("empty submission is never a duplicate")
	}
}

func TestRound2AddRemoveIsInverse(t *testing.T) {
	// add_war 후 remove_war가 war_count를 원상복구하는 성질의 산술 핵심.
	cases := []struct {
		base     float64
		races    int
		raceCnt  int
	}{
		{0, 12, 12},
		{4.0, 12, 12},
		{2.5, 6, 12},
		{3.33, 4, 12},
		{1.25, 3, 12},
	}
	for _, tc := range cases {
		frac := float64(tc.races) / float64(tc.raceCnt)
		added := round2(tc.base + frac)
		restored := round2(added - frac)
		if restored != tc.base {
			t.Fatalf("round2 inverse failed: base=%v races=%d got=%v", tc.base, tc.races, restored)
		}
	}
}
