package domain

import "testing"

func TestTeamDifferential(t *testing.T) {
	players := []WarPlayer{
		{Name: "Alpha", Score: 95, RacesPlayed: 12},
		{Name: "Beta", Score: 80, RacesPlayed: 12},
		{Name: "Gamma", Score: 70, RacesPlayed: 12},
	}

	if score := TeamScoreOf(players); score != 245 {
		t.Fatalf("expected team score 245, got %d", score)
	}

	// 245 − 41·12·3 = −1231
	diff := TeamDifferentialOf(players, 12, 41)
	if diff != -1231 {
		t.Fatalf("expected differential -1231, got %d", diff)
	}
	if OutcomeOf(diff) != OutcomeLoss {
		t.Fatalf("negative differential must be a loss")
	}
}

func TestOutcomeOf(t *testing.T) {
	if OutcomeOf(1) != OutcomeWin {
		t.Fatalf("positive must win")
	}
	if OutcomeOf(-1) != OutcomeLoss {
		t.Fatalf("negative must lose")
	}
	if OutcomeOf(0) != OutcomeTie {
		t.Fatalf("zero must tie")
	}
}

func TestEffectivePlayers(t *testing.T) {
	detected := []DetectedPlayer{{Name: "Alpha", Score: 90}}
	corrected := []DetectedPlayer{{Name: "Alpha", Score: 95}}

	r := &BulkResult{DetectedPlayers: detected}
	if got := r.EffectivePlayers(); got[0].Score != 90 {
		t.Fatalf("expected detected set, got %+v", got)
	}

	r.CorrectedPlayers = corrected
	if got := r.EffectivePlayers(); got[0].Score != 95 {
		t.Fatalf("corrected set must supersede detected, got %+v", got)
	}
}

func TestLongestAliasLength(t *testing.T) {
	p := &Player{Name: "Bo", Nicknames: []string{"Ace", "Benedict"}}
	if got := p.LongestAliasLength(); got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}
