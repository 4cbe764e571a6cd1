package command

import (
	"testing"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

func TestParsePlayerScores(t *testing.T) {
	players, err := ParsePlayerScores("Alpha:95, Beta:80 ,Gamma:70")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(players) != 3 {
		t.Fatalf("expected 3 players, got %+v", players)
	}
	if players[0].Name != "Alpha" || players[0].Score != 95 {
		t.Fatalf("unexpected first entry: %+v", players[0])
	}
	if players[2].Name != "Gamma" || players[2].Score != 70 {
		t.Fatalf("unexpected last entry: %+v", players[2])
	}
}

func TestParsePlayerScoresRoundTrip(t *testing.T) {
	input := "Alpha:95,Beta:80,Gamma:70"
	players, err := ParsePlayerScores(input)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if got := RenderPlayerScores(players); got != input {
		t.Fatalf("round trip mismatch: %q != %q", got, input)
	}
}

func TestParsePlayerScoresColonInName(t *testing.T) {
	// 콜론이 이름에 들어가면 마지막 콜론을 구분자로 쓴다.
	players, err := ParsePlayerScores("A:B:50")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if players[0].Name != "A:B" || players[0].Score != 50 {
		t.Fatalf("unexpected entry: %+v", players[0])
	}
}

func TestParsePlayerScoresRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"Alpha",
		"Alpha:",
		":95",
		"Alpha:abc",
		"Alpha:1000",
		"Alpha:-1",
	}
	for _, input := range cases {
		if players, err := ParsePlayerScores(input); err == nil {
			t.Fatalf("expected error for %q, got %+v", input, players)
		}
	}
}

func TestParsePlayerScoresBoundaries(t *testing.T) {
	players, err := ParsePlayerScores("Low:0,High:999")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if players[0].Score != 0 || players[1].Score != 999 {
		t.Fatalf("boundary scores mishandled: %+v", players)
	}
}

func TestRenderPlayerScoresEmpty(t *testing.T) {
	if got := RenderPlayerScores([]domain.WarPlayer{}); got != "" {
		t.Fatalf("expected empty render, got %q", got)
	}
}
