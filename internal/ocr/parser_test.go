package ocr

import (
	"strings"
	"testing"
)

func box(text string, y int) TextBox {
	return TextBox{Text: text, Box: Box{X: 0, Y: y, Width: 100, Height: 10}, Confidence: 0.9}
}

func rosterResolve(raw string) (string, bool) {
	known := map[string]string{
		"alpha": "Alpha",
		"beta":  "Beta",
		"gamma": "Gamma",
	}
	if name, ok := known[strings.ToLower(raw)]; ok {
		return name, true
	}
	return raw, false
}

func TestParseResultsPairsNamesAndScores(t *testing.T) {
	boxes := []TextBox{
		box("Alpha", 10),
		box("95", 10),
		box("Beta", 20),
		box("80", 20),
		box("Gamma", 30),
		box("70", 30),
	}

	players := ParseResults(boxes, 12, rosterResolve)
	if len(players) != 3 {
		t.Fatalf("expected 3 players, got %d: %+v", len(players), players)
	}

	total := 0
	for _, p := range players {
		total += p.Score
		if !p.IsRosterMember {
			t.Fatalf("expected roster member: %+v", p)
		}
		if p.RacesPlayed != 12 {
			t.Fatalf("races_played should default to race count: %+v", p)
		}
	}
	if total != 245 {
		t.Fatalf("expected total 245, got %d", total)
	}
}

func TestParseResultsCombinedBox(t *testing.T) {
	boxes := []TextBox{
		box("Alpha 95", 10),
		box("Beta 80", 20),
	}

	players := ParseResults(boxes, 12, rosterResolve)
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %+v", players)
	}
	if players[0].Name != "Alpha" || players[0].Score != 95 {
		t.Fatalf("unexpected first row: %+v", players[0])
	}
}

func TestParseResultsRepairsCorruptedScore(t *testing.T) {
	// "8S"는 85로 복원된다.
	boxes := []TextBox{
		box("Alpha", 10),
		box("8S", 10),
	}

	players := ParseResults(boxes, 12, rosterResolve)
	if len(players) != 1 || players[0].Score != 85 {
		t.Fatalf("expected repaired score 85, got %+v", players)
	}
}

func TestParseResultsKeepsUnknownNamesRaw(t *testing.T) {
	boxes := []TextBox{
		box("Stranger", 10),
		box("60", 10),
	}

	players := ParseResults(boxes, 12, rosterResolve)
	if len(players) != 1 {
		t.Fatalf("expected 1 player, got %+v", players)
	}
	if players[0].IsRosterMember || players[0].Name != "Stranger" {
		t.Fatalf("unknown name must stay raw: %+v", players[0])
	}
}

func TestParseResultsNameIsNotMistakenForScore(t *testing.T) {
	// "Wi11ow"는 숫자가 과반이 아니므로 점수로 오인되지 않는다.
	boxes := []TextBox{
		box("Wi11ow", 10),
		box("85", 10),
	}

	players := ParseResults(boxes, 12, rosterResolve)
	if len(players) != 1 || players[0].RawName != "Wi11ow" || players[0].Score != 85 {
		t.Fatalf("unexpected parse: %+v", players)
	}
}

func TestParseResultsDropsNameWithoutScore(t *testing.T) {
	boxes := []TextBox{
		box("Alpha", 10),
		box("Beta", 20),
		box("80", 20),
	}

	players := ParseResults(boxes, 12, rosterResolve)
	if len(players) != 1 || players[0].Name != "Beta" {
		t.Fatalf("expected only Beta, got %+v", players)
	}
}

func TestParseResultsEmpty(t *testing.T) {
	if players := ParseResults(nil, 12, rosterResolve); len(players) != 0 {
		t.Fatalf("expected no players, got %+v", players)
	}
}
