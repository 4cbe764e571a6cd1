package stats

import "testing"

func TestParseSortKey(t *testing.T) {
	cases := map[string]SortKey{
		"":                        SortAverageScore,
		"average_score":           SortAverageScore,
		"total_score":             SortTotalScore,
		"war_count":               SortWarCount,
		"total_team_differential": SortDifferential,
		"  WAR_COUNT ":            SortWarCount,
	}
	for input, want := range cases {
		got, err := ParseSortKey(input)
		if err != nil || got != want {
			t.Fatalf("ParseSortKey(%q) = (%q, %v), want %q", input, got, err, want)
		}
	}

	if _, err := ParseSortKey("elo"); err == nil {
		t.Fatalf("unknown sort key must be rejected")
	}
}

func TestSortEntries(t *testing.T) {
	entries := []Entry{
		{Name: "B", AverageScore: 80, TotalScore: 400, WarCount: 5, TotalTeamDifferential: -10},
		{Name: "A", AverageScore: 95, TotalScore: 300, WarCount: 3, TotalTeamDifferential: 20},
		{Name: "C", AverageScore: 80, TotalScore: 500, WarCount: 7, TotalTeamDifferential: 5},
	}

	sortEntries(entries, SortAverageScore)
	if entries[0].Name != "A" {
		t.Fatalf("average sort failed: %+v", entries)
	}
	// 동률은 이름순이다.
	if entries[1].Name != "B" || entries[2].Name != "C" {
		t.Fatalf("tiebreak failed: %+v", entries)
	}

	sortEntries(entries, SortTotalScore)
	if entries[0].Name != "C" {
		t.Fatalf("total score sort failed: %+v", entries)
	}

	sortEntries(entries, SortWarCount)
	if entries[0].Name != "C" || entries[2].Name != "A" {
		t.Fatalf("war count sort failed: %+v", entries)
	}

	sortEntries(entries, SortDifferential)
	if entries[0].Name != "A" {
		t.Fatalf("differential sort failed: %+v", entries)
	}
}
