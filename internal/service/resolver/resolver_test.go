package resolver

import (
	"testing"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

func rosterOf(players ...*domain.Player) []*domain.Player {
	return players
}

func TestResolveExactCanonical(t *testing.T) {
	roster := rosterOf(
		&domain.Player{Name: "Alpha"},
		&domain.Player{Name: "Beta"},
	)

	name, ok := Resolve("alpha", roster)
	if !ok || name != "Alpha" {
		t.Fatalf("expected Alpha, got (%q, %t)", name, ok)
	}
}

func TestResolveNickname(t *testing.T) {
	roster := rosterOf(
		&domain.Player{Name: "Alpha", Nicknames: []string{"Alph"}},
		&domain.Player{Name: "Beta"},
	)

	name, ok := Resolve("ALPH", roster)
	if !ok || name != "Alpha" {
		t.Fatalf("expected Alpha via nickname, got (%q, %t)", name, ok)
	}
}

func TestResolveNicknameAmbiguityByLength(t *testing.T) {
	// 같은 닉네임을 두 명이 가지면 본명/닉네임이 가장 긴 쪽이 이긴다.
	roster := rosterOf(
		&domain.Player{Name: "Bo", Nicknames: []string{"Ace"}},
		&domain.Player{Name: "Benedict", Nicknames: []string{"Ace"}},
	)

	name, ok := Resolve("ace", roster)
	if !ok || name != "Benedict" {
		t.Fatalf("expected Benedict by longest alias, got (%q, %t)", name, ok)
	}
}

func TestResolveNicknameAmbiguityLexicographicTiebreak(t *testing.T) {
	roster := rosterOf(
		&domain.Player{Name: "Zed", Nicknames: []string{"Ace"}},
		&domain.Player{Name: "Ann", Nicknames: []string{"Ace"}},
	)

	name, ok := Resolve("ace", roster)
	if !ok || name != "Ann" {
		t.Fatalf("expected Ann by lexicographic tiebreak, got (%q, %t)", name, ok)
	}
}

func TestResolveFuzzyConfusables(t *testing.T) {
	roster := rosterOf(
		&domain.Player{Name: "Willow"},
		&domain.Player{Name: "Beta"},
	)

	// Wi11ow: 혼동 문자 접기 후 편집 거리 0
	name, ok := Resolve("Wi11ow", roster)
	if !ok || name != "Willow" {
		t.Fatalf("expected Willow via fuzzy, got (%q, %t)", name, ok)
	}
}

func TestResolveFuzzyDistanceCap(t *testing.T) {
	roster := rosterOf(&domain.Player{Name: "Willow"})

	// 거리 한도: ⌊len/4⌋와 절대 2 중 작은 값. "Wxyzlow"는 탈락해야 한다.
	if name, ok := Resolve("Wxyzlow", roster); ok {
		t.Fatalf("expected miss, got %q", name)
	}
}

func TestResolveFuzzyAmbiguityFallsThrough(t *testing.T) {
	// 두 후보가 모두 한도 안이면 해석하지 않는다.
	roster := rosterOf(
		&domain.Player{Name: "Carl"},
		&domain.Player{Name: "Carla"},
	)

	// "Carlz"(5자, 한도 1): Carl(거리 1), Carla(거리 1) 둘 다 적중 → miss
	name, ok := Resolve("Carlz", roster)
	if ok {
		t.Fatalf("expected ambiguity miss, got %q", name)
	}
	if name != "Carlz" {
		t.Fatalf("miss must return the raw string, got %q", name)
	}
}

func TestResolveMiss(t *testing.T) {
	roster := rosterOf(&domain.Player{Name: "Alpha"})

	name, ok := Resolve("Stranger", roster)
	if ok || name != "Stranger" {
		t.Fatalf("expected miss with raw string, got (%q, %t)", name, ok)
	}
}

func TestResolveShortStringNoFuzzy(t *testing.T) {
	// 3자 이하(⌊3/4⌋=0)는 접기 후 완전 일치만 허용된다.
	roster := rosterOf(&domain.Player{Name: "rx"})

	if name, ok := Resolve("ry", roster); ok {
		t.Fatalf("expected miss for short edit, got %q", name)
	}
	if name, ok := Resolve("RX", roster); !ok || name != "rx" {
		t.Fatalf("expected exact hit, got (%q, %t)", name, ok)
	}
}
