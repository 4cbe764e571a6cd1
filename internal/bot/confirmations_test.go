package bot

import (
	"testing"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

func TestConfirmationsPutTake(t *testing.T) {
	confirms := NewConfirmations()
	players := []domain.WarPlayer{{Name: "Alpha", Score: 95, RacesPlayed: 12}}

	confirms.Put(1, "chan", players, 12)

	got, raceCount, ok := confirms.Take(1, "chan")
	if !ok || raceCount != 12 || len(got) != 1 || got[0].Name != "Alpha" {
		t.Fatalf("unexpected take: %+v %d %t", got, raceCount, ok)
	}

	// Take는 대기 건을 소모한다.
	if _, _, ok := confirms.Take(1, "chan"); ok {
		t.Fatalf("second take must be empty")
	}
}

func TestConfirmationsReplaced(t *testing.T) {
	confirms := NewConfirmations()
	confirms.Put(1, "chan", []domain.WarPlayer{{Name: "Old", Score: 1, RacesPlayed: 12}}, 12)
	confirms.Put(1, "chan", []domain.WarPlayer{{Name: "New", Score: 2, RacesPlayed: 12}}, 12)

	got, _, ok := confirms.Take(1, "chan")
	if !ok || got[0].Name != "New" {
		t.Fatalf("newer scan must replace older: %+v", got)
	}
}

func TestConfirmationsExpire(t *testing.T) {
	confirms := NewConfirmations()
	confirms.pending[bufferKey(1, "chan")] = pendingWar{
		players:   []domain.WarPlayer{{Name: "Alpha", Score: 95}},
		raceCount: 12,
		createdAt: time.Now().Add(-confirmationTTL - time.Minute),
	}

	if _, _, ok := confirms.Take(1, "chan"); ok {
		t.Fatalf("expired confirmation must not be returned")
	}
}

func TestConfirmationsGuildIsolation(t *testing.T) {
	confirms := NewConfirmations()
	confirms.Put(1, "chan", []domain.WarPlayer{{Name: "Alpha", Score: 95}}, 12)

	if _, _, ok := confirms.Take(2, "chan"); ok {
		t.Fatalf("confirmation leaked across guilds")
	}
}

func TestImageBufferEviction(t *testing.T) {
	buffer := NewImageBuffer(3)
	for i := 0; i < 5; i++ {
		buffer.Add(&domain.ImageEvent{GuildID: 1, ChannelID: "chan", Filename: string(rune('a' + i))})
	}

	recent := buffer.Recent(1, "chan", 10)
	if len(recent) != 3 {
		t.Fatalf("expected 3 buffered events, got %d", len(recent))
	}
	if recent[0].Filename != "c" || recent[2].Filename != "e" {
		t.Fatalf("unexpected eviction order: %+v", recent)
	}
}

func TestImageBufferChannelIsolation(t *testing.T) {
	buffer := NewImageBuffer(10)
	buffer.Add(&domain.ImageEvent{GuildID: 1, ChannelID: "a", Filename: "one"})
	buffer.Add(&domain.ImageEvent{GuildID: 1, ChannelID: "b", Filename: "two"})

	if got := buffer.Recent(1, "a", 10); len(got) != 1 || got[0].Filename != "one" {
		t.Fatalf("channel isolation broken: %+v", got)
	}
}
