package bot

import (
	"sync"
	"time"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// 승인 대기 건의 수명. 지나면 confirmwar가 빈손으로 돌아간다.
const confirmationTTL = 10 * time.Minute

type pendingWar struct {
	players   []domain.WarPlayer
	raceCount int
	createdAt time.Time
}

// Confirmations: 단건 스캔의 대화형 승인 대기 상태 저장소.
// 채널당 한 건만 유지되며, 새 스캔이 기존 대기 건을 대체한다.
type Confirmations struct {
	mu      sync.Mutex
	pending map[string]pendingWar
}

// NewConfirmations: 새로운 승인 대기 저장소를 생성합니다.
func NewConfirmations() *Confirmations {
	return &Confirmations{
		pending: make(map[string]pendingWar),
	}
}

// Put: 채널의 승인 대기 전적을 저장합니다. 기존 대기 건은 대체된다.
func (c *Confirmations) Put(guildID int64, channelID string, players []domain.WarPlayer, raceCount int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[bufferKey(guildID, channelID)] = pendingWar{
		players:   players,
		raceCount: raceCount,
		createdAt: time.Now(),
	}
}

// Take: 채널의 승인 대기 전적을 꺼내고 제거합니다. 만료된 건은 없는 것으로 본다.
func (c *Confirmations) Take(guildID int64, channelID string) ([]domain.WarPlayer, int, bool) {
	key := bufferKey(guildID, channelID)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.pending[key]
	if !ok {
		return nil, 0, false
	}
	delete(c.pending, key)

	if time.Since(entry.createdAt) > confirmationTTL {
		return nil, 0, false
	}
	return entry.players, entry.raceCount, true
}
