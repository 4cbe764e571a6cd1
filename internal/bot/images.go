package bot

import (
	"strconv"
	"sync"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// ImageBuffer: 채널별로 최근 관측한 이미지 이벤트를 보관하는 링.
// 플랫폼 히스토리 조회가 범위 밖이므로, 스캔 명령은 봇이 직접 관측한
// 이미지들에 대해서만 동작한다. 이미지 바이트는 버퍼에서 밀려나면 버려진다.
type ImageBuffer struct {
	mu     sync.Mutex
	byChan map[string][]*domain.ImageEvent
	limit  int
}

// NewImageBuffer: 채널당 최대 limit개를 보관하는 버퍼를 생성한다. 0이면 기본 100.
func NewImageBuffer(limit int) *ImageBuffer {
	if limit <= 0 {
		limit = constants.BulkConfig.MaxImagesPerScan
	}
	return &ImageBuffer{
		byChan: make(map[string][]*domain.ImageEvent),
		limit:  limit,
	}
}

func bufferKey(guildID int64, channelID string) string {
	return channelID + "@" + strconv.FormatInt(guildID, 10)
}

// Add: 이미지 이벤트를 버퍼에 추가합니다. 가득 차면 가장 오래된 것을 버린다.
func (b *ImageBuffer) Add(event *domain.ImageEvent) {
	key := bufferKey(event.GuildID, event.ChannelID)

	b.mu.Lock()
	defer b.mu.Unlock()

	events := append(b.byChan[key], event)
	if len(events) > b.limit {
		events = events[len(events)-b.limit:]
	}
	b.byChan[key] = events
}

// Recent: 채널에서 최근 관측한 이미지들을 오래된 것부터 최대 limit개 반환합니다.
func (b *ImageBuffer) Recent(guildID int64, channelID string, limit int) []*domain.ImageEvent {
	key := bufferKey(guildID, channelID)

	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.byChan[key]
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]*domain.ImageEvent, len(events))
	copy(out, events)
	return out
}
