package domain

import "time"

// CommandContext: 채팅 플랫폼에서 수신한 명령 1건의 실행 맥락.
type CommandContext struct {
	GuildID   int64
	ChannelID string
	UserID    int64
	Timestamp time.Time
}

// ImageEvent: OCR 채널에 게시된 이미지 첨부 이벤트.
// 이미지 바이트는 저장하지 않고 처리 후 버린다 (URL만 기록에 남는다).
type ImageEvent struct {
	GuildID   int64
	ChannelID string
	UserID    int64
	Filename  string
	URL       string
	Bytes     []byte
	Timestamp time.Time
}
