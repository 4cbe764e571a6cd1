// Package chat: 채팅 플랫폼 연동 경계.
// 플랫폼 자체(메시지 수신, 슬래시 명령 디스패치, 첨부 파일)는 범위 밖이며,
// 게이트웨이가 Valkey 스트림으로 넘겨주는 이벤트와 전송 인터페이스만 다룬다.
package chat

import (
	"context"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
)

// Client: 채팅 플랫폼으로 응답을 보내는 전송 인터페이스.
type Client interface {
	// SendMessage: 채널로 텍스트 메시지를 전송합니다.
	SendMessage(ctx context.Context, channelID, message string) error
	// Ping: 게이트웨이 연결 상태를 점검합니다.
	Ping(ctx context.Context) bool
}

// EventHandler: 게이트웨이에서 수신한 이벤트의 처리기. 봇 워커가 구현한다.
type EventHandler interface {
	// HandleCommand: 슬래시 명령 1건을 처리합니다. raw는 명령 이름 뒤의 인자 원문이다.
	HandleCommand(ctx context.Context, cmdCtx *domain.CommandContext, name, raw string)
	// HandleImage: OCR 채널의 이미지 첨부 이벤트를 처리합니다.
	HandleImage(ctx context.Context, event *domain.ImageEvent)
}
