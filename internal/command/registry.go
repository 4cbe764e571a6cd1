package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kapu/mkw-stats-bot-go/internal/domain"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

// ErrUnknownCommand: 등록되지 않은 명령어를 호출했을 때 발생하는 오류
var ErrUnknownCommand = errors.New("unknown command")

// Registry: 봇의 모든 명령어 핸들러를 등록하고 관리하며, 이름 기반 조회 및 실행을 담당하는 레지스트리
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Command
}

// NewRegistry: 새로운 명령어 레지스트리 인스턴스를 생성합니다.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Command),
	}
}

// Register: 새로운 명령어 핸들러를 레지스트리에 등록한다. (이름 정규화 적용)
func (r *Registry) Register(handler Command) {
	if handler == nil {
		return
	}

	name := util.Normalize(handler.Name())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// Execute: 주어진 키(명령어 이름)에 해당하는 핸들러를 찾아 명령을 실행한다. (스레드 안전)
func (r *Registry) Execute(ctx context.Context, cmdCtx *domain.CommandContext, key, raw string) error {
	if r == nil {
		return fmt.Errorf("command registry is nil")
	}

	handler := r.getHandler(key)
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, key)
	}

	if err := handler.Execute(ctx, cmdCtx, raw); err != nil {
		return fmt.Errorf("failed to execute command %s: %w", key, err)
	}
	return nil
}

// Count: 현재 등록된 명령어의 총 개수를 반환합니다.
func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// List: 등록된 명령어들을 이름순으로 반환합니다. (help 출력용)
func (r *Registry) List() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) getHandler(key string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if key == "" {
		return nil
	}
	if handler, ok := r.handlers[util.Normalize(key)]; ok {
		return handler
	}
	return nil
}

// RegisterAll: 모든 명령어 핸들러를 의존성과 함께 레지스트리에 등록한다.
func RegisterAll(registry *Registry, deps *Dependencies) {
	handlers := []Command{
		// 길드 관리
		&SetupCommand{deps},
		&SetChannelCommand{deps},
		&CheckPermissionsCommand{deps},
		&HelpCommand{deps: deps, registry: registry},
		// 전적
		&AddWarCommand{deps},
		&AppendPlayerToWarCommand{deps},
		&RemoveWarCommand{deps},
		&ShowAllWarsCommand{deps},
		&ConfirmWarCommand{deps},
		&CancelWarCommand{deps},
		// 로스터
		&AddPlayerCommand{deps},
		&RemovePlayerCommand{deps},
		&SetMemberStatusCommand{deps},
		&RosterCommand{deps},
		&ShowTrialsCommand{deps},
		&ShowKickedCommand{deps},
		// 팀
		&AddTeamCommand{deps},
		&RemoveTeamCommand{deps},
		&RenameTeamCommand{deps},
		&AssignPlayersCommand{deps},
		&UnassignPlayerCommand{deps},
		&ShowAllTeamsCommand{deps},
		&ShowTeamRosterCommand{deps},
		// 닉네임
		&AddNicknameCommand{deps},
		&RemoveNicknameCommand{deps},
		&NicknamesForCommand{deps},
		// 통계
		&StatsCommand{deps},
		// 스캔
		&ScanImageCommand{deps},
		&BulkScanImageCommand{deps},
		&DebugOCRCommand{deps},
	}
	for _, h := range handlers {
		registry.Register(h)
	}
}
