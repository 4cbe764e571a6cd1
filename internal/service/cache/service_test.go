package cache

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/valkey-io/valkey-go"
)

type testPayload struct {
	Name string `json:"name"`
}

func newTestCacheService(t *testing.T) *Service {
	t.Helper()

	mini := miniredis.RunT(t)
	host, portStr, err := net.SplitHostPort(mini.Addr())
	if err != nil {
		t.Fatalf("failed to split address: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:       []string{net.JoinHostPort(host, portStr)},
		DisableCache:      true,
		ForceSingleClient: true,
	})
	if err != nil {
		t.Fatalf("failed to create valkey client: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		t.Fatalf("failed to ping miniredis: %v", err)
	}
	svc := &Service{client: client, logger: logger}

	t.Cleanup(func() {
		svc.Close()
		mini.Close()
	})

	return svc
}

func TestCacheSetGet(t *testing.T) {
	svc := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "key", testPayload{Name: "value"}, 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	var got testPayload
	hit, err := svc.Get(ctx, "key", &got)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !hit || got.Name != "value" {
		t.Fatalf("unexpected value: hit=%t %+v", hit, got)
	}
}

func TestCacheGetMiss(t *testing.T) {
	svc := newTestCacheService(t)

	var got testPayload
	hit, err := svc.Get(context.Background(), "missing", &got)
	if err != nil {
		t.Fatalf("miss must not error: %v", err)
	}
	if hit {
		t.Fatalf("expected miss")
	}
}

func TestCacheIncrAndGetInt(t *testing.T) {
	svc := newTestCacheService(t)
	ctx := context.Background()

	// 없는 키 조회는 (0, false)다.
	v, hit, err := svc.GetInt(ctx, "counter")
	if err != nil || hit || v != 0 {
		t.Fatalf("unexpected initial counter: %d %t %v", v, hit, err)
	}

	if v, err := svc.Incr(ctx, "counter"); err != nil || v != 1 {
		t.Fatalf("first incr: %d %v", v, err)
	}
	if v, err := svc.Incr(ctx, "counter"); err != nil || v != 2 {
		t.Fatalf("second incr: %d %v", v, err)
	}

	v, hit, err = svc.GetInt(ctx, "counter")
	if err != nil || !hit || v != 2 {
		t.Fatalf("unexpected counter read: %d %t %v", v, hit, err)
	}
}

func TestCacheDelete(t *testing.T) {
	svc := newTestCacheService(t)
	ctx := context.Background()

	if err := svc.Set(ctx, "key", testPayload{Name: "value"}, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := svc.Delete(ctx, "key"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	hit, err := svc.Get(ctx, "key", nil)
	if err != nil || hit {
		t.Fatalf("key must be gone: hit=%t err=%v", hit, err)
	}
}
