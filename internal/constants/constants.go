package constants

import "time"

// ScoringConfig: 전적 점수 계산 상수.
// BreakevenPerRace는 1레이스당 손익분기 점수로, 6v6 기준 팀 차이 계산에 쓰인다.
var ScoringConfig = struct {
	BreakevenPerRace int
	DefaultRaceCount int
	MinRaceCount     int
	MaxRaceCount     int
	MinScore         int
	MaxScore         int
}{
	BreakevenPerRace: 41,
	DefaultRaceCount: 12,
	MinRaceCount:     1,
	MaxRaceCount:     24,
	MinScore:         0,
	MaxScore:         999,
}

// OCRConfig: OCR 실행 엔진 기본 설정.
var OCRConfig = struct {
	ExpressConcurrency    int
	StandardConcurrency   int
	BackgroundConcurrency int
	BulkThreshold         int // 이 개수 이상이면 BACKGROUND 우선순위
	BorrowingThreshold    float64
	SubmitBudget          time.Duration // 대기 포함 1건 처리 상한
	UsageWindow           time.Duration
	MetricsInterval       time.Duration
	MemoryCleanupPercent  float64 // 프로세스 메모리 점유율 경고 기준
	SampleRingSize        int
}{
	ExpressConcurrency:    4,
	StandardConcurrency:   2,
	BackgroundConcurrency: 1,
	BulkThreshold:         10,
	BorrowingThreshold:    0.8,
	SubmitBudget:          60 * time.Second,
	UsageWindow:           60 * time.Minute,
	MetricsInterval:       60 * time.Second,
	MemoryCleanupPercent:  85.0,
	SampleRingSize:        1024,
}

// BulkConfig: 벌크 스캔 세션 설정.
var BulkConfig = struct {
	SessionTTL        time.Duration
	SweepInterval     time.Duration
	MaxImagesPerScan  int
	AppendBatchSize   int           // DB 쓰기 배치 최대 건수
	AppendFlushWithin time.Duration // 마지막 완료 후 플러시 기한
	ConfirmTimeout    time.Duration
}{
	SessionTTL:        24 * time.Hour,
	SweepInterval:     15 * time.Minute,
	MaxImagesPerScan:  100,
	AppendBatchSize:   10,
	AppendFlushWithin: 500 * time.Millisecond,
	ConfirmTimeout:    60 * time.Second,
}

// DatabaseConfig: 커넥션 풀 설정.
var DatabaseConfig = struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}{
	MaxOpenConns:    10,
	MaxIdleConns:    2,
	ConnMaxLifetime: 30 * time.Minute,
}

// RequestTimeout: 외부 호출/요청별 타임아웃.
var RequestTimeout = struct {
	DatabasePing time.Duration
	APIRequest   time.Duration
	ChatSend     time.Duration
}{
	DatabasePing: 5 * time.Second,
	APIRequest:   30 * time.Second,
	ChatSend:     10 * time.Second,
}

// RetryConfig: 일시적 스토리지 에러 재시도 정책.
var RetryConfig = struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}{
	MaxAttempts: 3,
	BaseDelay:   100 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

// RosterCacheConfig: 로스터 read-through 캐시 설정.
var RosterCacheConfig = struct {
	TTL time.Duration
}{
	TTL: 30 * time.Second,
}

// SessionTokenConfig: 웹 리뷰 세션/사용자 토큰 설정.
var SessionTokenConfig = struct {
	UserSessionTTL time.Duration
	TokenBytes     int // bulk 세션 토큰 엔트로피 (바이트)
}{
	UserSessionTTL: 7 * 24 * time.Hour,
	TokenBytes:     24, // 192 bits
}

// MQConfig: Valkey 스트림 소비자 설정.
var MQConfig = struct {
	ReadCount         int64
	BlockTimeout      time.Duration
	WorkerCount       int
	InitRetryCount    int
	RetryDelay        time.Duration
	DialTimeout       time.Duration
	ConnWriteTimeout  time.Duration
	BlockingPoolSize  int
	PipelineMultiplex int
	ReplyStreamKey    string
}{
	ReadCount:         10,
	BlockTimeout:      5 * time.Second,
	WorkerCount:       4,
	InitRetryCount:    5,
	RetryDelay:        2 * time.Second,
	DialTimeout:       5 * time.Second,
	ConnWriteTimeout:  10 * time.Second,
	BlockingPoolSize:  100,
	PipelineMultiplex: 4,
	ReplyStreamKey:    "mkw:replies",
}

// ValkeyConfig: 캐시 클라이언트 설정.
var ValkeyConfig = struct {
	ReadyTimeout      time.Duration
	BlockingPoolSize  int
	PipelineMultiplex int
}{
	ReadyTimeout:      5 * time.Second,
	BlockingPoolSize:  100,
	PipelineMultiplex: 4,
}

// PaginationConfig: 목록 조회 페이지네이션 기본값.
var PaginationConfig = struct {
	DefaultLimit int
	MaxLimit     int
}{
	DefaultLimit: 20,
	MaxLimit:     100,
}
