package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/mkw-stats-bot-go/internal/constants"
	"github.com/kapu/mkw-stats-bot-go/internal/util"
)

// Config: 봇 워커 + 리뷰 API 전체 동작에 필요한 설정을 담는 구조체
type Config struct {
	Postgres PostgresConfig
	Valkey   ValkeyConfig
	ValkeyMQ ValkeyMQConfig
	Server   ServerConfig
	Chat     ChatConfig
	OAuth    OAuthConfig
	OCR      OCRConfig
	Logging  LoggingConfig
	Version  string
}

// PostgresConfig: 메인 데이터베이스(PostgreSQL) 연결 설정
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	MaxConns int
}

// ValkeyConfig: 로스터 캐시 용도의 Valkey 연결 설정
type ValkeyConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// ValkeyMQConfig: 채팅 게이트웨이와의 스트림 기반 이벤트 큐 설정
type ValkeyMQConfig struct {
	Host          string
	Port          int
	Password      string
	StreamKey     string
	ConsumerGroup string
	ConsumerName  string
	ReadCount     int
	BlockTimeout  time.Duration
	WorkerCount   int
}

// ServerConfig: 리뷰 API 서버 설정
type ServerConfig struct {
	Port           int
	APIKey         string // 봇 → API 공유 키
	JWTSecret      string // 사용자 세션 토큰 서명용
	AllowedOrigins []string
	PublicWebURL   string // 리뷰 프런트엔드 공개 URL (세션 링크 생성용)
}

// ChatConfig: 채팅 플랫폼 연동 설정
type ChatConfig struct {
	Token         string
	CommandPrefix string
}

// OAuthConfig: 채팅 플랫폼 OAuth 신원 검증 설정
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// OCRMode: 엔진 운영 모드 (balanced / single_focused / bulk_heavy)
type OCRMode string

// OCR 운영 모드 값.
const (
	ModeBalanced      OCRMode = "balanced"
	ModeSingleFocused OCRMode = "single_focused"
	ModeBulkHeavy     OCRMode = "bulk_heavy"
)

// OCRConfig: OCR 실행 엔진 튜닝 설정
type OCRConfig struct {
	Endpoint              string
	Mode                  OCRMode
	ExpressConcurrency    int
	StandardConcurrency   int
	BackgroundConcurrency int
	BulkThreshold         int
	PriorityBorrowing     bool
	BorrowingThreshold    float64
	UsageAdaptation       bool
	UsageWindow           time.Duration
	MetricsInterval       time.Duration
	SubmitBudget          time.Duration
}

// LoggingConfig: 애플리케이션 로그 설정 (레벨, 디렉토리, 로테이션 정책)
type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load: .env 파일 및 환경 변수로부터 설정을 로드하고, 기본값을 적용하여 Config 객체를 생성한다.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "mkw"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "mkw_stats"),
			MaxConns: getEnvInt("POSTGRES_MAX_CONNS", constants.DatabaseConfig.MaxOpenConns),
		},
		Valkey: ValkeyConfig{
			Host:     getEnv("CACHE_HOST", "localhost"),
			Port:     getEnvInt("CACHE_PORT", 6379),
			Password: getEnv("CACHE_PASSWORD", ""),
			DB:       getEnvInt("CACHE_DB", 0),
		},
		ValkeyMQ: ValkeyMQConfig{
			Host:          getEnv("MQ_HOST", "localhost"),
			Port:          getEnvInt("MQ_PORT", 6379),
			Password:      getEnv("MQ_PASSWORD", ""),
			StreamKey:     getEnv("MQ_STREAM_KEY", "mkw:events"),
			ConsumerGroup: getEnv("MQ_CONSUMER_GROUP", "mkw-bot-group"),
			ConsumerName:  getEnv("MQ_CONSUMER_NAME", "consumer-1"),
			ReadCount:     getEnvInt("MQ_READ_COUNT", int(constants.MQConfig.ReadCount)),
			BlockTimeout: time.Duration(getEnvInt(
				"MQ_BLOCK_TIMEOUT_SECONDS",
				int(constants.MQConfig.BlockTimeout.Seconds()),
			)) * time.Second,
			WorkerCount: getEnvInt("MQ_WORKER_COUNT", constants.MQConfig.WorkerCount),
		},
		Server: ServerConfig{
			Port:           getEnvInt("SERVER_PORT", 30010),
			APIKey:         getEnv("API_KEY", ""),
			JWTSecret:      getEnv("JWT_SECRET", ""),
			AllowedOrigins: parseCommaSeparated(getEnv("CORS_ORIGINS", "")),
			PublicWebURL:   strings.TrimSuffix(getEnv("PUBLIC_WEB_URL", ""), "/"),
		},
		Chat: ChatConfig{
			Token:         getEnv("CHAT_TOKEN", ""),
			CommandPrefix: getEnv("BOT_PREFIX", "/"),
		},
		OAuth: OAuthConfig{
			ClientID:     getEnv("OAUTH_CLIENT_ID", ""),
			ClientSecret: getEnv("OAUTH_CLIENT_SECRET", ""),
			RedirectURI:  getEnv("OAUTH_REDIRECT_URI", ""),
		},
		OCR: OCRConfig{
			Endpoint:              getEnv("OCR_ENDPOINT", "http://localhost:8868/ocr"),
			Mode:                  parseOCRMode(getEnv("OCR_MODE", string(ModeBalanced))),
			ExpressConcurrency:    getEnvInt("OCR_EXPRESS_CONCURRENCY", constants.OCRConfig.ExpressConcurrency),
			StandardConcurrency:   getEnvInt("OCR_STANDARD_CONCURRENCY", constants.OCRConfig.StandardConcurrency),
			BackgroundConcurrency: getEnvInt("OCR_BACKGROUND_CONCURRENCY", constants.OCRConfig.BackgroundConcurrency),
			BulkThreshold:         getEnvInt("OCR_BULK_THRESHOLD", constants.OCRConfig.BulkThreshold),
			PriorityBorrowing:     getEnvBool("OCR_PRIORITY_BORROWING", true),
			BorrowingThreshold:    getEnvFloat("OCR_BORROWING_THRESHOLD", constants.OCRConfig.BorrowingThreshold),
			UsageAdaptation:       getEnvBool("OCR_USAGE_ADAPTATION", true),
			UsageWindow: time.Duration(getEnvInt(
				"OCR_USAGE_WINDOW_MINUTES",
				int(constants.OCRConfig.UsageWindow.Minutes()),
			)) * time.Minute,
			MetricsInterval: time.Duration(getEnvInt(
				"OCR_METRICS_INTERVAL_SECONDS",
				int(constants.OCRConfig.MetricsInterval.Seconds()),
			)) * time.Second,
			SubmitBudget: time.Duration(getEnvInt(
				"OCR_SUBMIT_BUDGET_SECONDS",
				int(constants.OCRConfig.SubmitBudget.Seconds()),
			)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Dir:        getEnv("LOG_DIR", "logs"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Version: util.TrimSpace(getEnv("APP_VERSION", "1.0.0-go")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate: 필수 설정값이 누락되지 않았는지 검증한다.
func (c *Config) Validate() error {
	if c.Postgres.Host == "" || c.Postgres.Database == "" {
		return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB are required")
	}
	if c.Chat.Token == "" {
		return fmt.Errorf("CHAT_TOKEN is required")
	}
	if c.Server.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required for session security")
	}
	if c.Server.APIKey == "" {
		return fmt.Errorf("API_KEY is required for bot-to-API calls")
	}
	if c.OCR.ExpressConcurrency < 1 || c.OCR.StandardConcurrency < 1 || c.OCR.BackgroundConcurrency < 1 {
		return fmt.Errorf("OCR concurrency values must be >= 1")
	}
	if c.OCR.BorrowingThreshold <= 0 || c.OCR.BorrowingThreshold > 1 {
		return fmt.Errorf("OCR_BORROWING_THRESHOLD must be in (0, 1]")
	}
	return nil
}

func parseOCRMode(s string) OCRMode {
	switch OCRMode(util.Normalize(s)) {
	case ModeSingleFocused:
		return ModeSingleFocused
	case ModeBulkHeavy:
		return ModeBulkHeavy
	default:
		return ModeBalanced
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := util.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
